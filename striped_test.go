package keyedlock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	keyedlock "github.com/markcv/keyedlock"
)

func TestStripedLockerStripeCountIsNextPrime(t *testing.T) {
	t.Parallel()

	l := keyedlock.NewStripedLocker[string](keyedlock.WithStripeCount[string](10))
	if got := l.StripeCount(); got != 11 {
		t.Errorf("StripeCount() = %d, want 11", got)
	}
}

func TestStripedLockerSerializesSameKey(t *testing.T) {
	t.Parallel()

	l := keyedlock.NewStripedLocker[string]()
	ctx := context.Background()

	held, err := l.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	admitted := make(chan struct{})
	go func() {
		lock, err := l.Lock(ctx, "k")
		if err != nil {
			return
		}
		close(admitted)
		lock.Unlock()
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-admitted:
		t.Fatal("second acquirer admitted before the first released")
	default:
	}

	held.Unlock()

	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("second acquirer never admitted")
	}
}

func TestStripedLockerTryLockZeroTimeout(t *testing.T) {
	t.Parallel()

	l := keyedlock.NewStripedLocker[string]()
	ctx := context.Background()

	held, err := l.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	lock, err := l.TryLock(ctx, "k", 0)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if lock != nil {
		t.Fatal("TryLock with timeout=0 should fail while the stripe is held")
	}

	held.Unlock()
}

func TestStripedLockerCurrentCount(t *testing.T) {
	t.Parallel()

	l := keyedlock.NewStripedLocker[string](keyedlock.WithStripedMaxCount[string](2))
	ctx := context.Background()

	if got, want := l.MaxCount(), 2; got != want {
		t.Fatalf("MaxCount() = %d, want %d", got, want)
	}
	if got, want := l.CurrentCount("k"), 2; got != want {
		t.Errorf("CurrentCount() before any acquire = %d, want %d", got, want)
	}

	lock, err := l.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if got, want := l.CurrentCount("k"), 1; got != want {
		t.Errorf("CurrentCount() with 1 held = %d, want %d", got, want)
	}

	lock.Unlock()
	if got, want := l.CurrentCount("k"), 2; got != want {
		t.Errorf("CurrentCount() after release = %d, want %d", got, want)
	}
}

func TestStripedLockerDistinctKeysSharingAStripeSerialize(t *testing.T) {
	t.Parallel()

	// A single stripe forces every key to share it, demonstrating the
	// approximate IsInUse semantics called out in the design.
	l := keyedlock.NewStripedLocker[string](keyedlock.WithStripeCount[string](1))
	ctx := context.Background()

	lockA, err := l.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}

	if !l.IsInUse("b") {
		t.Error("IsInUse(b) should report true: a and b share the only stripe")
	}

	lockA.Unlock()
	if l.IsInUse("b") {
		t.Error("IsInUse(b) should report false once the shared stripe is free")
	}
}

func TestStripedLockerCloseIsBestEffort(t *testing.T) {
	t.Parallel()

	l := keyedlock.NewStripedLocker[string]()
	if err := l.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestStripedLockerAcquireAfterCloseReturnsErrClosed(t *testing.T) {
	t.Parallel()

	l := keyedlock.NewStripedLocker[string]()
	if err := l.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if _, err := l.Lock(context.Background(), "a"); !errors.Is(err, keyedlock.ErrClosed) {
		t.Errorf("Lock after Close error = %v, want ErrClosed", err)
	}
	if _, err := l.TryLock(context.Background(), "a", time.Second); !errors.Is(err, keyedlock.ErrClosed) {
		t.Errorf("TryLock after Close error = %v, want ErrClosed", err)
	}
}
