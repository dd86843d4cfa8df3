package atomicmap

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func newTestMap(t *testing.T) *Map[string] {
	t.Helper()
	return NewMap[string](Config[string]{
		MaxCount:        1,
		PoolSize:        2,
		PoolInitialFill: 0,
	})
}

func TestGetOrAddFirstCallerIsOwner(t *testing.T) {
	t.Parallel()

	m := newTestMap(t)
	r := m.GetOrAdd("k")
	if !r.IsOwner() {
		t.Fatal("the first acquirer of a key should be the owner")
	}
	if !m.IsInUse("k") {
		t.Error("IsInUse should be true once the owner has inserted")
	}
}

func TestGetOrAddJoinerIsNotOwner(t *testing.T) {
	t.Parallel()

	m := newTestMap(t)
	owner := m.GetOrAdd("k")
	joiner := m.GetOrAdd("k")

	if !owner.IsOwner() {
		t.Fatal("first acquirer should be owner")
	}
	if joiner.IsOwner() {
		t.Fatal("second acquirer while entry is live should not be owner")
	}
	if joiner.Sem() != owner.Sem() {
		t.Error("a joiner should share the owner's semaphore")
	}
}

func TestReleaseByOwnerRemovesEntry(t *testing.T) {
	t.Parallel()

	m := newTestMap(t)
	r := m.GetOrAdd("k")
	if err := r.Sem().Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.Release(r)

	if m.IsInUse("k") {
		t.Error("IsInUse should be false once the owner has released")
	}
	if got := m.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestReleaseByNonOwnerDoesNotRemoveEntry(t *testing.T) {
	t.Parallel()

	m := newTestMap(t)
	owner := m.GetOrAdd("k")
	joiner := m.GetOrAdd("k")

	m.ReleaseWithoutSemaphoreRelease(joiner)

	if !m.IsInUse("k") {
		t.Error("a non-owner release must not remove the entry")
	}

	m.Release(owner)
	if m.IsInUse("k") {
		t.Error("the owner's release should remove the entry")
	}
}

func TestGetOrAddAfterReleaseIsNewOwner(t *testing.T) {
	t.Parallel()

	m := newTestMap(t)
	first := m.GetOrAdd("k")
	m.ReleaseWithoutSemaphoreRelease(first)

	second := m.GetOrAdd("k")
	if !second.IsOwner() {
		t.Fatal("a fresh acquisition after full release should become owner again")
	}
}

func TestConcurrentGetOrAddExactlyOneOwner(t *testing.T) {
	m := newTestMap(t)

	const n = 32
	var g errgroup.Group
	owners := make(chan bool, n)
	releasers := make(chan *Releaser[string], n)

	for range n {
		g.Go(func() error {
			r := m.GetOrAdd("hot")
			owners <- r.IsOwner()
			releasers <- r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	close(owners)
	close(releasers)

	ownerCount := 0
	for isOwner := range owners {
		if isOwner {
			ownerCount++
		}
	}
	if ownerCount != 1 {
		t.Errorf("owner count across %d concurrent GetOrAdd calls = %d, want 1", n, ownerCount)
	}

	for r := range releasers {
		m.ReleaseWithoutSemaphoreRelease(r)
	}
}

func TestPoolRecyclesDiscardedCandidates(t *testing.T) {
	t.Parallel()

	m := newTestMap(t)
	owner := m.GetOrAdd("k")
	joiner := m.GetOrAdd("k") // joiner's candidate is discarded into the pool
	_ = joiner

	if got := m.pool.free; len(got) == 0 {
		t.Error("a losing candidate should be recycled into the pool")
	}

	m.ReleaseWithoutSemaphoreRelease(owner)
}

func TestCloseClearsMapAndPool(t *testing.T) {
	t.Parallel()

	m := newTestMap(t)
	m.GetOrAdd("k")
	if err := m.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if got := m.Len(); got != 0 {
		t.Errorf("Len() after Close = %d, want 0", got)
	}
}

func TestSemaphoreAdmissionBlocksSecondJoiner(t *testing.T) {
	t.Parallel()

	m := newTestMap(t)
	owner := m.GetOrAdd("k")
	if err := owner.Sem().Acquire(context.Background()); err != nil {
		t.Fatalf("owner acquire: %v", err)
	}

	joiner := m.GetOrAdd("k")
	if joiner.Sem().TryAcquire() {
		t.Fatal("joiner should not be admitted while owner holds the permit")
	}

	admitted := make(chan struct{})
	go func() {
		if err := joiner.Sem().Acquire(context.Background()); err == nil {
			close(admitted)
		}
	}()

	select {
	case <-admitted:
		t.Fatal("joiner admitted before owner released")
	case <-time.After(20 * time.Millisecond):
	}

	owner.Sem().Release()

	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("joiner never admitted after owner released")
	}
}

func TestMapMaxCountAndInUse(t *testing.T) {
	t.Parallel()

	m := newTestMap(t)
	if got, want := m.MaxCount(), 1; got != want {
		t.Fatalf("MaxCount() = %d, want %d", got, want)
	}
	if got, want := m.InUse("k"), 0; got != want {
		t.Errorf("InUse() for an absent key = %d, want %d", got, want)
	}

	r := m.GetOrAdd("k")
	if err := r.Sem().Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got, want := m.InUse("k"), 1; got != want {
		t.Errorf("InUse() with key held = %d, want %d", got, want)
	}

	m.Release(r)
	if got, want := m.InUse("k"), 0; got != want {
		t.Errorf("InUse() after release = %d, want %d", got, want)
	}
}
