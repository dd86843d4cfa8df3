package keyedlock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/markcv/keyedlock/internal/striped"
)

// StripedLocker is a fixed-size array of semaphores indexed by
// hash(key) mod N, where N is the next prime >= the requested stripe
// count. Unlike KeyedLocker, there is no map, no reference counting, and no
// pool: memory use is O(N) rather than O(live keys), but distinct keys that
// hash to the same stripe serialize spuriously.
//
// It is safe for concurrent use by multiple goroutines.
type StripedLocker[K comparable] struct {
	s      *striped.Stripes[K]
	closed atomic.Bool
}

// NewStripedLocker constructs a StripedLocker with the given options
// applied over the package defaults.
func NewStripedLocker[K comparable](opts ...StripedLockerOption[K]) *StripedLocker[K] {
	cfg := newStripedConfig[K]()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("keyedlock: %v", err))
	}
	return &StripedLocker[K]{
		s: striped.New[K](cfg.StripeCount, cfg.MaxCount, cfg.Hasher),
	}
}

// StripeCount returns the actual number of stripes (the next prime >= the
// requested count).
func (l *StripedLocker[K]) StripeCount() int {
	return l.s.Count()
}

// Lock waits indefinitely (subject to ctx) for admission to the stripe key
// hashes to.
func (l *StripedLocker[K]) Lock(ctx context.Context, key K) (*Lock[K], error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	sem := l.s.For(key)
	if err := sem.Acquire(ctx); err != nil {
		return nil, err
	}
	return newLock[K](sem.Release), nil
}

// TryLock waits up to timeout for admission to the stripe key hashes to. A
// negative timeout waits indefinitely; a zero timeout succeeds only if a
// permit is immediately available. Returns (nil, nil) on timeout.
func (l *StripedLocker[K]) TryLock(ctx context.Context, key K, timeout time.Duration) (*Lock[K], error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	sem := l.s.For(key)

	if timeout == 0 {
		if sem.TryAcquire() {
			return newLock[K](sem.Release), nil
		}
		return nil, nil
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := sem.Acquire(waitCtx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	return newLock[K](sem.Release), nil
}

// TryLockFunc attempts admission to the stripe key hashes to within
// timeout and, if admitted, invokes fn while holding the lock.
func (l *StripedLocker[K]) TryLockFunc(ctx context.Context, key K, timeout time.Duration, fn func() error) (bool, error) {
	lock, err := l.TryLock(ctx, key, timeout)
	if err != nil {
		return false, err
	}
	if lock == nil {
		return false, nil
	}
	defer lock.Unlock()
	return true, fn()
}

// ConditionalLock locks key's stripe only when cond is true; otherwise
// returns a nil handle without touching any semaphore.
func (l *StripedLocker[K]) ConditionalLock(ctx context.Context, key K, cond bool) (*Lock[K], error) {
	if !cond {
		return nil, nil
	}
	return l.Lock(ctx, key)
}

// IsInUse reports whether the stripe key hashes to currently has
// outstanding admissions — not whether key specifically is held, since
// distinct keys may share a stripe. This approximation is intentional; see
// the design notes.
func (l *StripedLocker[K]) IsInUse(key K) bool {
	sem := l.s.For(key)
	return sem.InUse() > 0
}

// RemainingCount returns the number of outstanding admissions on the
// stripe key hashes to.
func (l *StripedLocker[K]) RemainingCount(key K) int {
	return l.s.For(key).InUse()
}

// MaxCount returns the configured per-stripe admission ceiling.
func (l *StripedLocker[K]) MaxCount() int {
	return l.s.MaxCount()
}

// CurrentCount returns the number of permits still available on the stripe
// key hashes to: MaxCount minus RemainingCount.
func (l *StripedLocker[K]) CurrentCount(key K) int {
	sem := l.s.For(key)
	return sem.MaxCount() - sem.InUse()
}

// Close disposes the locker. Acquire operations issued after Close begin
// returning ErrClosed. Unlike KeyedLocker and AtomicLocker there is no map
// to clear — the stripe array is fixed-size and holds no per-key state —
// so Close has nothing to release beyond flipping this flag. Always
// returns nil.
func (l *StripedLocker[K]) Close() error {
	l.closed.Store(true)
	return nil
}
