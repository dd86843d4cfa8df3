package keyedlock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/markcv/keyedlock/internal/core"
)

// KeyedLocker partitions a family of semaphores by key: acquisitions for
// different keys proceed in parallel, while acquisitions for the same key
// serialize (or, when MaxCount > 1, admit up to MaxCount concurrent
// holders). Releaser slots are recycled through an internal pool to
// amortize allocation under key churn.
//
// It is safe for concurrent use by multiple goroutines.
type KeyedLocker[K comparable] struct {
	m      *core.Map[K]
	closed atomic.Bool
}

// NewKeyedLocker constructs a KeyedLocker with the given options applied
// over the package defaults.
func NewKeyedLocker[K comparable](opts ...KeyedLockerOption[K]) *KeyedLocker[K] {
	cfg := newKeyedConfig[K]()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("keyedlock: %v", err))
	}
	m := core.NewMap[K](core.Config[K]{
		MaxCount:         cfg.MaxCount,
		PoolSize:         cfg.PoolSize,
		PoolInitialFill:  cfg.PoolInitialFill,
		ConcurrencyLevel: cfg.ConcurrencyLevel,
		InitialCapacity:  cfg.InitialCapacity,
		Hasher:           cfg.Hasher,
	})
	return &KeyedLocker[K]{m: m}
}

// Lock waits indefinitely (subject to ctx) for admission to key and
// returns a scoped handle. If ctx is done before admission, the reference
// taken by this call is unwound and ctx.Err() is returned.
func (l *KeyedLocker[K]) Lock(ctx context.Context, key K) (*Lock[K], error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	r := l.m.GetOrAdd(key)
	if err := r.Sem().Acquire(ctx); err != nil {
		l.m.ReleaseWithoutSemaphoreRelease(r)
		return nil, err
	}
	return newLock[K](func() { l.m.Release(r) }), nil
}

// TryLock waits up to timeout for admission to key. A negative timeout
// waits indefinitely, equivalent to Lock. A zero timeout succeeds only if a
// permit is immediately available, without blocking.
//
// On timeout without admission, TryLock returns (nil, nil) — timeout is not
// an error (spec §7) — and the reference taken for this call is unwound
// without returning a permit. On cancellation of ctx itself, TryLock
// returns (nil, ctx.Err()).
func (l *KeyedLocker[K]) TryLock(ctx context.Context, key K, timeout time.Duration) (*Lock[K], error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	r := l.m.GetOrAdd(key)

	if timeout == 0 {
		if r.Sem().TryAcquire() {
			return newLock[K](func() { l.m.Release(r) }), nil
		}
		l.m.ReleaseWithoutSemaphoreRelease(r)
		return nil, nil
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := r.Sem().Acquire(waitCtx); err != nil {
		l.m.ReleaseWithoutSemaphoreRelease(r)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// waitCtx's own deadline fired, not the caller's ctx: a timeout,
		// not an error.
		return nil, nil
	}
	return newLock[K](func() { l.m.Release(r) }), nil
}

// TryLockFunc attempts admission to key within timeout and, if admitted,
// invokes fn while holding the lock, releasing on every exit path. It
// reports whether fn ran (admission succeeded). An error returned by fn is
// propagated after the lock is released.
func (l *KeyedLocker[K]) TryLockFunc(ctx context.Context, key K, timeout time.Duration, fn func() error) (bool, error) {
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

// ConditionalLock locks key only when cond is true; when cond is false it
// returns a nil handle without touching the map or any semaphore — the
// "non-locking sentinel handle" collapsed onto Go's nil-handle idiom (see
// [Lock]).
func (l *KeyedLocker[K]) ConditionalLock(ctx context.Context, key K, cond bool) (*Lock[K], error) {
	if !cond {
		return nil, nil
	}
	return l.Lock(ctx, key)
}

// IsInUse reports whether a live (non-draining) record is present for key.
func (l *KeyedLocker[K]) IsInUse(key K) bool {
	return l.m.IsInUse(key)
}

// RemainingCount returns the number of current holders and waiters for key.
func (l *KeyedLocker[K]) RemainingCount(key K) int {
	return l.m.RemainingCount(key)
}

// MaxCount returns the configured per-key admission ceiling.
func (l *KeyedLocker[K]) MaxCount() int {
	return l.m.MaxCount()
}

// CurrentCount returns the number of permits still available for key:
// MaxCount minus RemainingCount.
func (l *KeyedLocker[K]) CurrentCount(key K) int {
	return l.m.MaxCount() - l.m.RemainingCount(key)
}

// Stats is a point-in-time observability snapshot of a KeyedLocker.
type Stats struct {
	// LiveKeys is the number of distinct keys with a live record.
	LiveKeys int
	// PooledReleasers is the number of releasers currently parked in the pool.
	PooledReleasers int
}

// Stats returns a snapshot of the locker's current map and pool occupancy,
// useful for diagnosing contention.
func (l *KeyedLocker[K]) Stats() Stats {
	return Stats{
		LiveKeys:        l.m.Len(),
		PooledReleasers: l.m.PoolLen(),
	}
}

// Close disposes the locker. Acquire operations issued after Close begin
// returning ErrClosed, though one racing with Close itself may still
// observe a normal acquisition — both are acceptable per §7. Close never
// returns a non-nil error; it always returns nil, matching the source's
// best-effort, error-swallowing disposal policy (§9 open questions).
func (l *KeyedLocker[K]) Close() error {
	l.closed.Store(true)
	return l.m.Close()
}
