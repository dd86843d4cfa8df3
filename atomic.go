package keyedlock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/markcv/keyedlock/internal/atomicmap"
)

// AtomicLocker is the ownership-based variant: the first acquirer of a key
// owns its map entry and is solely responsible for removing it on release,
// with no per-key reference count. It applies when MaxCount == 1 and
// reference counting would be pure overhead; see [atomicConfig] for why
// MaxCount is not configurable here.
//
// This trades higher map churn (every successful first-acquire/release
// cycles a map operation) for no per-record monitor — appropriate for
// workloads where keys are short-lived and contention is rare. It
// accepts a known race under overlapping acquisitions for the same
// key — see the internal/atomicmap package doc.
//
// It is safe for concurrent use by multiple goroutines.
type AtomicLocker[K comparable] struct {
	m      *atomicmap.Map[K]
	closed atomic.Bool
}

// NewAtomicLocker constructs an AtomicLocker with the given options applied
// over the package defaults.
func NewAtomicLocker[K comparable](opts ...AtomicLockerOption[K]) *AtomicLocker[K] {
	cfg := newAtomicConfig[K]()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("keyedlock: %v", err))
	}
	m := atomicmap.NewMap[K](atomicmap.Config[K]{
		MaxCount:        DefaultMaxCount,
		PoolSize:        cfg.PoolSize,
		PoolInitialFill: cfg.PoolInitialFill,
		KeyString:       cfg.KeyString,
	})
	return &AtomicLocker[K]{m: m}
}

// Lock waits indefinitely (subject to ctx) for admission to key.
func (l *AtomicLocker[K]) Lock(ctx context.Context, key K) (*Lock[K], error) {
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
// waits indefinitely; a zero timeout succeeds only if a permit is
// immediately available. Returns (nil, nil) on timeout.
func (l *AtomicLocker[K]) TryLock(ctx context.Context, key K, timeout time.Duration) (*Lock[K], error) {
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
		return nil, nil
	}
	return newLock[K](func() { l.m.Release(r) }), nil
}

// TryLockFunc attempts admission to key within timeout and, if admitted,
// invokes fn while holding the lock.
func (l *AtomicLocker[K]) TryLockFunc(ctx context.Context, key K, timeout time.Duration, fn func() error) (bool, error) {
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

// ConditionalLock locks key only when cond is true; otherwise returns a nil
// handle without touching the map.
func (l *AtomicLocker[K]) ConditionalLock(ctx context.Context, key K, cond bool) (*Lock[K], error) {
	if !cond {
		return nil, nil
	}
	return l.Lock(ctx, key)
}

// IsInUse reports whether key currently has a live (owned) map entry.
func (l *AtomicLocker[K]) IsInUse(key K) bool {
	return l.m.IsInUse(key)
}

// Len reports the number of distinct keys currently owned.
func (l *AtomicLocker[K]) Len() int {
	return l.m.Len()
}

// RemainingCount returns the number of outstanding admissions for key, or 0
// if key has no live entry. Unlike KeyedLocker, this has no reference count
// to read from: it is derived from the owning semaphore's own permit count,
// the same non-keyed formula StripedLocker uses.
func (l *AtomicLocker[K]) RemainingCount(key K) int {
	return l.m.InUse(key)
}

// MaxCount returns the configured per-key admission ceiling.
func (l *AtomicLocker[K]) MaxCount() int {
	return l.m.MaxCount()
}

// CurrentCount returns the number of permits still available for key:
// MaxCount minus RemainingCount.
func (l *AtomicLocker[K]) CurrentCount(key K) int {
	return l.m.MaxCount() - l.m.InUse(key)
}

// Close disposes the locker. Acquire operations issued after Close begin
// returning ErrClosed, though one racing with Close itself may still
// observe a normal acquisition — both are acceptable per §7. Always
// returns nil.
func (l *AtomicLocker[K]) Close() error {
	l.closed.Store(true)
	return l.m.Close()
}
