package keyedlock

import "sync"

// Lock is the scoped handle returned by a successful acquisition. Calling
// Unlock releases the lock; Unlock is idempotent and safe to call more than
// once, mirroring the source's double-release guard on the scoped handle.
//
// A nil *Lock represents "not entered" — returned by TryLock on timeout and
// by ConditionalLock when its condition is false. Unlock is safe to call on
// a nil *Lock (a no-op), so callers can use the same
//
//	lock, err := locker.TryLock(ctx, key, timeout)
//	if err != nil { ... }
//	defer lock.Unlock()
//
// pattern regardless of which branch produced the handle, without a
// separate sentinel type for the non-locking case.
type Lock[K comparable] struct {
	once    sync.Once
	release func()
}

func newLock[K comparable](release func()) *Lock[K] {
	return &Lock[K]{release: release}
}

// Unlock releases the lock. Safe to call on a nil *Lock, and safe to call
// more than once on the same *Lock — only the first call has any effect.
func (l *Lock[K]) Unlock() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if l.release != nil {
			l.release()
		}
	})
}
