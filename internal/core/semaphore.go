package core

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Semaphore is the bounded counted semaphore backing one releaser. It wraps
// [semaphore.Weighted] with weight 1, giving every admission the same cost
// regardless of MaxCount — MaxCount only changes how many admissions the
// weighted semaphore allows concurrently.
//
// inUse tracks outstanding admissions alongside the Weighted semaphore.
// Weighted exposes no way to read its current value, but the striped and
// atomic lockers need it for CurrentCount/RemainingCount observability; the
// keyed locker instead derives those from the releaser's reference count,
// since that is the spec-mandated source of truth for the keyed variant.
//
// A Semaphore is created once per releaser slot and reused across the
// pool's recycle cycle; see [Pool] for the recycling contract.
type Semaphore struct {
	w        *semaphore.Weighted
	maxCount int64
	inUse    atomic.Int64
}

// NewSemaphore returns a Semaphore admitting up to maxCount concurrent
// holders. Panics if maxCount < 1.
func NewSemaphore(maxCount int) *Semaphore {
	if maxCount < 1 {
		panic("keyedlock: semaphore maxCount must be at least 1")
	}
	return &Semaphore{
		w:        semaphore.NewWeighted(int64(maxCount)),
		maxCount: int64(maxCount),
	}
}

// Acquire blocks until a permit is available or ctx is done. Returns ctx.Err()
// on cancellation or deadline expiry; the caller must not have consumed a
// permit in that case.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := s.w.Acquire(ctx, 1); err != nil {
		return err
	}
	s.inUse.Add(1)
	return nil
}

// TryAcquire takes a permit without blocking. Returns false immediately if
// none is available — the timeout=0 boundary case from the acquire contract.
func (s *Semaphore) TryAcquire() bool {
	if !s.w.TryAcquire(1) {
		return false
	}
	s.inUse.Add(1)
	return true
}

// Release returns one permit to the semaphore.
func (s *Semaphore) Release() {
	s.inUse.Add(-1)
	s.w.Release(1)
}

// MaxCount returns the configured admission ceiling.
func (s *Semaphore) MaxCount() int {
	return int(s.maxCount)
}

// InUse returns the number of permits currently outstanding.
func (s *Semaphore) InUse() int {
	return int(s.inUse.Load())
}
