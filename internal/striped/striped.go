// Package striped implements the fixed-array striped locker variant: a
// pre-allocated set of semaphores indexed by hash(key) mod N, with no map,
// no reference counting, and no pool. Distinct keys may share a stripe and
// therefore serialize spuriously; memory use is O(N) rather than O(live
// keys).
package striped

import (
	"hash/maphash"

	"github.com/markcv/keyedlock/internal/core"
)

// Stripes is a fixed array of semaphores indexed by a masked, hashed key.
// Stripes never changes size after construction and holds no map, so
// acquiring a stripe never allocates.
type Stripes[K comparable] struct {
	sems     []*core.Semaphore
	hasher   func(K) uint64
	maxCount int
}

// New returns a Stripes with the next prime number of slots >= requested,
// each a semaphore admitting up to maxCount concurrent holders. requested
// and maxCount must be >= 1.
func New[K comparable](requested, maxCount int, hasher func(K) uint64) *Stripes[K] {
	if requested < 1 {
		panic("keyedlock: striped locker requires at least 1 stripe")
	}
	n := NextPrime(requested)
	sems := make([]*core.Semaphore, n)
	for i := range sems {
		sems[i] = core.NewSemaphore(maxCount)
	}
	if hasher == nil {
		seed := maphash.MakeSeed()
		hasher = func(k K) uint64 { return maphash.Comparable(seed, k) }
	}
	return &Stripes[K]{sems: sems, hasher: hasher, maxCount: maxCount}
}

// Count returns the actual number of stripes (the next prime >= requested).
func (s *Stripes[K]) Count() int {
	return len(s.sems)
}

// MaxCount returns the configured per-stripe admission ceiling.
func (s *Stripes[K]) MaxCount() int {
	return s.maxCount
}

// For returns the semaphore that key hashes to. The hash is masked to
// non-negative before the modulus, per the design notes.
func (s *Stripes[K]) For(key K) *core.Semaphore {
	h := s.hasher(key) & 0x7fffffffffffffff
	return s.sems[h%uint64(len(s.sems))]
}
