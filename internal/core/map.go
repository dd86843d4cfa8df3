package core

import (
	"hash/maphash"
	"sync"
)

// Map is the concurrent key-to-releaser map described by the data model: it
// guarantees exactly one live [Releaser] per key, reference-counts
// waiters/holders so the mapping is torn down exactly when the last holder
// releases, and recycles releaser slots through a [Pool].
//
// Concurrency is provided by sharding: the key space is split across a fixed
// number of shards, each guarded by its own mutex, mirroring the "internal
// striping" a configurable concurrent hash map provides in other runtimes.
// ConcurrencyLevel (rounded up to a power of two) picks the shard count.
//
// It is safe for concurrent use by multiple goroutines.
type Map[K comparable] struct {
	shards   []*shard[K]
	mask     uint64
	hasher   func(K) uint64
	pool     *Pool[K]
	maxCount int
}

type shard[K comparable] struct {
	mu sync.Mutex
	m  map[K]*Releaser[K]
}

// Config bundles the tuning knobs for a Map. See the exported With* options
// in the public package for defaults and validation.
type Config[K comparable] struct {
	MaxCount         int
	PoolSize         int
	PoolInitialFill  int
	ConcurrencyLevel int
	InitialCapacity  int
	Hasher           func(K) uint64
}

// NewMap constructs a Map from cfg. NewMap does not check cfg.MaxCount
// itself: a value < 1 panics in [NewSemaphore] the first time a releaser is
// allocated (at construction only when the pool pre-fills releasers). All
// fields are validated by the caller (see the public package's option
// validation).
func NewMap[K comparable](cfg Config[K]) *Map[K] {
	shardCount := nextPow2(cfg.ConcurrencyLevel)
	shards := make([]*shard[K], shardCount)
	perShardCap := cfg.InitialCapacity / shardCount
	for i := range shards {
		shards[i] = &shard[K]{m: make(map[K]*Releaser[K], perShardCap)}
	}

	hasher := cfg.Hasher
	if hasher == nil {
		seed := maphash.MakeSeed()
		hasher = func(k K) uint64 { return maphash.Comparable(seed, k) }
	}

	return &Map[K]{
		shards:   shards,
		mask:     uint64(shardCount - 1),
		hasher:   hasher,
		pool:     NewPool[K](cfg.PoolSize, cfg.PoolInitialFill, cfg.MaxCount),
		maxCount: cfg.MaxCount,
	}
}

// nextPow2 rounds n up to the next power of two, with a floor of 1.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (m *Map[K]) shardFor(key K) *shard[K] {
	return m.shards[m.hasher(key)&m.mask]
}

// GetOrAdd returns a live Releaser for key with its reference count
// incremented to reflect the caller's pending acquire. It never blocks on
// the releaser's semaphore — only map/pool bookkeeping occurs here.
//
// This is the double-check loop called out as load-bearing in the design
// notes: a losing insert that raced with a draining record must retry with
// a fresh candidate rather than collapsing to a single lookup-or-insert call.
func (m *Map[K]) GetOrAdd(key K) *Releaser[K] {
	sh := m.shardFor(key)

	// Optimistic lookup: join an already-live record if one exists.
	sh.mu.Lock()
	existing, ok := sh.m[key]
	sh.mu.Unlock()
	if ok && existing.tryIncrement() {
		return existing
	}

	candidate := m.pool.Get()
	candidate.activate(key)

	for {
		sh.mu.Lock()
		current, ok := sh.m[key]
		if !ok {
			sh.m[key] = candidate
			sh.mu.Unlock()
			return candidate
		}
		sh.mu.Unlock()

		// Contention: another goroutine inserted between our optimistic
		// lookup and this attempt. Try to join it instead of discarding
		// our candidate's work outright.
		if current.tryIncrement() {
			m.pool.Put(candidate)
			return current
		}
		// current is draining (inUse == false); loop and retry with the
		// same candidate, since ownership of it was never published.
	}
}

// Release decrements r's reference count. If it was the last reference, the
// entry is removed from the map and the releaser returned to the pool before
// one permit is released on its semaphore.
//
// The shard lock and the releaser's monitor are held together for the final
// decrement so that a concurrent GetOrAdd either observes the entry still
// present with inUse == true (join succeeds) or fully removed with
// inUse == false (join fails and the caller retries) — never a state in
// between the two.
func (m *Map[K]) Release(r *Releaser[K]) {
	m.releaseRef(r, true)
}

// ReleaseWithoutSemaphoreRelease is identical to Release except the final
// semaphore permit is not returned. Callers use this when they never
// successfully acquired a permit — a timeout or cancellation observed before
// admission — so that unwinding the reference count does not also return a
// permit that was never taken.
func (m *Map[K]) ReleaseWithoutSemaphoreRelease(r *Releaser[K]) {
	m.releaseRef(r, false)
}

func (m *Map[K]) releaseRef(r *Releaser[K], returnPermit bool) {
	sh := m.shardFor(r.Key())

	sh.mu.Lock()
	r.mu.Lock()
	r.refCount--
	last := r.refCount == 0
	if last {
		delete(sh.m, r.key)
		r.inUse = false
	}
	r.mu.Unlock()
	sh.mu.Unlock()

	if last {
		m.pool.Put(r)
	}
	if returnPermit {
		r.sem.Release()
	}
}

// IsInUse reports whether a live (non-draining) record is present for key.
func (m *Map[K]) IsInUse(key K) bool {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.m[key]
	return ok
}

// RemainingCount returns the reference count (holders + waiters) for key, or
// 0 if key has no live record.
func (m *Map[K]) RemainingCount(key K) int {
	sh := m.shardFor(key)
	sh.mu.Lock()
	r, ok := sh.m[key]
	sh.mu.Unlock()
	if !ok {
		return 0
	}
	return r.RefCount()
}

// Len reports the number of distinct keys currently live in the map.
func (m *Map[K]) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		n += len(sh.m)
		sh.mu.Unlock()
	}
	return n
}

// PoolLen reports the number of releasers currently parked in the pool.
func (m *Map[K]) PoolLen() int {
	return m.pool.Len()
}

// MaxCount returns the configured per-key admission ceiling.
func (m *Map[K]) MaxCount() int {
	return m.maxCount
}

// Close clears every shard and drops the pool. Matches the source policy of
// a best-effort, error-swallowing disposal: there are no OS resources behind
// a releaser's semaphore, so there is nothing that can fail. Behavior of any
// operation issued concurrently with or after Close is unspecified.
func (m *Map[K]) Close() error {
	for _, sh := range m.shards {
		sh.mu.Lock()
		sh.m = make(map[K]*Releaser[K])
		sh.mu.Unlock()
	}
	m.pool.mu.Lock()
	m.pool.free = nil
	m.pool.mu.Unlock()
	return nil
}
