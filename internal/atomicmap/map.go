// Package atomicmap implements the atomic lock map variant: ownership of the
// map entry, not a reference count, governs a key's lifecycle. It trades the
// keyed variant's per-record monitor and reference counting for a simpler
// (and, for short-lived/low-contention keys, cheaper) scheme where the first
// acquirer to insert a key's semaphore owns it, and only the owner ever
// removes it.
//
// This is a deliberate simplification with a known race, called out in the
// component design: if the owner releases (removing the map entry) while a
// late joiner is still waiting on the old semaphore, a subsequent acquirer
// for the same key installs an unrelated fresh semaphore, and the two
// waiters end up serialized on different semaphores. The source accepts this
// tradeoff for workloads where keys are short-lived and contention is rare;
// this package reproduces it faithfully rather than adding reference
// counting (which would make this variant redundant with the keyed one).
package atomicmap

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/markcv/keyedlock/internal/core"
)

// Releaser is the atomic variant's per-acquisition record: a key, the
// semaphore backing it, and whether this particular acquisition was the one
// that inserted the map entry.
type Releaser[K comparable] struct {
	key     K
	sem     *core.Semaphore
	isOwner bool
}

// Sem returns the semaphore this acquisition must wait on.
func (r *Releaser[K]) Sem() *core.Semaphore { return r.sem }

// IsOwner reports whether this acquisition inserted the map entry and is
// therefore responsible for removing it on release.
func (r *Releaser[K]) IsOwner() bool { return r.isOwner }

// Map is the concurrent map backing the atomic locker.
//
// A [singleflight.Group] collapses concurrent first-acquirers of the same
// key onto a single map mutation: every concurrent caller allocates its own
// candidate semaphore up front (from the pool), but only one of their
// closures actually executes and performs the check-and-insert; the rest
// share its result and discover their own ownership by comparing pointer
// identity against the semaphore that was actually stored. This is exactly
// the "first inserter wins, everyone else recycles their candidate" contract
// from the component design, expressed without a second lock acquisition per
// racing caller.
type Map[K comparable] struct {
	mu       sync.Mutex
	m        map[K]*core.Semaphore
	pool     *pool
	group    singleflight.Group
	keyStr   func(K) string
	maxCount int
}

// pool is a bounded LIFO stack of recyclable semaphores, scoped down from
// [core.Pool] since the atomic variant has no refCount/inUse bookkeeping to
// carry per slot — only the semaphore itself is worth recycling.
type pool struct {
	mu       sync.Mutex
	free     []*core.Semaphore
	size     int
	maxCount int
}

func newPool(size, initialFill, maxCount int) *pool {
	if initialFill == -1 {
		initialFill = size
	}
	p := &pool{size: size, maxCount: maxCount}
	if size > 0 {
		p.free = make([]*core.Semaphore, 0, size)
	}
	for range initialFill {
		p.free = append(p.free, core.NewSemaphore(maxCount))
	}
	return p
}

func (p *pool) get() *core.Semaphore {
	if p.size == 0 {
		return core.NewSemaphore(p.maxCount)
	}
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return core.NewSemaphore(p.maxCount)
	}
	s := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()
	return s
}

func (p *pool) put(s *core.Semaphore) {
	if p.size == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.size {
		return
	}
	p.free = append(p.free, s)
}

// Config bundles the atomic map's tuning knobs.
type Config[K comparable] struct {
	MaxCount        int
	PoolSize        int
	PoolInitialFill int
	KeyString       func(K) string
}

// NewMap constructs a Map from cfg. KeyString converts a key to the string
// singleflight.Group requires; if nil, fmt.Sprintf("%v", key) is used.
func NewMap[K comparable](cfg Config[K]) *Map[K] {
	keyStr := cfg.KeyString
	if keyStr == nil {
		keyStr = defaultKeyString[K]
	}
	return &Map[K]{
		m:        make(map[K]*core.Semaphore),
		pool:     newPool(cfg.PoolSize, cfg.PoolInitialFill, cfg.MaxCount),
		keyStr:   keyStr,
		maxCount: cfg.MaxCount,
	}
}

// GetOrAdd returns a Releaser for key. If key has no live entry, this
// acquisition becomes the owner and installs a fresh semaphore; otherwise it
// joins the existing owner's semaphore as a non-owner.
func (m *Map[K]) GetOrAdd(key K) *Releaser[K] {
	candidate := m.pool.get()

	v, _, _ := m.group.Do(m.keyStr(key), func() (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.m[key]; ok {
			return existing, nil
		}
		m.m[key] = candidate
		return candidate, nil
	})

	stored, _ := v.(*core.Semaphore)
	isOwner := stored == candidate
	if !isOwner {
		m.pool.put(candidate)
	}
	return &Releaser[K]{key: key, sem: stored, isOwner: isOwner}
}

// Release releases r. If r is the owner, the map entry is removed and the
// semaphore returned to the pool before the permit is released; otherwise
// only the permit is released.
func (m *Map[K]) Release(r *Releaser[K]) {
	m.releaseRef(r, true)
}

// ReleaseWithoutSemaphoreRelease is identical to Release except the final
// semaphore permit is not returned — used when the caller never acquired a
// permit (timeout or cancellation observed before admission).
func (m *Map[K]) ReleaseWithoutSemaphoreRelease(r *Releaser[K]) {
	m.releaseRef(r, false)
}

func (m *Map[K]) releaseRef(r *Releaser[K], returnPermit bool) {
	if r.isOwner {
		m.mu.Lock()
		delete(m.m, r.key)
		m.mu.Unlock()
		m.pool.put(r.sem)
	}
	if returnPermit {
		r.sem.Release()
	}
}

// IsInUse reports whether key currently has a live (owned) map entry.
func (m *Map[K]) IsInUse(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.m[key]
	return ok
}

// Len reports the number of distinct keys currently owned in the map.
func (m *Map[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}

// MaxCount returns the configured per-key admission ceiling.
func (m *Map[K]) MaxCount() int {
	return m.maxCount
}

// InUse returns the number of outstanding admissions for key, or 0 if key
// has no live entry.
func (m *Map[K]) InUse(key K) int {
	m.mu.Lock()
	sem, ok := m.m[key]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return sem.InUse()
}

// Close clears the map and drops the pool. Best-effort, matching the
// source's disposal policy: there is nothing that can fail here.
func (m *Map[K]) Close() error {
	m.mu.Lock()
	m.m = make(map[K]*core.Semaphore)
	m.mu.Unlock()
	m.pool.mu.Lock()
	m.pool.free = nil
	m.pool.mu.Unlock()
	return nil
}

func defaultKeyString[K comparable](k K) string {
	return sprintKey(k)
}
