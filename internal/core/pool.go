package core

import (
	"fmt"
	"sync"
)

// Pool is a bounded LIFO stack of recyclable [Releaser] values, trading a
// small fixed amount of memory for fewer allocations under steady-state key
// churn. Unlike [Map]'s admission semaphore, Pool never blocks: Get returns a
// freshly allocated Releaser whenever the stack is empty, and Put silently
// drops a Releaser once the stack is at capacity.
//
// Correctness never depends on a Releaser's identity surviving a round trip
// through the pool — see the pooling note in the design notes. Pool is
// purely an allocation optimization.
//
// It is safe for concurrent use by multiple goroutines.
type Pool[K comparable] struct {
	mu       sync.Mutex
	free     []*Releaser[K]
	size     int
	maxCount int
}

// NewPool creates a Pool holding up to size Releasers, each configured with
// the given maxCount. initialFill pre-allocates that many Releasers
// up front; a value of -1 fills the pool completely (initialFill = size).
// size == 0 disables pooling: Get always allocates, Put always drops, and
// initialFill is ignored.
//
// Panics if size < 0, if initialFill < -1, or if size > 0 and
// initialFill > size.
func NewPool[K comparable](size, initialFill, maxCount int) *Pool[K] {
	if size < 0 {
		panic(fmt.Sprintf("keyedlock: pool size must not be negative, got %d", size))
	}
	if initialFill == -1 {
		initialFill = size
	}
	if initialFill < 0 {
		panic(fmt.Sprintf("keyedlock: pool initial fill must be >= -1, got %d", initialFill))
	}
	if size == 0 {
		initialFill = 0
	}
	if initialFill > size {
		panic(fmt.Sprintf("keyedlock: pool initial fill (%d) must not exceed pool size (%d)", initialFill, size))
	}

	p := &Pool[K]{
		maxCount: maxCount,
		size:     size,
	}
	if size > 0 {
		p.free = make([]*Releaser[K], 0, size)
	}
	for range initialFill {
		p.free = append(p.free, newReleaser[K](maxCount))
	}
	return p
}

// Get returns a recycled Releaser, or a freshly allocated one if the pool is
// empty. Never blocks.
func (p *Pool[K]) Get() *Releaser[K] {
	if p.size == 0 {
		return newReleaser[K](p.maxCount)
	}

	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return newReleaser[K](p.maxCount)
	}
	r := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()
	return r
}

// Put returns a Releaser to the pool for reuse. If the pool is at capacity
// (or disabled), the Releaser is dropped and left for the garbage collector.
func (p *Pool[K]) Put(r *Releaser[K]) {
	if p.size == 0 {
		return
	}
	r.reset()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.size {
		return
	}
	p.free = append(p.free, r)
}

// Len reports the number of Releasers currently parked in the pool.
func (p *Pool[K]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
