package core

import "testing"

func TestNewPoolPanics(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		size, initialFill, maxCount int
		wantMsg                    string
	}{
		"negative size": {
			size: -1, initialFill: 0, maxCount: 1,
			wantMsg: "pool size must not be negative, got -1",
		},
		"initialFill below -1": {
			size: 1, initialFill: -2, maxCount: 1,
			wantMsg: "pool initial fill must be >= -1, got -2",
		},
		"initialFill exceeds size": {
			size: 1, initialFill: 2, maxCount: 1,
			wantMsg: "pool initial fill (2) must not exceed pool size (1)",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			requirePanicContains(t, func() {
				NewPool[string](tc.size, tc.initialFill, tc.maxCount)
			}, tc.wantMsg)
		})
	}
}

func TestPoolDisabledAlwaysAllocates(t *testing.T) {
	t.Parallel()

	p := NewPool[string](0, 0, 1)
	a := p.Get()
	b := p.Get()
	if a == b {
		t.Fatal("Get on a disabled pool should never return the same releaser twice")
	}

	p.Put(a)
	if got := p.Len(); got != 0 {
		t.Errorf("Len() after Put on a disabled pool = %d, want 0", got)
	}
}

func TestPoolRecyclesUpToCapacity(t *testing.T) {
	t.Parallel()

	p := NewPool[string](1, 0, 1)

	a := p.Get()
	p.Put(a)
	if got := p.Len(); got != 1 {
		t.Fatalf("Len() after one Put = %d, want 1", got)
	}

	b := p.Get()
	if b != a {
		t.Fatal("Get should return the recycled releaser when one is parked")
	}

	p.Put(b)
	p.Put(newReleaser[string](1)) // pool at capacity, should be dropped
	if got := p.Len(); got != 1 {
		t.Errorf("Len() after Put beyond capacity = %d, want 1", got)
	}
}

func TestNewPoolInitialFillMinusOneFillsCompletely(t *testing.T) {
	t.Parallel()

	p := NewPool[string](3, -1, 1)
	if got := p.Len(); got != 3 {
		t.Errorf("Len() after initialFill=-1 = %d, want 3 (== size)", got)
	}
}

func TestPoolPutResetsKey(t *testing.T) {
	t.Parallel()

	p := NewPool[string](1, 0, 1)
	r := p.Get()
	r.activate("some-key")
	p.Put(r)

	got := p.Get()
	if got != r {
		t.Fatal("expected to receive back the only pooled releaser")
	}
	if got.Key() != "" {
		t.Errorf("recycled releaser Key() = %q, want zero value (reset on Put)", got.Key())
	}
}
