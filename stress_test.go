package keyedlock_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"golang.org/x/sync/errgroup"

	keyedlock "github.com/markcv/keyedlock"
)

var stressWorkers = 200 // override with KEYEDLOCK_STRESS_WORKERS env var

func init() {
	if v := os.Getenv("KEYEDLOCK_STRESS_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			panic(fmt.Sprintf("invalid KEYEDLOCK_STRESS_WORKERS=%q: must be a positive integer", v))
		}
		stressWorkers = n
	}
}

const stressKeyCount = 8

// TestStressKeyedLocker spawns stressWorkers goroutines hammering a small
// fixed set of keys on a KeyedLocker with MaxCount 1, asserting mutual
// exclusion per key via a non-atomic shared counter: if the locker ever
// admits two holders for the same key at once, the counter goes above 1 and
// the test fails.
func TestStressKeyedLocker(t *testing.T) {
	t.Parallel()

	l := keyedlock.NewKeyedLocker[int]()
	ctx := context.Background()

	holders := make([]int, stressKeyCount)

	var g errgroup.Group
	for i := range stressWorkers {
		key := i % stressKeyCount
		g.Go(func() error {
			lock, err := l.Lock(ctx, key)
			if err != nil {
				return fmt.Errorf("lock %d: %w", key, err)
			}
			holders[key]++
			if holders[key] != 1 {
				lock.Unlock()
				return fmt.Errorf("key %d: %d concurrent holders, want 1", key, holders[key])
			}
			holders[key]--
			lock.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := l.Stats().LiveKeys; got != 0 {
		t.Errorf("Stats().LiveKeys after all released = %d, want 0", got)
	}
}

// TestStressStripedLocker is the striped-variant analogue of
// TestStressKeyedLocker, run over a small stripe count so keys collide and
// exercise the "distinct keys sharing a stripe serialize" path under load.
func TestStressStripedLocker(t *testing.T) {
	t.Parallel()

	l := keyedlock.NewStripedLocker[int](keyedlock.WithStripeCount[int](3))
	ctx := context.Background()

	holders := make([]int, stressKeyCount)

	var g errgroup.Group
	for i := range stressWorkers {
		key := i % stressKeyCount
		g.Go(func() error {
			lock, err := l.Lock(ctx, key)
			if err != nil {
				return fmt.Errorf("lock %d: %w", key, err)
			}
			defer lock.Unlock()
			holders[key]++
			defer func() { holders[key]-- }()
			if holders[key] != 1 {
				return fmt.Errorf("key %d: %d concurrent holders, want 1", key, holders[key])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
