// Package keyedlock provides asynchronous locking primitives partitioned by
// a caller-supplied key: acquisitions for different keys proceed in
// parallel, while acquisitions for the same key serialize (or, when
// MaxCount > 1, admit up to MaxCount concurrent holders).
//
// Three variants share the same acquire/release shape but trade off memory
// use, contention behavior, and implementation complexity differently:
//
//   - [KeyedLocker]: a concurrent map from key to a reference-counted
//     releaser, recycled through a pool. Memory use is O(live keys).
//   - [StripedLocker]: a fixed array of semaphores indexed by
//     hash(key) mod N. No map, no reference counting, no pool — O(N)
//     memory, at the cost of distinct keys occasionally sharing a stripe.
//   - [AtomicLocker]: like KeyedLocker but ownership of the map entry,
//     not a reference count, governs its lifecycle. Lower overhead per
//     acquisition, higher map churn, and a narrower correctness envelope —
//     intended for short-lived, low-contention keys.
//
// # Basic usage
//
//	locker := keyedlock.NewKeyedLocker[string]()
//
//	lock, err := locker.Lock(ctx, "some-key")
//	if err != nil {
//	    return err
//	}
//	defer lock.Unlock()
//
// # Non-blocking and timed acquisition
//
//	lock, err := locker.TryLock(ctx, "some-key", 0) // non-blocking
//	if err != nil {
//	    return err
//	}
//	if lock == nil {
//	    // not admitted
//	    return nil
//	}
//	defer lock.Unlock()
//
// # Reentrancy
//
// None of the three variants support reentrant acquisition. A goroutine
// that recursively reacquires a key it already holds will deadlock unless
// MaxCount is at least as large as the recursion depth; this is
// intentional (see the design notes on fairness and reentrancy).
package keyedlock
