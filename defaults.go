package keyedlock

// Default configuration values, exported so callers can reference them when
// building custom configurations relative to the defaults (e.g.
// 2 * DefaultPoolSize).
const (
	// DefaultMaxCount is the maximum number of concurrent admissions per key
	// for the keyed and striped variants.
	DefaultMaxCount = 1

	// DefaultPoolSize is the number of releaser slots a pooled KeyedLocker
	// will hold onto for reuse. 0 disables pooling.
	DefaultPoolSize = 20

	// DefaultPoolInitialFill is the number of releasers pre-allocated into
	// the pool at construction.
	DefaultPoolInitialFill = 1

	// DefaultConcurrencyLevel is the number of internal map shards (rounded
	// up to a power of two) a KeyedLocker uses to stripe lock contention.
	DefaultConcurrencyLevel = 16

	// DefaultStripeCount is the requested stripe count for a StripedLocker
	// when none is supplied; the actual count is the next prime >= this.
	DefaultStripeCount = 31

	// DefaultAtomicPoolSize is the pool size used by an AtomicLocker.
	DefaultAtomicPoolSize = 20

	// DefaultAtomicPoolInitialFill is the initial pool fill used by an
	// AtomicLocker.
	DefaultAtomicPoolInitialFill = 1
)
