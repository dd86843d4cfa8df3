package keyedlock

import (
	"errors"
	"fmt"
)

// requirePositive panics if v <= 0 with a descriptive message.
// Option values are typically compile-time constants, so an invalid value
// here indicates a programmer error rather than a runtime condition — the
// panic mirrors regexp.MustCompile: fail fast at construction instead of
// returning an error that would be universally fatal anyway.
func requirePositive(name string, v int) {
	if v <= 0 {
		panic(fmt.Sprintf("keyedlock: %s must be greater than 0, got %d", name, v))
	}
}

// requireNonNegative panics if v < 0. Use for values where 0 has special
// meaning (pool size, where 0 disables pooling).
func requireNonNegative(name string, v int) {
	if v < 0 {
		panic(fmt.Sprintf("keyedlock: %s must not be negative, got %d", name, v))
	}
}

// keyedConfig holds the resolved configuration for a KeyedLocker.
type keyedConfig[K comparable] struct {
	MaxCount         int
	PoolSize         int
	PoolInitialFill  int
	ConcurrencyLevel int
	InitialCapacity  int
	Hasher           func(K) uint64
}

func newKeyedConfig[K comparable]() keyedConfig[K] {
	return keyedConfig[K]{
		MaxCount:         DefaultMaxCount,
		PoolSize:         DefaultPoolSize,
		PoolInitialFill:  DefaultPoolInitialFill,
		ConcurrencyLevel: DefaultConcurrencyLevel,
	}
}

// validate checks keyedConfig invariants and returns an error describing
// every violation found, joined with errors.Join. Individual With* functions
// already panic on an out-of-range value for the field they set, but a
// cross-field invariant — PoolInitialFill must not exceed PoolSize when
// pooling is enabled (PoolSize 0 ignores the fill) — can
// only be checked once every option has been applied. validate is called by
// NewKeyedLocker, which panics on a non-nil result: an invalid resolved
// config is a programmer error, the same fail-fast policy as the
// individual With* functions, just applied once to the fully-assembled
// config instead of field by field.
func (c keyedConfig[K]) validate() error {
	var errs []error
	if c.MaxCount < 1 {
		errs = append(errs, fmt.Errorf("max count must be greater than 0, got %d", c.MaxCount))
	}
	if c.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("pool size must not be negative, got %d", c.PoolSize))
	}
	if c.PoolInitialFill < -1 {
		errs = append(errs, fmt.Errorf("pool initial fill must be >= -1, got %d", c.PoolInitialFill))
	}
	if c.PoolSize > 0 && c.PoolInitialFill > c.PoolSize {
		errs = append(errs, fmt.Errorf("pool initial fill (%d) must not exceed pool size (%d)", c.PoolInitialFill, c.PoolSize))
	}
	if c.ConcurrencyLevel < 1 {
		errs = append(errs, fmt.Errorf("concurrency level must be greater than 0, got %d", c.ConcurrencyLevel))
	}
	if c.InitialCapacity < 0 {
		errs = append(errs, fmt.Errorf("initial capacity must not be negative, got %d", c.InitialCapacity))
	}
	return errors.Join(errs...)
}

// KeyedLockerOption configures a KeyedLocker during construction via
// NewKeyedLocker. Each With* function returns a KeyedLockerOption that sets
// a specific field.
type KeyedLockerOption[K comparable] func(*keyedConfig[K])

// WithMaxCount sets the maximum number of concurrent admissions per key.
//
// Default: [DefaultMaxCount].
//
// Panics if n < 1.
func WithMaxCount[K comparable](n int) KeyedLockerOption[K] {
	requirePositive("max count", n)
	return func(c *keyedConfig[K]) { c.MaxCount = n }
}

// WithPoolSize sets the number of releaser slots kept for reuse. A value of
// 0 disables pooling: every acquisition of a new key allocates a fresh
// releaser and every release of the last reference discards it.
//
// Default: [DefaultPoolSize].
//
// Panics if n < 0.
func WithPoolSize[K comparable](n int) KeyedLockerOption[K] {
	requireNonNegative("pool size", n)
	return func(c *keyedConfig[K]) { c.PoolSize = n }
}

// WithPoolInitialFill sets how many releasers are pre-allocated into the
// pool at construction. A value of -1 means "fill completely" (equal to
// the configured pool size).
//
// Default: [DefaultPoolInitialFill].
//
// Panics if n < -1 or, when pooling is enabled, n is greater than the
// configured pool size (checked at construction, not here, since pool size
// may be set by a later option). With a pool size of 0 the fill is ignored.
func WithPoolInitialFill[K comparable](n int) KeyedLockerOption[K] {
	if n < -1 {
		panic(fmt.Sprintf("keyedlock: pool initial fill must be >= -1, got %d", n))
	}
	return func(c *keyedConfig[K]) { c.PoolInitialFill = n }
}

// WithConcurrencyLevel sets the number of internal map shards used to
// stripe lock contention across keys. Rounded up to the next power of two.
//
// Default: [DefaultConcurrencyLevel].
//
// Panics if n < 1.
func WithConcurrencyLevel[K comparable](n int) KeyedLockerOption[K] {
	requirePositive("concurrency level", n)
	return func(c *keyedConfig[K]) { c.ConcurrencyLevel = n }
}

// WithInitialCapacity hints the total number of distinct keys expected to
// be live at once, distributed evenly across shards to reduce rehashing.
//
// Panics if n < 0.
func WithInitialCapacity[K comparable](n int) KeyedLockerOption[K] {
	requireNonNegative("initial capacity", n)
	return func(c *keyedConfig[K]) { c.InitialCapacity = n }
}

// WithHasher overrides the default key hash function, which otherwise
// derives from hash/maphash.Comparable. Use when K's natural hash
// distributes poorly for the expected key population.
//
// Panics if fn is nil.
func WithHasher[K comparable](fn func(K) uint64) KeyedLockerOption[K] {
	if fn == nil {
		panic("keyedlock: hasher must not be nil")
	}
	return func(c *keyedConfig[K]) { c.Hasher = fn }
}

// stripedConfig holds the resolved configuration for a StripedLocker.
type stripedConfig[K comparable] struct {
	StripeCount int
	MaxCount    int
	Hasher      func(K) uint64
}

func newStripedConfig[K comparable]() stripedConfig[K] {
	return stripedConfig[K]{
		StripeCount: DefaultStripeCount,
		MaxCount:    DefaultMaxCount,
	}
}

// validate checks stripedConfig invariants, joined with errors.Join. See
// [keyedConfig.validate] for why this exists alongside the panicking With*
// functions.
func (c stripedConfig[K]) validate() error {
	var errs []error
	if c.StripeCount < 1 {
		errs = append(errs, fmt.Errorf("stripe count must be greater than 0, got %d", c.StripeCount))
	}
	if c.MaxCount < 1 {
		errs = append(errs, fmt.Errorf("max count must be greater than 0, got %d", c.MaxCount))
	}
	return errors.Join(errs...)
}

// StripedLockerOption configures a StripedLocker during construction via
// NewStripedLocker.
type StripedLockerOption[K comparable] func(*stripedConfig[K])

// WithStripeCount sets the requested number of stripes; the actual count
// used is the next prime >= n, for better hash distribution.
//
// Default: [DefaultStripeCount].
//
// Panics if n < 1.
func WithStripeCount[K comparable](n int) StripedLockerOption[K] {
	requirePositive("stripe count", n)
	return func(c *stripedConfig[K]) { c.StripeCount = n }
}

// WithStripedMaxCount sets the maximum number of concurrent admissions per
// stripe.
//
// Default: [DefaultMaxCount].
//
// Panics if n < 1.
func WithStripedMaxCount[K comparable](n int) StripedLockerOption[K] {
	requirePositive("max count", n)
	return func(c *stripedConfig[K]) { c.MaxCount = n }
}

// WithStripedHasher overrides the default key hash function used to select
// a stripe.
//
// Panics if fn is nil.
func WithStripedHasher[K comparable](fn func(K) uint64) StripedLockerOption[K] {
	if fn == nil {
		panic("keyedlock: hasher must not be nil")
	}
	return func(c *stripedConfig[K]) { c.Hasher = fn }
}

// atomicConfig holds the resolved configuration for an AtomicLocker.
//
// MaxCount is fixed at 1 and not exposed as an option: the atomic variant is
// defined (spec §4.5) as the simplification of the keyed variant that
// applies specifically when MaxCount == 1 and reference counting is
// unnecessary: ownership alone governs the entry's lifecycle. A
// configurable MaxCount > 1 would reintroduce the need to track how many
// holders must release before the owner tears the entry down — reference
// counting again — which is exactly what this variant exists to avoid.
type atomicConfig[K comparable] struct {
	PoolSize        int
	PoolInitialFill int
	KeyString       func(K) string
}

func newAtomicConfig[K comparable]() atomicConfig[K] {
	return atomicConfig[K]{
		PoolSize:        DefaultAtomicPoolSize,
		PoolInitialFill: DefaultAtomicPoolInitialFill,
	}
}

// validate checks atomicConfig invariants, joined with errors.Join. See
// [keyedConfig.validate] for why this exists alongside the panicking With*
// functions.
func (c atomicConfig[K]) validate() error {
	var errs []error
	if c.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("pool size must not be negative, got %d", c.PoolSize))
	}
	if c.PoolInitialFill < -1 {
		errs = append(errs, fmt.Errorf("pool initial fill must be >= -1, got %d", c.PoolInitialFill))
	}
	if c.PoolInitialFill > c.PoolSize {
		errs = append(errs, fmt.Errorf("pool initial fill (%d) must not exceed pool size (%d)", c.PoolInitialFill, c.PoolSize))
	}
	return errors.Join(errs...)
}

// AtomicLockerOption configures an AtomicLocker during construction via
// NewAtomicLocker.
type AtomicLockerOption[K comparable] func(*atomicConfig[K])

// WithAtomicPoolSize sets the number of semaphore slots kept for reuse.
//
// Default: [DefaultAtomicPoolSize].
//
// Panics if n < 0.
func WithAtomicPoolSize[K comparable](n int) AtomicLockerOption[K] {
	requireNonNegative("pool size", n)
	return func(c *atomicConfig[K]) { c.PoolSize = n }
}

// WithAtomicPoolInitialFill sets how many semaphores are pre-allocated into
// the pool at construction. A value of -1 means "fill completely".
//
// Default: [DefaultAtomicPoolInitialFill].
//
// Panics if n < -1.
func WithAtomicPoolInitialFill[K comparable](n int) AtomicLockerOption[K] {
	if n < -1 {
		panic(fmt.Sprintf("keyedlock: pool initial fill must be >= -1, got %d", n))
	}
	return func(c *atomicConfig[K]) { c.PoolInitialFill = n }
}

// WithKeyString overrides how a key is rendered to the string singleflight
// dedup requires internally. The default is fmt.Sprintf("%v", key); supply
// this when K's default formatting is ambiguous (distinct keys that format
// identically would otherwise collapse onto the same dedup bucket: a caller
// whose key shares an in-flight call with another key is handed that other
// key's semaphore as a non-owner, and no entry is recorded for its own key).
//
// Panics if fn is nil.
func WithKeyString[K comparable](fn func(K) string) AtomicLockerOption[K] {
	if fn == nil {
		panic("keyedlock: key string function must not be nil")
	}
	return func(c *atomicConfig[K]) { c.KeyString = fn }
}
