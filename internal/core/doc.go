// Package core implements the keyed-variant locking machinery: a
// reference-counted releaser bound to a bounded counted semaphore, a
// sharded concurrent map from key to releaser, and a pool that recycles
// releaser slots across key churn.
package core
