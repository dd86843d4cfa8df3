package keyedlock

import "github.com/markcv/keyedlock/internal/sentinel"

// Sentinel errors for error inspection with errors.Is.
//
// These use the sentinel.Error const pattern instead of errors.New vars:
// sentinel.Error is a string type implementing error, so it can be declared
// as a const, preventing accidental reassignment, while remaining compatible
// with errors.Is through Go's default == comparison on comparable types.
const (
	// ErrClosed is returned by an acquire operation issued on a locker that
	// has already had Close called. Acquisitions racing with a concurrent
	// Close may either succeed normally or observe this error; both are
	// acceptable per spec §7's "post-disposal use: unspecified".
	ErrClosed sentinel.Error = "keyedlock: locker is closed"
)
