package atomicmap

import "fmt"

// sprintKey renders a key for singleflight.Group.Do's string-keyed dedup.
// A Map only ever sees keys of a single type K, so formatting collisions
// across unrelated types cannot occur; a caller with keys whose %v
// representation is ambiguous within K itself should supply Config.KeyString.
func sprintKey[K comparable](k K) string {
	return fmt.Sprintf("%v", k)
}
