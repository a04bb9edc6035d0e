// Package kv is the persistent local key-value collaborator: synchronous
// string storage scoped to one profile. It backs the demo transaction list,
// the demo-enabled flag and the cache slots.
package kv

// Store is the minimal surface the rest of the system depends on.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (string, bool, error)

	// Set stores a value, overwriting any previous one.
	Set(key, value string) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key string) error
}
