// Package store provides the persisted key-value store behind conversation history.
package store

import (
	"errors"
	"fmt"
)

// ErrInvalidKey is returned for keys that cannot be stored
var ErrInvalidKey = errors.New("invalid store key")

// Store is a string key-value store. Values are opaque text (JSON in practice).
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it exists
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Delete removes key; deleting a missing key is not an error
	Delete(key string) error
	// Keys lists stored keys starting with prefix, sorted
	Keys(prefix string) ([]string, error)
	Close() error
}

// Open builds the store for backend ("file" or "sqlite") rooted at path
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "file":
		return OpenFile(path)
	case "sqlite":
		return OpenSQLite(path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// validateKey keeps keys usable as file names
func validateKey(key string) error {
	if key == "" || len(key) > 200 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, c := range key {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' || c == '.') {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	if key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
