// Package storage is the key-value persistence port of PagePilot.
//
// Every read-modify-write goes through Store.Update, which is atomic per
// store: two concurrent updates of the same key never lose a write.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// UpdateFunc receives the current value (nil when absent) and returns the
// new value. Returning a nil value deletes the key; returning an error
// aborts the update and leaves the stored value unchanged.
type UpdateFunc func(current []byte) ([]byte, error)

// Store persists opaque values under string keys. Implementations are safe
// for concurrent use.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Update atomically replaces the value under key with fn's result.
	// fn must not call back into the store.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Keys lists keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the store's resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string
}

// Open creates the store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendFile:
		if opts.Path == "" {
			return nil, errors.New("storage: file backend requires a path")
		}
		return NewFileStore(opts.Path)
	case BackendSQLite:
		if opts.Path == "" {
			return nil, errors.New("storage: sqlite backend requires a path")
		}
		return NewSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", opts.Backend)
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
