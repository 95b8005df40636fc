// Package blob defines the durable key-value byte store that holds
// serialized document indices. Any backend satisfying Store works; a
// filesystem is not assumed.
package blob

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound reports that no record exists for the key.
var ErrNotFound = errors.New("blob: key not found")

// Store is a durable key-value byte store keyed by document ID.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// NewStore creates a store of the given backend type.
// Supported backends: "disk" (default), "sqlite".
func NewStore(backend, indexDir, databasePath string) (Store, error) {
	switch backend {
	case "disk", "":
		return NewDiskStore(indexDir)
	case "sqlite":
		return NewSQLiteStore(databasePath)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: disk, sqlite)", backend)
	}
}
