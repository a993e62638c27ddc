package store

import (
	"context"
)

// Logical document keys.
const (
	KeyTasks     = "Tasks"
	KeyFavorites = "favoriteLocations"
)

// Store defines the load/save capability for whole-collection documents.
type Store interface {
	// Load returns the payload stored under key, or nil when nothing is stored.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the payload stored under key.
	Save(ctx context.Context, key string, payload []byte) error

	// Lifecycle
	Close() error
}
