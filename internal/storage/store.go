package storage

import (
	"context"
	"errors"
)

// Snapshot keys.
const (
	KeyCatalog = "pos:catalog"
	KeyOrders  = "pos:orders"
	KeyHistory = "pos:history"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// Store is a string key-value store holding JSON snapshots.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetMany writes every entry or none of them.
	SetMany(ctx context.Context, entries map[string]string) error
	Close() error
}
