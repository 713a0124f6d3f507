// Package storage provides the key-value string store that collected
// training data is persisted to.
//
// Three backends are available: an in-memory map that lives as long as the
// process, BadgerDB on local disk, and Redis. Keys are flat strings; callers
// namespace them with Key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chaz8081/gostt-slider/internal/config"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("storage: not found")

// Store is a key-value store of string values.
type Store interface {
	// Get retrieves the value for key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. No error if the key does not exist.
	Delete(ctx context.Context, key string) error
	// Close releases any resources held by the store.
	Close() error
}

// Key joins a namespace prefix and a name with ':'. An empty prefix
// returns name unchanged.
func Key(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

// New creates a Store for the configured backend. logger receives backend
// diagnostics and may be nil.
func New(cfg *config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemory(), nil
	case "badger":
		return NewBadger(BadgerOptions{Dir: cfg.Dir, Logger: logger})
	case "redis":
		return NewRedis(cfg.Addr, cfg.Password)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q (supported: memory, badger, redis)", cfg.Backend)
	}
}
