package storage

import (
	"context"
	"errors"
	"fmt"

	"spool/internal/config"
)

// ErrNotFound is returned by Download when no object exists at a locator.
var ErrNotFound = errors.New("object not found")

// Backend stores sealed chunks. Implementations must be safe for concurrent
// use; completions may arrive in any order.
type Backend interface {
	Upload(ctx context.Context, chunkID string, data []byte) (string, error)
	Download(ctx context.Context, location string) ([]byte, error)
}

// SpaceReporter is implemented by backends that can report free capacity.
type SpaceReporter interface {
	FreeBytes() (uint64, error)
}

// Describer is implemented by backends that can name themselves in logs.
type Describer interface {
	Describe() string
}

// Open constructs the backend selected by cfg.
func Open(cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, errors.New("storage: config is required")
	}
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		return NewLocal(cfg.Storage.Dir)
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}
}
