// Package persistence selects the dashboard store backend.
package persistence

import (
	"context"
	"fmt"
	"io"

	"gridboard/internal/config"
	"gridboard/internal/infra/persistence/memory"
	"gridboard/internal/infra/persistence/postgres"
	"gridboard/internal/infra/persistence/sqlite"
	"gridboard/pkg/dashboard"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // resets on restart (default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Open returns the store named by cfg.StorageDriver.
func Open(ctx context.Context, cfg config.Config) (dashboard.Store, error) {
	switch StorageDriver(cfg.StorageDriver) {
	case StorageMemory, "":
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}

// Close releases the store when the backend holds resources.
func Close(store dashboard.Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
