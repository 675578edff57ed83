package core

import (
	"context"
	"fmt"
	"path/filepath"

	"stockroom/internal/infra/persistence/csvfile"
	"stockroom/internal/infra/persistence/memory"
	"stockroom/internal/infra/persistence/postgres"
	"stockroom/internal/infra/persistence/sqlite"
	"stockroom/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageCSV      StorageDriver = "csv"      // three CSV files in the data directory
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// StorageConfig selects and parameterises the persistent store.
type StorageConfig struct {
	Driver      StorageDriver
	DataDir     string
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore opens the backend named by cfg.Driver (csv when empty).
// The optional memory options are forwarded to the underlying in-memory model.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine, opts ...memory.Option) (PersistentStore, error) {
	switch cfg.Driver {
	case "", StorageCSV:
		store, err := NewCSVStore(cfg.DataDir, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case StorageSQLite:
		path := cfg.SQLitePath
		if path == "" && cfg.DataDir != "" {
			path = filepath.Join(cfg.DataDir, "stockroom.db")
		}
		store, err := NewSQLiteStore(path, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := NewPostgresStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// NewCSVStore constructs the CSV-file store rooted at dir.
func NewCSVStore(dir string, engine *RulesEngine, opts ...memory.Option) (*csvfile.Store, error) {
	return csvfile.NewStore(dir, engine, opts...)
}

// NewSQLiteStore constructs a SQLite-backed store at path (may be empty for default).
func NewSQLiteStore(path string, engine *RulesEngine, opts ...memory.Option) (*sqlite.Store, error) {
	return sqlite.NewStore(path, engine, opts...)
}

// NewPostgresStore constructs a Postgres-backed store from the provided DSN.
func NewPostgresStore(ctx context.Context, dsn string, engine *RulesEngine, opts ...memory.Option) (*postgres.Store, error) {
	return postgres.NewStore(ctx, dsn, engine, opts...)
}

// LoadWarnings returns the recovery notices a store produced while loading, if it keeps any.
func LoadWarnings(store PersistentStore) []string {
	if w, ok := store.(interface{ Warnings() []string }); ok {
		return w.Warnings()
	}
	return nil
}
