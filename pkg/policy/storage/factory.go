package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"policykeeper-hq/policykeeper/pkg/config"
	"policykeeper-hq/policykeeper/pkg/policy"
)

// Open creates the storage backend described by cfg. For SQLite the parent
// directory of the database file is created if missing.
func Open(cfg *config.StorageConfig) (policy.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil

	case "sqlite":
		if cfg.SQLite.Path != ":memory:" {
			if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, policy.NewStorageError("sqlite", "mkdir", err)
				}
			}
		}
		return NewSQLiteStorage(&SQLiteConfig{
			Driver:       cfg.SQLite.Driver,
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
