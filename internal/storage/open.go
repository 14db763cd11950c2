package storage

import (
	"context"
	"fmt"
	"strings"

	logx "shipwatch/pkg/logx"
)

// Store is the persistence API used by the watcher.
type Store interface {
	// Load reads the full state. Missing or corrupt data yields an empty State.
	Load(ctx context.Context) (State, error)
	// Save replaces the persisted state atomically.
	Save(ctx context.Context, st State) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
