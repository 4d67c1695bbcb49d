package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	logx "gardenbot/pkg/logx"
)

// Store is the minimal persistence API used by the watcher and the sticker
// registry: durable key -> JSON values with whole-value overwrite.
type Store interface {
	// Get returns the stored value for key, ok=false when the key is absent.
	Get(ctx context.Context, key string) (val json.RawMessage, ok bool, err error)
	// Put replaces the whole value for key.
	Put(ctx context.Context, key string, val json.RawMessage) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
