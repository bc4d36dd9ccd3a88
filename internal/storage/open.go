package storage

import (
	"context"
	"fmt"
)

// Options selects and addresses a backend by name.
type Options struct {
	Backend     string
	FileDir     string
	SQLitePath  string
	DatabaseURL string
	RedisURL    string
	ValkeyAddr  string
}

// Open connects to the named backend. Callers decide whether a failure is
// fatal or falls back to Memory.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "memory":
		return NewMemory(), nil
	case "file", "":
		return NewFile(opts.FileDir)
	case "sqlite":
		return OpenSQLite(opts.SQLitePath)
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend needs storage.database_url")
		}
		return OpenPostgres(ctx, opts.DatabaseURL)
	case "redis":
		return OpenRedis(ctx, opts.RedisURL)
	case "valkey":
		return NewValkey(opts.ValkeyAddr)
	}
	return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
}
