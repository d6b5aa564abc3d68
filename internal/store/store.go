// Package store provides the durable key-value storage behind the prayer
// cache. Values are opaque bytes (JSON in practice); keys are short ASCII
// strings such as "prayer_times_2025" or "last_location".
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("store: key not found")

// Store is a string-keyed byte store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Keys returns every key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// RemovePrefix deletes every key starting with prefix and reports how
	// many were removed.
	RemovePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Backend names accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
	KindMemory = "memory"
)

// Kinds lists the valid backend names.
var Kinds = []string{KindFile, KindSQLite, KindRedis, KindMemory}

// Options selects and configures a backend.
type Options struct {
	Kind          string
	Dir           string // file and sqlite backends
	RedisAddr     string
	RedisPassword string
}

// Open returns the backend named by opts.Kind. An empty kind means file.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Kind) {
	case "", KindFile:
		return NewFile(opts.Dir)
	case KindSQLite:
		dir, err := resolveDir(opts.Dir)
		if err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, filepath.Join(dir, "mawaqit.db"))
	case KindRedis:
		if opts.RedisAddr == "" {
			return nil, errors.New("redis store requires redis_addr")
		}
		return NewRedis(ctx, opts.RedisAddr, opts.RedisPassword)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store %q; valid: %s", opts.Kind, strings.Join(Kinds, ", "))
	}
}

// DefaultDir returns ~/.cache/mawaqit.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "mawaqit"), nil
}

func resolveDir(dir string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create cache directory %s: %w", dir, err)
	}
	return dir, nil
}
