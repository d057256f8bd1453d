package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/authcenter/authctl/internal/cli/config"
	"github.com/authcenter/authctl/internal/cli/userconfig"
)

const sessionDBFileName = "sessions.db"

// Open builds a TokenStore for one server from the storage configuration.
// The ephemeral tier is always an in-process memory backend. A durable
// backend that cannot be opened is logged and skipped, never fatal.
// The returned closer releases the durable backend's resources.
func Open(ctx context.Context, storage config.Storage, namespace string, logger zerolog.Logger) (*TokenStore, io.Closer, error) {
	durable, closer, err := openDurable(ctx, storage, namespace)
	if err != nil {
		if errors.Is(err, errUnknownBackend) {
			return nil, nil, err
		}
		logger.Warn().Err(err).Str("backend", storage.Backend()).Msg("Durable session storage unavailable, using ephemeral storage only")
		durable, closer = nil, nopCloser{}
	}

	store := NewTokenStore(durable, NewMemoryBackend(), logger)
	store.Load(ctx)
	return store, closer, nil
}

var errUnknownBackend = errors.New("unknown storage backend")

func openDurable(ctx context.Context, storage config.Storage, namespace string) (Backend, io.Closer, error) {
	switch storage.Backend() {
	case config.StorageKeyring:
		return NewKeyringBackend(namespace), nopCloser{}, nil

	case config.StorageSQLite:
		path := storage.SQLitePath
		if path == "" {
			dir, err := userconfig.Dir()
			if err != nil {
				return nil, nil, err
			}
			path = filepath.Join(dir, sessionDBFileName)
		}
		backend, err := OpenSQLiteBackend(path, namespace)
		if err != nil {
			return nil, nil, err
		}
		return backend, backend, nil

	case config.StorageRedis:
		addr := storage.RedisAddress
		if addr == "" {
			addr = "localhost:6379"
		}
		rdb := redis.NewClient(&redis.Options{Addr: addr, DB: storage.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
		}
		backend := NewRedisBackend(rdb, namespace)
		return backend, backend, nil

	case config.StorageNone:
		return nil, nopCloser{}, nil
	}

	return nil, nil, fmt.Errorf("%w: %s", errUnknownBackend, storage.Durable)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
