package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcenter/authctl/internal/cli/config"
)

func TestSQLiteBackend_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")

	backend, err := OpenSQLiteBackend(path, "http://localhost:8080")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	_, found, err := backend.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, backend.Set(ctx, KeyRefreshToken, "RT1"))
	require.NoError(t, backend.Set(ctx, KeyRefreshToken, "RT2"), "set overwrites")

	value, found, err := backend.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "RT2", value)

	require.NoError(t, backend.Delete(ctx, KeyRefreshToken))
	require.NoError(t, backend.Delete(ctx, KeyRefreshToken))

	_, found, err = backend.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteBackend_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	first, err := OpenSQLiteBackend(path, "local")
	require.NoError(t, err)
	store := NewTokenStore(first, NewMemoryBackend(), zerolog.Nop())
	require.NoError(t, store.Save(ctx, testSession))
	require.NoError(t, first.Close())

	// A new process only has the durable tier to go on
	second, err := OpenSQLiteBackend(path, "local")
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	reopened := NewTokenStore(second, NewMemoryBackend(), zerolog.Nop())
	assert.Equal(t, testSession, reopened.Load(ctx))

	otherServer, err := OpenSQLiteBackend(path, "remote")
	require.NoError(t, err)
	t.Cleanup(func() { otherServer.Close() })
	assert.True(t, NewTokenStore(otherServer, nil, zerolog.Nop()).Load(ctx).IsZero())
}

func TestOpen_SQLiteFromConfig(t *testing.T) {
	ctx := context.Background()
	storage := config.Storage{
		Durable:    config.StorageSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "sessions.db"),
	}

	store, closer, err := Open(ctx, storage, "local", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { closer.Close() })

	require.NoError(t, store.Save(ctx, testSession))
	assert.True(t, store.HasToken(ctx))
}

func TestOpen_UnreachableRedisDegrades(t *testing.T) {
	ctx := context.Background()
	storage := config.Storage{
		Durable:      config.StorageRedis,
		RedisAddress: "127.0.0.1:1",
	}

	store, closer, err := Open(ctx, storage, "local", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { closer.Close() })

	require.NoError(t, store.Save(ctx, testSession))
	assert.Equal(t, testSession, store.Load(ctx))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), config.Storage{Durable: "floppy"}, "local", zerolog.Nop())
	assert.Error(t, err)
}
