package auth

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping redis container test in short mode")
	}

	ctx := context.Background()
	rdb := getRedisClient(t)

	backend := NewRedisBackend(rdb, "http://localhost:8080")
	store := NewTokenStore(backend, NewMemoryBackend(), zerolog.Nop())

	require.NoError(t, store.Save(ctx, testSession))

	value, err := rdb.Get(ctx, "authctl:http://localhost:8080/access_token").Result()
	require.NoError(t, err)
	assert.Equal(t, "AT1", value)

	// A second store sharing the redis instance sees the same session
	shared := NewTokenStore(NewRedisBackend(rdb, "http://localhost:8080"), nil, zerolog.Nop())
	assert.Equal(t, testSession, shared.Load(ctx))

	require.NoError(t, store.Clear(ctx))
	assert.True(t, shared.Load(ctx).IsZero())
}

func getRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()
	server, err := testcontainers.Run(
		ctx, "redis:latest",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, server)
	require.NoError(t, err)

	endpoint, err := server.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}
