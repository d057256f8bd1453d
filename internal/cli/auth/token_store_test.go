package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// failingBackend simulates a disabled or full storage tier
type failingBackend struct {
	err error
}

func (f *failingBackend) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f *failingBackend) Set(context.Context, string, string) error        { return f.err }
func (f *failingBackend) Delete(context.Context, string) error             { return f.err }

var errQuotaExceeded = errors.New("quota exceeded")

// degradingBackend is a memory backend whose writes start failing once
// rejectAfter keys have been written. Deletes fail only when rejectDeletes is set.
type degradingBackend struct {
	*MemoryBackend
	writes        int
	rejectAfter   int
	rejectDeletes bool
}

func newDegradingBackend() *degradingBackend {
	return &degradingBackend{MemoryBackend: NewMemoryBackend(), rejectAfter: -1}
}

func (d *degradingBackend) Set(ctx context.Context, key, value string) error {
	if d.rejectAfter >= 0 && d.writes >= d.rejectAfter {
		return errQuotaExceeded
	}
	d.writes++
	return d.MemoryBackend.Set(ctx, key, value)
}

func (d *degradingBackend) Delete(ctx context.Context, key string) error {
	if d.rejectDeletes {
		return errQuotaExceeded
	}
	return d.MemoryBackend.Delete(ctx, key)
}

// fail makes every write after the next n keys fail
func (d *degradingBackend) fail(n int) {
	d.rejectAfter = d.writes + n
}

var testSession = Session{AccessToken: "AT1", RefreshToken: "RT1", UserID: "U1"}

func newTestStore(durable, ephemeral Backend) *TokenStore {
	return NewTokenStore(durable, ephemeral, zerolog.Nop())
}

func TestTokenStore_SaveWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	durable, ephemeral := NewMemoryBackend(), NewMemoryBackend()
	store := newTestStore(durable, ephemeral)

	require.NoError(t, store.Save(ctx, testSession))

	for _, b := range []*MemoryBackend{durable, ephemeral} {
		value, found, err := b.Get(ctx, KeyAccessToken)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "AT1", value)
		assert.Equal(t, 3, b.Len())
	}

	assert.Equal(t, testSession, store.Load(ctx))
	assert.True(t, store.HasToken(ctx))
}

func TestTokenStore_SaveRequiresAllFields(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryBackend()
	store := newTestStore(durable, NewMemoryBackend())

	tests := []Session{
		{RefreshToken: "RT1", UserID: "U1"},
		{AccessToken: "AT1", UserID: "U1"},
		{AccessToken: "AT1", RefreshToken: "RT1"},
	}
	for _, s := range tests {
		err := store.Save(ctx, s)
		assert.ErrorIs(t, err, ErrIncompleteSession)
	}
	assert.Equal(t, 0, durable.Len(), "nothing should be persisted for incomplete sessions")
	assert.True(t, store.Session().IsZero())
}

func TestTokenStore_LoadPrefersDurablePerField(t *testing.T) {
	ctx := context.Background()
	durable, ephemeral := NewMemoryBackend(), NewMemoryBackend()

	require.NoError(t, durable.Set(ctx, KeyAccessToken, "durable-at"))
	require.NoError(t, ephemeral.Set(ctx, KeyAccessToken, "ephemeral-at"))
	require.NoError(t, ephemeral.Set(ctx, KeyRefreshToken, "ephemeral-rt"))
	require.NoError(t, ephemeral.Set(ctx, KeyUserID, "ephemeral-user"))

	got := newTestStore(durable, ephemeral).Load(ctx)

	assert.Equal(t, Session{
		AccessToken:  "durable-at",
		RefreshToken: "ephemeral-rt",
		UserID:       "ephemeral-user",
	}, got)
}

func TestTokenStore_DurableFailureDegradesToEphemeral(t *testing.T) {
	ctx := context.Background()
	ephemeral := NewMemoryBackend()
	store := newTestStore(&failingBackend{err: errQuotaExceeded}, ephemeral)

	require.NoError(t, store.Save(ctx, testSession), "durable failure must not block the caller")
	assert.Equal(t, 3, ephemeral.Len())

	// Read errors on the durable tier fall back to the ephemeral copy
	assert.Equal(t, testSession, store.Load(ctx))
}

func TestTokenStore_DurableFailureDoesNotResurrectOldSession(t *testing.T) {
	rotated := Session{AccessToken: "AT2", RefreshToken: "RT2", UserID: "U1"}

	tests := []struct {
		name          string
		acceptedKeys  int
		rejectDeletes bool
	}{
		{"writes rejected", 0, false},
		{"partial write", 1, false},
		{"writes and deletes rejected", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			durable, ephemeral := newDegradingBackend(), NewMemoryBackend()
			store := newTestStore(durable, ephemeral)

			require.NoError(t, store.Save(ctx, testSession))

			durable.fail(tt.acceptedKeys)
			durable.rejectDeletes = tt.rejectDeletes
			require.NoError(t, store.Save(ctx, rotated))

			assert.Equal(t, rotated, store.Load(ctx))
			assert.True(t, store.HasToken(ctx))
			assert.Equal(t, rotated, store.Session(), "Load must not put the old session back in memory")

			if !tt.rejectDeletes {
				assert.Equal(t, 0, durable.Len(), "stale durable fields are removed")
			}
		})
	}
}

func TestTokenStore_DurableRecoversAfterSuccessfulSave(t *testing.T) {
	ctx := context.Background()
	durable, ephemeral := newDegradingBackend(), NewMemoryBackend()
	store := newTestStore(durable, ephemeral)

	durable.fail(0)
	require.NoError(t, store.Save(ctx, testSession))

	durable.rejectAfter = -1
	rotated := Session{AccessToken: "AT2", RefreshToken: "RT2", UserID: "U1"}
	require.NoError(t, store.Save(ctx, rotated))
	assert.Equal(t, 3, durable.Len())

	// A fresh store over the same durable tier sees the latest session
	assert.Equal(t, rotated, newTestStore(durable, NewMemoryBackend()).Load(ctx))
}

func TestTokenStore_SaveFailsWhenNoTierAccepts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(&failingBackend{err: errQuotaExceeded}, &failingBackend{err: errQuotaExceeded})

	err := store.Save(ctx, testSession)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.ErrorIs(t, err, errQuotaExceeded)

	// The in-memory copy still serves the running process
	assert.Equal(t, testSession, store.Session())
}

func TestTokenStore_SaveErrorOnlyNamesConfiguredTiers(t *testing.T) {
	ctx := context.Background()

	err := newTestStore(nil, &failingBackend{err: errQuotaExceeded}).Save(ctx, testSession)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.ErrorIs(t, err, errQuotaExceeded)
	assert.NotContains(t, err.Error(), "not configured")

	err = newTestStore(nil, nil).Save(ctx, testSession)
	assert.Equal(t, ErrNotPersisted, err)
}

func TestTokenStore_NilDurableTier(t *testing.T) {
	ctx := context.Background()
	ephemeral := NewMemoryBackend()
	store := newTestStore(nil, ephemeral)

	require.NoError(t, store.Save(ctx, testSession))
	assert.Equal(t, testSession, store.Load(ctx))
	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, ephemeral.Len())
}

func TestTokenStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	durable, ephemeral := NewMemoryBackend(), NewMemoryBackend()
	store := newTestStore(durable, ephemeral)
	require.NoError(t, store.Save(ctx, testSession))

	require.NoError(t, store.Clear(ctx))
	first := store.Load(ctx)

	require.NoError(t, store.Clear(ctx))
	second := store.Load(ctx)

	assert.True(t, first.IsZero())
	assert.Equal(t, first, second)
	assert.Equal(t, 0, durable.Len())
	assert.Equal(t, 0, ephemeral.Len())
	assert.False(t, store.HasToken(ctx))
}

func TestTokenStore_ClearAlwaysEmptiesMemory(t *testing.T) {
	ctx := context.Background()
	ephemeral := NewMemoryBackend()
	store := newTestStore(&failingBackend{err: errQuotaExceeded}, ephemeral)
	require.NoError(t, store.Save(ctx, testSession))

	err := store.Clear(ctx)
	assert.ErrorIs(t, err, errQuotaExceeded)
	assert.True(t, store.Session().IsZero())
	assert.Equal(t, 0, ephemeral.Len())
}

func TestTokenStore_IndependentInstances(t *testing.T) {
	ctx := context.Background()
	a := newTestStore(NewMemoryBackend(), NewMemoryBackend())
	b := newTestStore(NewMemoryBackend(), NewMemoryBackend())

	require.NoError(t, a.Save(ctx, testSession))

	assert.True(t, a.HasToken(ctx))
	assert.False(t, b.HasToken(ctx))
}

func TestKeyringBackend(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	local := NewKeyringBackend("http://localhost:8080")
	other := NewKeyringBackend("https://auth.example.com")

	require.NoError(t, local.Set(ctx, KeyAccessToken, "AT1"))

	value, found, err := local.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "AT1", value)

	_, found, err = other.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, found, "keys are scoped per server")

	require.NoError(t, local.Delete(ctx, KeyAccessToken))
	require.NoError(t, local.Delete(ctx, KeyAccessToken), "deleting twice is not an error")

	_, found, err = local.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeyringBackend_UnavailableDegrades(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	t.Cleanup(keyring.MockInit)
	ctx := context.Background()

	ephemeral := NewMemoryBackend()
	store := newTestStore(NewKeyringBackend("http://localhost:8080"), ephemeral)

	require.NoError(t, store.Save(ctx, testSession))
	assert.Equal(t, testSession, store.Load(ctx))
}
