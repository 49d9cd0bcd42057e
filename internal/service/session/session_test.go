package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/scijournal/internal/service/storage"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestSetAndClearToken(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s, err := New(ctx, store)
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, s.SetToken(ctx, "abc"))
	assert.True(t, s.IsAuthenticated())
	v, ok, _ := store.Get(ctx, storage.KeyToken)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.ClearToken(ctx))
	assert.False(t, s.IsAuthenticated())
	_, ok, _ = store.Get(ctx, storage.KeyToken)
	assert.False(t, ok)
}

func TestRestoreFromStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "opaque-token"))

	s, err := New(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", s.Token())
}

func TestExpiredJWTClearedAtStartup(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyToken, signed(t, time.Now().Add(-time.Hour))))

	s, err := New(ctx, store)
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
	_, ok, _ := store.Get(ctx, storage.KeyToken)
	assert.False(t, ok)
}

func TestValidJWTKept(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	token := signed(t, time.Now().Add(time.Hour))
	require.NoError(t, store.Set(ctx, storage.KeyToken, token))

	s, err := New(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, token, s.Token())
}

func TestOnChangeAndClearIfCurrent(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, storage.NewMemoryStore())
	require.NoError(t, err)

	var states []State
	cancel := s.OnChange(func(st State) { states = append(states, st) })

	require.NoError(t, s.SetToken(ctx, "first"))
	cleared, err := s.ClearIfCurrent(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.True(t, s.IsAuthenticated())

	cleared, err = s.ClearIfCurrent(ctx, "first")
	require.NoError(t, err)
	assert.True(t, cleared)

	cancel()
	require.NoError(t, s.SetToken(ctx, "again"))

	require.Len(t, states, 2)
	assert.True(t, states[0].Authenticated)
	assert.False(t, states[1].Authenticated)
}

func TestReloadPicksUpExternalWrite(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s, err := New(ctx, store)
	require.NoError(t, err)

	changed := 0
	s.OnChange(func(State) { changed++ })

	require.NoError(t, store.Set(ctx, storage.KeyToken, "from-other-process"))
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, "from-other-process", s.Token())
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, 1, changed)
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestSetTokenUpdatesMemoryEvenIfPersistFails(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, failingStore{storage.NewMemoryStore()})
	require.NoError(t, err)

	assert.Error(t, s.SetToken(ctx, "abc"))
	assert.Equal(t, "abc", s.Token())
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, TokenExpired("not-a-jwt", now))
	assert.True(t, TokenExpired(signed(t, now.Add(-time.Minute)), now))
	assert.False(t, TokenExpired(signed(t, now.Add(time.Minute)), now))
}
