package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matenet/pin/adapters/store"
	"github.com/matenet/pin/adapters/token"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(store.NewMemoryStore(), nil, logging.Discard())

	_, err := s.Get(ctx)
	assert.ErrorIs(t, err, core.ErrNoSession)

	require.NoError(t, s.Set(ctx, "tok-1"))
	require.NoError(t, s.Set(ctx, "tok-2"))
	tok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, core.ErrNoSession)

	assert.ErrorIs(t, s.Set(ctx, ""), core.ErrInvalidInput)
}

func TestSessionStoreSurvivesReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := store.OpenLevelDBStore(dir)
	require.NoError(t, err)
	require.NoError(t, NewSessionStore(db, nil, nil).Set(ctx, "tok-xyz"))
	require.NoError(t, db.Close())

	db, err = store.OpenLevelDBStore(dir)
	require.NoError(t, err)
	s := NewSessionStore(db, nil, nil)

	tok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", tok)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, db.Close())

	db, err = store.OpenLevelDBStore(dir)
	require.NoError(t, err)
	defer db.Close()
	_, err = NewSessionStore(db, nil, nil).Get(ctx)
	assert.ErrorIs(t, err, core.ErrNoSession)
}

func TestSessionStoreLegacyKey(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemoryStore()
	require.NoError(t, backing.Set(ctx, LegacyTokenKey, "legacy"))

	s := NewSessionStore(backing, nil, nil)
	tok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "legacy", tok)

	require.NoError(t, s.Set(ctx, "fresh"))
	_, err = backing.Get(ctx, LegacyTokenKey)
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	v, err := backing.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	require.NoError(t, backing.Set(ctx, LegacyTokenKey, "legacy"))
	require.NoError(t, s.Clear(ctx))
	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, core.ErrNoSession)
}

func TestSessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	jwtWithExp := func(exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "0xabc",
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		s, err := tok.SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	s := NewSessionStore(store.NewMemoryStore(), token.NewJWTInspector(), nil)
	s.now = func() time.Time { return now }

	live := jwtWithExp(now.Add(time.Minute))
	require.NoError(t, s.Set(ctx, live))
	tok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, live, tok)

	require.NoError(t, s.Set(ctx, jwtWithExp(now.Add(-time.Second))))
	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, core.ErrSessionExpired)
	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, core.ErrNoSession, "expired token is dropped")

	// opaque tokens never expire client side
	require.NoError(t, s.Set(ctx, "opaque"))
	tok, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "opaque", tok)
}

func TestSessionStoreClearIf(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(store.NewMemoryStore(), nil, logging.Discard())

	cleared, err := s.ClearIf(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, cleared)

	require.NoError(t, s.Set(ctx, "tok-2"))
	cleared, err = s.ClearIf(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, cleared, "a newer token survives")
	tok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)

	cleared, err = s.ClearIf(ctx, "tok-2")
	require.NoError(t, err)
	assert.True(t, cleared)
	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, core.ErrNoSession)
}
