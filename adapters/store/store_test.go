package store

import (
	"context"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

func exerciseStore(t *testing.T, s ports.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "siwe_jwt")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "siwe_jwt", "tok-1"))
	require.NoError(t, s.Set(ctx, "siwe_jwt", "tok-2"))

	v, err := s.Get(ctx, "siwe_jwt")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", v)

	require.NoError(t, s.Delete(ctx, "siwe_jwt"))
	_, err = s.Get(ctx, "siwe_jwt")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	// deleting a missing key is not an error
	assert.NoError(t, s.Delete(ctx, "siwe_jwt"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestLevelDBStore(t *testing.T) {
	s, err := OpenLevelDBStorage(storage.NewMemStorage())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestLevelDBStoreSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "session")
	ctx := context.Background()

	s, err := OpenLevelDBStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "siwe_jwt", "tok-xyz"))
	require.NoError(t, s.Close())

	reopened, err := OpenLevelDBStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "siwe_jwt")
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", v)
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := DialRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	exerciseStore(t, NewRedisStore(client))

	require.NoError(t, NewRedisStore(client).Set(context.Background(), "k", "v"))
	assert.True(t, mr.Exists("pin:k"))
}

func TestDialRedisUnreachable(t *testing.T) {
	_, err := DialRedis(context.Background(), "redis://127.0.0.1:1")
	assert.Error(t, err)

	_, err = DialRedis(context.Background(), "::not a url")
	assert.Error(t, err)
}
