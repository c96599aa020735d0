package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/matenet/pin/adapters/wallet"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(t *testing.T, approve wallet.Approver, n int) *wallet.KeyWallet {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = k
	}
	return wallet.NewKeyWallet(approve, keys...)
}

func TestConnectorCheckExisting(t *testing.T) {
	ctx := context.Background()
	prompted := false
	w := newWallet(t, func(context.Context, wallet.Prompt) error {
		prompted = true
		return nil
	}, 1)
	c := NewConnector(w, logging.Discard())
	defer c.Close()

	acct, err := c.CheckExisting(ctx)
	require.NoError(t, err)
	assert.True(t, acct.Empty())
	assert.False(t, c.Connected())
	assert.False(t, prompted, "silent check must not prompt")

	_, err = w.RequestAccounts(ctx)
	require.NoError(t, err)
	prompted = false

	acct, err = c.CheckExisting(ctx)
	require.NoError(t, err)
	assert.False(t, acct.Empty())
	assert.Equal(t, acct, c.Account())
	assert.False(t, prompted)
}

func TestConnectorRequestConnection(t *testing.T) {
	ctx := context.Background()

	c := NewConnector(nil, nil)
	_, err := c.RequestConnection(ctx)
	assert.ErrorIs(t, err, core.ErrNoWalletFound)
	assert.False(t, c.Available())
	acct, err := c.CheckExisting(ctx)
	assert.NoError(t, err)
	assert.True(t, acct.Empty())

	c = NewConnector(newWallet(t, func(context.Context, wallet.Prompt) error {
		return errors.New("closed")
	}, 1), nil)
	_, err = c.RequestConnection(ctx)
	assert.ErrorIs(t, err, core.ErrUserRejected)
	assert.False(t, c.Connected())

	c = NewConnector(newWallet(t, nil, 1), nil)
	acct, err = c.RequestConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, acct, c.Account())
	assert.EqualValues(t, 1, c.Generation())
}

func TestConnectorFollowsAccountChanges(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t, nil, 2)
	c := NewConnector(w, logging.Discard())
	defer c.Close()

	first, err := c.RequestConnection(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Watch())

	changes := make(chan AccountChange, 4)
	sub := c.Subscribe(changes)
	defer sub.Unsubscribe()

	require.NoError(t, w.Switch(1))
	select {
	case ch := <-changes:
		assert.False(t, ch.Account.Equal(first))
		assert.Equal(t, ch.Account, c.Account())
		assert.Equal(t, ch.Generation, c.Generation())
	case <-time.After(time.Second):
		t.Fatal("account change not forwarded")
	}

	w.Disconnect()
	select {
	case ch := <-changes:
		assert.True(t, ch.Account.Empty())
		assert.False(t, c.Connected())
	case <-time.After(time.Second):
		t.Fatal("disconnect not forwarded")
	}
}

func TestConnectorUnsubscribe(t *testing.T) {
	w := newWallet(t, nil, 2)
	c := NewConnector(w, nil)
	_, err := c.RequestConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Watch())

	changes := make(chan AccountChange)
	sub := c.Subscribe(changes)
	sub.Unsubscribe()

	// an unbuffered channel nobody reads must not block the connector
	require.NoError(t, w.Switch(1))
	assert.Eventually(t, func() bool { return c.Generation() == 2 }, time.Second, 5*time.Millisecond)

	c.Close()
	c.Close()
}
