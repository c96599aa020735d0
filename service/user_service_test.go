package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matenet/pin/adapters/nfc"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/internal/gatewaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	h := newHarness(t, nil, 1)
	users := NewUserService(h.gateway, h.connector, nil)

	_, err := users.Register(context.Background(), "alice")
	assert.ErrorIs(t, err, core.ErrNoAccount)

	acct := h.connect(t)
	_, err = users.Register(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	u, err := users.Register(context.Background(), "  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.True(t, core.Account(u.WalletAddress).Equal(core.Account(acct)))

	_, err = users.Register(context.Background(), "alice")
	var herr *core.HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, 409, herr.Status)
}

func TestProfileAndFriends(t *testing.T) {
	h := newHarness(t, nil, 1)
	acct := h.signIn(t)
	users := NewUserService(h.gateway, h.connector, nil)

	me, err := users.Profile(context.Background())
	require.NoError(t, err)
	assert.True(t, core.Account(me.WalletAddress).Equal(core.Account(acct)))

	updated, err := users.UpdateProfile(context.Background(), core.ProfileUpdate{
		FullName: "Alice Liddell",
		Username: " alice ",
		Bio:      "down the rabbit hole",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.FullName)
	assert.Equal(t, "alice", updated.Username)

	url, err := users.UploadAvatar(context.Background(), "me.png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	_, err = users.UploadAvatar(context.Background(), "", strings.NewReader("png"))
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = users.User(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = users.User(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	friends, err := users.Friends(context.Background())
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestPinsAndFriendsFlow(t *testing.T) {
	ctx := context.Background()
	srv := gatewaytest.NewServer()
	defer srv.Close()

	dev := nfc.NewEmulator()
	probe := NewProbe()
	probe.Register(core.CapabilityNFC, dev)

	// bob pairs a pin, a fresh id is written to the tag
	bob := newHarnessOn(t, srv, nil, 1)
	bob.signIn(t)
	pins := NewPinService(bob.gateway, NewWriteFlow(probe, dev, nil), nil)

	type paired struct {
		id  string
		err error
	}
	pc := make(chan paired, 1)
	go func() {
		id, err := pins.Pair(ctx)
		pc <- paired{id, err}
	}()
	require.Eventually(t, func() bool { return dev.WaitingWrites() == 1 }, time.Second, 5*time.Millisecond)
	dev.Tap(core.NFCScan{SerialNumber: "04:bb"})
	p := <-pc
	require.NoError(t, p.err)
	require.NotEmpty(t, p.id)

	written := dev.Written()
	require.Len(t, written, 1)
	assert.Equal(t, []core.NFCRecord{{Type: NFCIDRecordType, Payload: p.id}}, written[0])

	bobProfile, err := bob.gateway.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.id, bobProfile.NFCID)
	assert.True(t, bobProfile.Points.Equal(gatewaytest.PointsPerPin))

	// alice taps bob's pin
	alice := newHarnessOn(t, srv, nil, 1)
	alice.signIn(t)
	friends := NewFriendService(alice.gateway, NewNFCFlow(probe, dev, nil), nil)

	type added struct {
		id  string
		err error
	}
	ac := make(chan added, 1)
	go func() {
		id, err := friends.AddByTap(ctx)
		ac <- added{id, err}
	}()
	require.Eventually(t, func() bool { return dev.Readers() == 1 }, time.Second, 5*time.Millisecond)
	dev.Tap(core.NFCScan{SerialNumber: "04:bb", Records: written[0]})
	a := <-ac
	require.NoError(t, a.err)
	assert.Equal(t, p.id, a.id)

	aliceProfile, err := alice.gateway.Profile(ctx)
	require.NoError(t, err)

	// bob accepts
	bobFriends := NewFriendService(bob.gateway, nil, nil)
	requests, err := bobFriends.Requests(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, aliceProfile.ID, requests[0].SenderID)

	require.NoError(t, bobFriends.Accept(ctx, requests[0].SenderID))
	requests, err = bobFriends.Requests(ctx)
	require.NoError(t, err)
	assert.Empty(t, requests)

	list, err := NewUserService(bob.gateway, bob.connector, nil).Friends(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, aliceProfile.ID, list[0].ID)
}

func TestAddFriendByID(t *testing.T) {
	h := newHarness(t, nil, 1)
	h.signIn(t)
	friends := NewFriendService(h.gateway, nil, nil)

	assert.ErrorIs(t, friends.AddByID(context.Background(), " "), core.ErrInvalidInput)
	assert.ErrorIs(t, friends.Accept(context.Background(), ""), core.ErrInvalidInput)

	err := friends.AddByID(context.Background(), "unknown-pin")
	assert.ErrorIs(t, err, core.ErrNotFound)

	var herr *core.HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "NFC not registered", herr.Message)
}

func TestAddFriendByTapUnsupported(t *testing.T) {
	h := newHarness(t, nil, 1)
	friends := NewFriendService(h.gateway, NewNFCFlow(NewProbe(), nfc.NewEmulator(), nil), nil)

	_, err := friends.AddByTap(context.Background())
	assert.Equal(t, core.KindCapabilityUnsupported, core.KindOf(err))
}

func TestNFCID(t *testing.T) {
	assert.Equal(t, "serial", NFCID(core.NFCScan{SerialNumber: "serial"}))
	assert.Equal(t, "pin-9", NFCID(core.NFCScan{
		SerialNumber: "serial",
		Records:      []core.NFCRecord{nfc.URLRecord("https://x"), nfc.TextRecord(" pin-9 ")},
	}))
}

func TestRegisterPinManually(t *testing.T) {
	h := newHarness(t, nil, 1)
	h.signIn(t)
	pins := NewPinService(h.gateway, nil, nil)

	assert.ErrorIs(t, pins.Register(context.Background(), ""), core.ErrInvalidInput)
	require.NoError(t, pins.Register(context.Background(), "manual-pin"))

	me, err := h.gateway.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "manual-pin", me.NFCID)
}
