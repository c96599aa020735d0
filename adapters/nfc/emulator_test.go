package nfc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matenet/pin/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmulatorRead(t *testing.T) {
	e := NewEmulator()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := e.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Readers())

	scan := core.NFCScan{SerialNumber: "04:a2:19:b2", Records: []core.NFCRecord{TextRecord("hi")}}
	assert.Equal(t, 1, e.Tap(scan))

	ev := <-ch
	require.NoError(t, ev.Err)
	assert.Equal(t, scan, ev.Payload)

	boom := errors.New("tag lost")
	e.Fail(boom)
	ev = <-ch
	assert.ErrorIs(t, ev.Err, boom)

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Eventually(t, func() bool { return e.Readers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEmulatorStartErrors(t *testing.T) {
	e := NewEmulator()
	e.SetDenied(true)
	_, err := e.Read(context.Background())
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	e.SetSupported(false)
	assert.False(t, e.Available())
	_, err = e.Read(context.Background())
	assert.ErrorIs(t, err, core.ErrUnsupported)
	assert.ErrorIs(t, e.Write(context.Background(), nil), core.ErrUnsupported)
}

func TestEmulatorWrite(t *testing.T) {
	e := NewEmulator()
	records := []core.NFCRecord{URLRecord("https://matenet.app/u/alice")}

	done := make(chan error, 1)
	go func() { done <- e.Write(context.Background(), records) }()

	require.Eventually(t, func() bool { return e.WaitingWrites() == 1 }, time.Second, 5*time.Millisecond)
	e.Tap(core.NFCScan{SerialNumber: "01"})

	require.NoError(t, <-done)
	assert.Equal(t, [][]core.NFCRecord{records}, e.Written())
}

func TestEmulatorWriteCancelled(t *testing.T) {
	e := NewEmulator()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := e.Write(ctx, []core.NFCRecord{TextRecord("x")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, e.WaitingWrites())
	assert.Empty(t, e.Written())
}
