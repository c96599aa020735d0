package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matenet/pin/adapters/nfc"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/internal/logging"
	"github.com/matenet/pin/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNFC(t *testing.T) (*ScanFlow[core.NFCScan], *nfc.Emulator, *Probe) {
	t.Helper()
	dev := nfc.NewEmulator()
	probe := NewProbe()
	probe.Register(core.CapabilityNFC, dev)
	return NewNFCFlow(probe, dev, logging.Discard()), dev, probe
}

func waitResult[T any](t *testing.T, f *ScanFlow[T]) ScanResult[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestScanFlowUnsupported(t *testing.T) {
	flow, dev, probe := newNFC(t)
	probe.Register(core.CapabilityNFC, ports.AvailabilityFunc(func() bool { return false }))

	err := flow.Start(context.Background())
	assert.Equal(t, core.KindCapabilityUnsupported, core.KindOf(err))
	assert.ErrorIs(t, err, core.ErrUnsupported)

	res := flow.Result()
	assert.Equal(t, core.ScanFailed, res.State, "terminal without waiting")
	assert.Equal(t, err, res.Err)
	assert.Zero(t, dev.Readers(), "no listener attached")
}

func TestScanFlowSuccessOnce(t *testing.T) {
	flow, dev, _ := newNFC(t)
	require.NoError(t, flow.Start(context.Background()))
	assert.Equal(t, core.ScanActive, flow.Result().State)

	tag := core.NFCScan{SerialNumber: "04:11:22", Records: []core.NFCRecord{nfc.TextRecord("pin-1")}}
	require.Equal(t, 1, dev.Tap(tag))

	res := waitResult(t, flow)
	assert.Equal(t, core.ScanSuccess, res.State)
	assert.Equal(t, tag, res.Payload)
	assert.NoError(t, res.Err)

	// the listener is released once terminal and later taps are ignored
	assert.Eventually(t, func() bool { return dev.Readers() == 0 }, time.Second, 5*time.Millisecond)
	dev.Tap(core.NFCScan{SerialNumber: "other"})
	assert.Equal(t, tag, flow.Result().Payload)
}

func TestScanFlowRearm(t *testing.T) {
	flow, dev, _ := newNFC(t)
	require.NoError(t, flow.Start(context.Background()))
	dev.Tap(core.NFCScan{SerialNumber: "first"})
	assert.Equal(t, "first", waitResult(t, flow).Payload.SerialNumber)

	require.NoError(t, flow.Start(context.Background()))
	res := flow.Result()
	assert.Equal(t, core.ScanActive, res.State)
	assert.Empty(t, res.Payload.SerialNumber, "previous payload discarded")

	require.Eventually(t, func() bool { return dev.Readers() == 1 }, time.Second, 5*time.Millisecond)
	dev.Tap(core.NFCScan{SerialNumber: "second"})
	assert.Equal(t, "second", waitResult(t, flow).Payload.SerialNumber)
}

func TestScanFlowStartFailuresAreDistinct(t *testing.T) {
	flow, dev, probe := newNFC(t)
	// the probe still says yes, the device refuses at start
	probe.Register(core.CapabilityNFC, ports.AvailabilityFunc(func() bool { return true }))

	dev.SetDenied(true)
	err := flow.Start(context.Background())
	assert.Equal(t, core.KindPermissionDenied, core.KindOf(err))
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
	assert.NotErrorIs(t, err, core.ErrUnsupported)

	dev.SetDenied(false)
	dev.SetSupported(false)
	err = flow.Start(context.Background())
	assert.Equal(t, core.KindCapabilityUnsupported, core.KindOf(err))
	assert.ErrorIs(t, err, core.ErrUnsupported)
	assert.NotErrorIs(t, err, core.ErrPermissionDenied)
}

func TestScanFlowReadError(t *testing.T) {
	flow, dev, _ := newNFC(t)
	require.NoError(t, flow.Start(context.Background()))

	boom := errors.New("tag moved too fast")
	dev.Fail(boom)

	res := waitResult(t, flow)
	assert.Equal(t, core.ScanFailed, res.State)
	assert.Equal(t, core.KindDeviceReadError, core.KindOf(res.Err))
	assert.ErrorIs(t, res.Err, boom)
}

func TestScanFlowStopDetaches(t *testing.T) {
	flow, dev, _ := newNFC(t)
	require.NoError(t, flow.Start(context.Background()))
	require.Equal(t, 1, dev.Readers())

	flow.Stop()
	assert.Equal(t, core.ScanIdle, flow.Result().State)
	assert.Eventually(t, func() bool { return dev.Readers() == 0 }, time.Second, 5*time.Millisecond)

	dev.Tap(core.NFCScan{SerialNumber: "late"})
	assert.Equal(t, core.ScanIdle, flow.Result().State)
}

func TestScanFlowCallerContext(t *testing.T) {
	flow, dev, _ := newNFC(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, flow.Start(ctx))

	cancel()
	res := waitResult(t, flow)
	assert.Equal(t, core.ScanIdle, res.State)
	assert.Eventually(t, func() bool { return dev.Readers() == 0 }, time.Second, 5*time.Millisecond)
}

type chanReader struct {
	events chan ports.ReadEvent[string]
}

func (r *chanReader) Read(ctx context.Context) (<-chan ports.ReadEvent[string], error) {
	return r.events, nil
}

func TestQRFlow(t *testing.T) {
	probe := NewProbe()
	probe.Register(core.CapabilityCamera, ports.AvailabilityFunc(func() bool { return true }))
	reader := &chanReader{events: make(chan ports.ReadEvent[string], 2)}
	flow := NewQRFlow(probe, reader, nil)

	code, errc := "", make(chan error, 1)
	go func() {
		var err error
		code, err = ScanOnce(context.Background(), flow)
		errc <- err
	}()

	reader.events <- ports.ReadEvent[string]{Payload: "https://matenet.app/u/bob"}
	require.NoError(t, <-errc)
	assert.Equal(t, "https://matenet.app/u/bob", code)
}
