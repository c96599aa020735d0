package service

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

// ScanResult is a snapshot of a scan flow
type ScanResult[T any] struct {
	State   core.ScanState
	Payload T
	Err     error
}

// ScanFlow drives one capability read stream through
// idle, active and a terminal success or error. Start re-arms it.
type ScanFlow[T any] struct {
	capability core.Capability
	probe      *Probe
	reader     ports.EventReader[T]
	log        log.Logger

	mu      sync.Mutex
	gen     uint64
	state   core.ScanState
	payload T
	err     error
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScanFlow creates a flow over reader, gated by probe on capability
func NewScanFlow[T any](capability core.Capability, probe *Probe, reader ports.EventReader[T], logger log.Logger) *ScanFlow[T] {
	if logger == nil {
		logger = log.Root()
	}
	done := make(chan struct{})
	close(done)
	return &ScanFlow[T]{
		capability: capability,
		probe:      probe,
		reader:     reader,
		log:        logger.New("capability", capability),
		done:       done,
	}
}

// NewNFCFlow reads NFC tags
func NewNFCFlow(probe *Probe, reader ports.NFCReader, logger log.Logger) *ScanFlow[core.NFCScan] {
	return NewScanFlow[core.NFCScan](core.CapabilityNFC, probe, reader, logger)
}

// NewQRFlow reads QR codes from the camera
func NewQRFlow(probe *Probe, reader ports.EventReader[string], logger log.Logger) *ScanFlow[string] {
	return NewScanFlow[string](core.CapabilityCamera, probe, reader, logger)
}

// startFailure maps a stream start error to its flow error
func startFailure(err error, readKind core.Kind) *core.FlowError {
	switch {
	case errors.Is(err, core.ErrPermissionDenied):
		return core.NewFlowError(core.KindPermissionDenied, core.ErrPermissionDenied, err)
	case errors.Is(err, core.ErrUnsupported):
		return core.NewFlowError(core.KindCapabilityUnsupported, core.ErrUnsupported, err)
	default:
		return core.NewFlowError(readKind, nil, err)
	}
}

// Start arms the flow, discarding any previous result. An unsupported
// capability fails synchronously without attaching to the reader.
func (f *ScanFlow[T]) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == core.ScanActive {
		close(f.done)
	}
	f.detachLocked()
	f.gen++
	gen := f.gen
	var zero T
	f.payload = zero
	f.err = nil
	f.done = make(chan struct{})

	if !f.probe.Supports(f.capability) {
		return f.finishLocked(core.ScanFailed, zero, core.NewFlowError(core.KindCapabilityUnsupported, core.ErrUnsupported, nil))
	}

	rctx, cancel := context.WithCancel(ctx)
	events, err := f.reader.Read(rctx)
	if err != nil {
		cancel()
		return f.finishLocked(core.ScanFailed, zero, startFailure(err, core.KindDeviceReadError))
	}

	f.state = core.ScanActive
	f.cancel = cancel
	f.log.Debug("Scan started", "gen", gen)
	go f.listen(gen, events)
	return nil
}

func (f *ScanFlow[T]) listen(gen uint64, events <-chan ports.ReadEvent[T]) {
	ev, ok := <-events
	if !ok {
		// stream closed by Stop or by the caller's context
		f.mu.Lock()
		if f.gen == gen && f.state == core.ScanActive {
			f.detachLocked()
			f.state = core.ScanIdle
			close(f.done)
		}
		f.mu.Unlock()
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen || f.state != core.ScanActive {
		return
	}
	f.detachLocked()
	if ev.Err != nil {
		var zero T
		f.finishLocked(core.ScanFailed, zero, readFailure(ev.Err))
		return
	}
	f.finishLocked(core.ScanSuccess, ev.Payload, nil)
}

func readFailure(err error) *core.FlowError {
	if errors.Is(err, core.ErrPermissionDenied) {
		return core.NewFlowError(core.KindPermissionDenied, core.ErrPermissionDenied, err)
	}
	return core.NewFlowError(core.KindDeviceReadError, nil, err)
}

func (f *ScanFlow[T]) finishLocked(state core.ScanState, payload T, ferr *core.FlowError) error {
	f.state = state
	f.payload = payload
	close(f.done)
	if ferr == nil {
		f.log.Debug("Scan succeeded")
		return nil
	}
	f.err = ferr
	f.log.Warn("Scan failed", "err", ferr)
	return ferr
}

// detachLocked releases the reader so no further events are delivered
func (f *ScanFlow[T]) detachLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Stop detaches from the reader. An active flow goes back to idle, a
// terminal one keeps its result.
func (f *ScanFlow[T]) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detachLocked()
	if f.state == core.ScanActive {
		f.gen++
		f.state = core.ScanIdle
		close(f.done)
	}
}

// Result returns the current snapshot
func (f *ScanFlow[T]) Result() ScanResult[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ScanResult[T]{State: f.state, Payload: f.payload, Err: f.err}
}

// Wait blocks until the current run leaves the active state
func (f *ScanFlow[T]) Wait(ctx context.Context) (ScanResult[T], error) {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	select {
	case <-done:
		return f.Result(), nil
	case <-ctx.Done():
		return ScanResult[T]{}, ctx.Err()
	}
}

// ScanOnce starts the flow and waits for its outcome. The flow is
// detached when ctx ends first.
func ScanOnce[T any](ctx context.Context, f *ScanFlow[T]) (T, error) {
	var zero T
	if err := f.Start(ctx); err != nil {
		return zero, err
	}
	res, err := f.Wait(ctx)
	if err != nil {
		f.Stop()
		return zero, err
	}
	switch res.State {
	case core.ScanSuccess:
		return res.Payload, nil
	case core.ScanFailed:
		return zero, res.Err
	}
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	return zero, core.ErrStreamClosed
}
