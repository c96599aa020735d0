package service

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

// WriteFlow pushes a record set to the next tapped tag. It is independent
// of any read flow on the same device.
type WriteFlow struct {
	probe  *Probe
	writer ports.NFCWriter
	log    log.Logger

	mu     sync.Mutex
	gen    uint64
	state  core.ScanState
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWriteFlow(probe *Probe, writer ports.NFCWriter, logger log.Logger) *WriteFlow {
	if logger == nil {
		logger = log.Root()
	}
	done := make(chan struct{})
	close(done)
	return &WriteFlow{
		probe:  probe,
		writer: writer,
		log:    logger.New("capability", core.CapabilityNFC),
		done:   done,
	}
}

// Start begins a write, any write still waiting for a tag is abandoned
func (w *WriteFlow) Start(ctx context.Context, records []core.NFCRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == core.ScanActive {
		close(w.done)
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.gen++
	gen := w.gen
	w.err = nil
	w.done = make(chan struct{})

	if !w.probe.Supports(core.CapabilityNFC) {
		w.state = core.ScanFailed
		w.err = core.NewFlowError(core.KindCapabilityUnsupported, core.ErrUnsupported, nil)
		close(w.done)
		return w.err
	}

	wctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.state = core.ScanActive
	w.log.Debug("Write started", "gen", gen, "records", len(records))

	go func() {
		err := w.writer.Write(wctx, records)

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.gen != gen {
			return
		}
		cancel()
		w.cancel = nil
		if err != nil {
			if wctx.Err() != nil {
				w.state = core.ScanIdle
			} else {
				w.state = core.ScanFailed
				w.err = startFailure(err, core.KindDeviceWriteError)
				w.log.Warn("Write failed", "err", w.err)
			}
		} else {
			w.state = core.ScanSuccess
			w.log.Debug("Write succeeded")
		}
		close(w.done)
	}()
	return nil
}

// Stop abandons a pending write
func (w *WriteFlow) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.state == core.ScanActive {
		w.gen++
		w.state = core.ScanIdle
		close(w.done)
	}
}

// State returns the state and, when failed, the error
func (w *WriteFlow) State() (core.ScanState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.err
}

// Write starts a write and waits for it
func (w *WriteFlow) Write(ctx context.Context, records []core.NFCRecord) error {
	if err := w.Start(ctx, records); err != nil {
		return err
	}
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	}
	state, err := w.State()
	switch {
	case err != nil:
		return err
	case state == core.ScanSuccess:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return core.ErrStreamClosed
	}
}
