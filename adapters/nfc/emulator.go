package nfc

import (
	"context"
	"fmt"
	"sync"

	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

// Emulator is a software NFC reader/writer. Tags are presented with Tap;
// every attached reader receives them. It backs manual nfcId entry in the
// CLI and the flow tests.
type Emulator struct {
	mu        sync.Mutex
	supported bool
	denied    bool
	nextID    int
	readers   map[int]chan ports.ReadEvent[core.NFCScan]
	pending   []chan core.NFCScan
	writeErr  error
	written   [][]core.NFCRecord
}

var (
	_ ports.NFCReader    = (*Emulator)(nil)
	_ ports.NFCWriter    = (*Emulator)(nil)
	_ ports.Availability = (*Emulator)(nil)
)

// NewEmulator returns a supported device with permission granted
func NewEmulator() *Emulator {
	return &Emulator{
		supported: true,
		readers:   make(map[int]chan ports.ReadEvent[core.NFCScan]),
	}
}

func (e *Emulator) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.supported
}

// SetSupported toggles device presence
func (e *Emulator) SetSupported(v bool) {
	e.mu.Lock()
	e.supported = v
	e.mu.Unlock()
}

// SetDenied makes the next Read or Write fail as a permission refusal
func (e *Emulator) SetDenied(v bool) {
	e.mu.Lock()
	e.denied = v
	e.mu.Unlock()
}

// FailWrites makes Write return err until reset with nil
func (e *Emulator) FailWrites(err error) {
	e.mu.Lock()
	e.writeErr = err
	e.mu.Unlock()
}

func (e *Emulator) check() error {
	if !e.supported {
		return fmt.Errorf("%w: nfc", core.ErrUnsupported)
	}
	if e.denied {
		return fmt.Errorf("%w: nfc", core.ErrPermissionDenied)
	}
	return nil
}

// Read attaches a reader. The stream closes when ctx is done.
func (e *Emulator) Read(ctx context.Context) (<-chan ports.ReadEvent[core.NFCScan], error) {
	e.mu.Lock()
	if err := e.check(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	id := e.nextID
	e.nextID++
	ch := make(chan ports.ReadEvent[core.NFCScan], 8)
	e.readers[id] = ch
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.readers, id)
		close(ch)
		e.mu.Unlock()
	}()
	return ch, nil
}

// Readers is the number of attached readers
func (e *Emulator) Readers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.readers)
}

func (e *Emulator) broadcast(ev ports.ReadEvent[core.NFCScan]) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ch := range e.readers {
		select {
		case ch <- ev:
			n++
		default:
		}
	}
	return n
}

// Tap presents a tag. A pending Write takes it first, otherwise every
// attached reader gets a reading. It returns the number of readers reached.
func (e *Emulator) Tap(scan core.NFCScan) int {
	e.mu.Lock()
	if len(e.pending) > 0 {
		w := e.pending[0]
		e.pending = e.pending[1:]
		e.mu.Unlock()
		w <- scan
		return 1
	}
	e.mu.Unlock()
	return e.broadcast(ports.ReadEvent[core.NFCScan]{Payload: scan})
}

// Fail delivers a read error to every attached reader
func (e *Emulator) Fail(err error) int {
	return e.broadcast(ports.ReadEvent[core.NFCScan]{Err: err})
}

// Write waits for the next tapped tag and stores records on it
func (e *Emulator) Write(ctx context.Context, records []core.NFCRecord) error {
	e.mu.Lock()
	if err := e.check(); err != nil {
		e.mu.Unlock()
		return err
	}
	tag := make(chan core.NFCScan, 1)
	e.pending = append(e.pending, tag)
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		e.dropPending(tag)
		return ctx.Err()
	case <-tag:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writeErr != nil {
		return e.writeErr
	}
	e.written = append(e.written, append([]core.NFCRecord(nil), records...))
	return nil
}

func (e *Emulator) dropPending(tag chan core.NFCScan) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, c := range e.pending {
		if c == tag {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// Written returns the record sets written so far
func (e *Emulator) Written() [][]core.NFCRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]core.NFCRecord(nil), e.written...)
}

// WaitingWrites is the number of writes waiting for a tag
func (e *Emulator) WaitingWrites() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// TextRecord builds a text record
func TextRecord(text string) core.NFCRecord {
	return core.NFCRecord{Type: "text", Payload: text}
}

// URLRecord builds a url record
func URLRecord(u string) core.NFCRecord {
	return core.NFCRecord{Type: "url", Payload: u}
}
