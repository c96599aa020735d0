package ports

import (
	"context"
	"image"

	"github.com/matenet/pin/core"
)

// Availability is implemented by device surfaces that can be present
// but unusable, e.g. a reader that was unplugged
type Availability interface {
	Available() bool
}

// AvailabilityFunc adapts a function to Availability
type AvailabilityFunc func() bool

func (f AvailabilityFunc) Available() bool { return f() }

// ReadEvent is one event of a device read stream
type ReadEvent[T any] struct {
	Payload T
	Err     error
}

// EventReader attaches to a device read stream. The returned channel is
// closed once ctx is done. Start errors wrapping core.ErrPermissionDenied or
// core.ErrUnsupported are reported as such.
type EventReader[T any] interface {
	Read(ctx context.Context) (<-chan ReadEvent[T], error)
}

// NFCReader reads NDEF tags
type NFCReader = EventReader[core.NFCScan]

// NFCWriter writes records to the next tapped tag
type NFCWriter interface {
	Write(ctx context.Context, records []core.NFCRecord) error
}

// FrameSource yields camera frames
type FrameSource interface {
	Frames(ctx context.Context) (<-chan image.Image, error)
}
