package qr

import (
	"context"
	"fmt"
	"image"

	"github.com/ethereum/go-ethereum/log"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

var decodeHints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER: true,
}

// Decode reads a QR code from a single image
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to binarize frame: %w", err)
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, decodeHints)
	if err != nil {
		return "", err
	}
	return res.GetText(), nil
}

// Scanner turns camera frames into decoded payloads. Frames without a
// readable code are skipped, the camera keeps running.
type Scanner struct {
	src ports.FrameSource
	log log.Logger
}

var _ ports.EventReader[string] = (*Scanner)(nil)

func NewScanner(src ports.FrameSource, logger log.Logger) *Scanner {
	if logger == nil {
		logger = log.Root()
	}
	return &Scanner{src: src, log: logger}
}

// Available reports whether the frame source can be used
func (s *Scanner) Available() bool {
	if a, ok := s.src.(ports.Availability); ok {
		return a.Available()
	}
	return true
}

func (s *Scanner) Read(ctx context.Context) (<-chan ports.ReadEvent[string], error) {
	frames, err := s.src.Frames(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan ports.ReadEvent[string])
	go func() {
		defer close(out)
		for {
			var (
				frame image.Image
				ok    bool
			)
			select {
			case <-ctx.Done():
				return
			case frame, ok = <-frames:
			}
			if !ok {
				// source ran dry without ctx being cancelled
				s.emit(ctx, out, ports.ReadEvent[string]{Err: core.ErrStreamClosed})
				return
			}

			text, err := Decode(frame)
			if err != nil {
				s.log.Trace("No QR code in frame", "err", err)
				continue
			}
			if !s.emit(ctx, out, ports.ReadEvent[string]{Payload: text}) {
				return
			}
		}
	}()
	return out, nil
}

func (s *Scanner) emit(ctx context.Context, out chan<- ports.ReadEvent[string], ev ports.ReadEvent[string]) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
