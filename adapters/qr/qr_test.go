package qr

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeQR(t *testing.T, text string) image.Image {
	t.Helper()
	m, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, m.GetWidth(), m.GetHeight()))
	for y := 0; y < m.GetHeight(); y++ {
		for x := 0; x < m.GetWidth(); x++ {
			c := color.Gray{Y: 255}
			if m.Get(x, y) {
				c = color.Gray{Y: 0}
			}
			img.SetGray(x, y, c)
		}
	}
	return img
}

func blank() image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestDecode(t *testing.T) {
	text, err := Decode(encodeQR(t, "https://matenet.app/u/alice"))
	require.NoError(t, err)
	assert.Equal(t, "https://matenet.app/u/alice", text)

	_, err = Decode(blank())
	assert.Error(t, err)
}

func TestScannerSkipsUnreadableFrames(t *testing.T) {
	cam := NewCamera()
	s := NewScanner(cam, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cam.Streams())

	cam.Push(blank())
	cam.Push(encodeQR(t, "pin:42"))

	select {
	case ev := <-events:
		require.NoError(t, ev.Err)
		assert.Equal(t, "pin:42", ev.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no decode event")
	}

	cancel()
	assert.Eventually(t, func() bool { return cam.Streams() == 0 }, time.Second, 5*time.Millisecond)
}

func TestScannerStartErrors(t *testing.T) {
	cam := NewCamera()
	cam.SetDenied(true)
	_, err := NewScanner(cam, nil).Read(context.Background())
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	cam.SetSupported(false)
	assert.False(t, NewScanner(cam, nil).Available())
	_, err = NewScanner(cam, nil).Read(context.Background())
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, encodeQR(t, "friend:bob")))
	require.NoError(t, f.Close())

	events, err := NewScanner(NewFileSource(path), nil).Read(context.Background())
	require.NoError(t, err)

	ev := <-events
	require.NoError(t, ev.Err)
	assert.Equal(t, "friend:bob", ev.Payload)

	// the file source is exhausted after one frame
	ev = <-events
	assert.ErrorIs(t, ev.Err, core.ErrStreamClosed)

	_, err = NewFileSource(filepath.Join(dir, "missing.png")).Frames(context.Background())
	assert.Error(t, err)
}
