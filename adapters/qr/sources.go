package qr

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

// FileSource replays still images as camera frames
type FileSource struct {
	paths []string
}

var _ ports.FrameSource = (*FileSource)(nil)

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

// LoadImage decodes a PNG or JPEG file
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

func (s *FileSource) Frames(ctx context.Context) (<-chan image.Image, error) {
	if len(s.paths) == 0 {
		return nil, fmt.Errorf("%w: no images given", core.ErrUnsupported)
	}
	imgs := make([]image.Image, 0, len(s.paths))
	for _, p := range s.paths {
		img, err := LoadImage(p)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}

	out := make(chan image.Image)
	go func() {
		defer close(out)
		for _, img := range imgs {
			select {
			case out <- img:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Camera is a frame source fed by Push, standing in for a live camera
type Camera struct {
	mu        sync.Mutex
	supported bool
	denied    bool
	nextID    int
	streams   map[int]chan image.Image
}

var (
	_ ports.FrameSource  = (*Camera)(nil)
	_ ports.Availability = (*Camera)(nil)
)

func NewCamera() *Camera {
	return &Camera{supported: true, streams: make(map[int]chan image.Image)}
}

func (c *Camera) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.supported
}

func (c *Camera) SetSupported(v bool) {
	c.mu.Lock()
	c.supported = v
	c.mu.Unlock()
}

func (c *Camera) SetDenied(v bool) {
	c.mu.Lock()
	c.denied = v
	c.mu.Unlock()
}

func (c *Camera) Frames(ctx context.Context) (<-chan image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.supported {
		return nil, fmt.Errorf("%w: camera", core.ErrUnsupported)
	}
	if c.denied {
		return nil, fmt.Errorf("%w: camera", core.ErrPermissionDenied)
	}

	id := c.nextID
	c.nextID++
	ch := make(chan image.Image, 4)
	c.streams[id] = ch
	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.streams, id)
		close(ch)
		c.mu.Unlock()
	}()
	return ch, nil
}

// Push offers a frame to every open stream, dropping it for streams
// that are behind
func (c *Camera) Push(img image.Image) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ch := range c.streams {
		select {
		case ch <- img:
			n++
		default:
		}
	}
	return n
}

// Streams is the number of open frame streams
func (c *Camera) Streams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}
