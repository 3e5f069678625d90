package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nvr-ai/go-camerax/mediastore"
	"github.com/pkg/errors"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

type fakeCamera struct {
	mu         sync.Mutex
	img        image.Image
	err        error
	configErr  error
	configured []image.Point
	captures   int
	closed     int
}

var (
	_ ImageSource  = (*fakeCamera)(nil)
	_ Configurer   = (*fakeCamera)(nil)
	_ FrameSource  = (*fakeFrames)(nil)
	_ ScreenSource = (*fakeScreen)(nil)

	_ ImageSource        = (*GocvCamera)(nil)
	_ FrameSource        = (*GocvCamera)(nil)
	_ Configurer         = (*GocvCamera)(nil)
	_ VideoWriterFactory = GocvVideoWriterFactory{}
	_ ScreenSource       = (*DisplayScreenSource)(nil)
)

func (c *fakeCamera) Capture(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures++
	return c.img, c.err
}

func (c *fakeCamera) Configure(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configErr != nil {
		return c.configErr
	}
	c.configured = append(c.configured, image.Pt(width, height))
	return nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

type fakeScreen struct {
	img   image.Image
	err   error
	shots int
}

func (s *fakeScreen) Screenshot(ctx context.Context) (image.Image, error) {
	s.shots++
	return s.img, s.err
}

// fakeFrames yields limit frames then io.EOF; limit < 0 never runs out.
type fakeFrames struct {
	mu      sync.Mutex
	w, h    int
	limit   int
	read    int
	err     error
	closed  bool
	onFrame func(n int)
}

func (f *fakeFrames) Size() (int, int) {
	return f.w, f.h
}

func (f *fakeFrames) ReadFrame(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return nil, f.err
	}
	if f.limit >= 0 && f.read >= f.limit {
		f.mu.Unlock()
		return nil, io.EOF
	}
	f.read++
	n := f.read
	f.mu.Unlock()

	if f.onFrame != nil {
		f.onFrame(n)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Millisecond):
	}
	return solid(f.w, f.h, color.RGBA{G: 255, A: 255}), nil
}

func (f *fakeFrames) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeWriters writes one byte per frame to the requested path.
type fakeWriters struct {
	mu       sync.Mutex
	paths    []string
	err      error
	writeErr error
}

func (f *fakeWriters) Create(path string, fps float64, width, height int) (VideoWriter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	f.paths = append(f.paths, path)
	return &fakeWriter{file: file, writeErr: f.writeErr}, nil
}

type fakeWriter struct {
	mu       sync.Mutex
	file     *os.File
	frames   int
	closed   bool
	writeErr error
}

func (w *fakeWriter) WriteFrame(img image.Image) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.frames++
	_, err := w.file.Write([]byte{'f'})
	return err
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return w.file.Close()
}

type savedMedia struct {
	req  mediastore.Request
	data []byte
}

type memorySink struct {
	mu    sync.Mutex
	saved []savedMedia
	err   error
}

func (s *memorySink) Save(ctx context.Context, req mediastore.Request, r io.Reader) (mediastore.Entry, error) {
	if s.err != nil {
		return mediastore.Entry{}, s.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return mediastore.Entry{}, errors.Wrap(err, "read media")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, savedMedia{req: req, data: buf.Bytes()})
	return mediastore.Entry{
		DisplayName:  req.DisplayName,
		MIMEType:     req.MIMEType,
		RelativePath: req.RelativePath,
		URI:          "mem://" + req.RelativePath + "/" + req.DisplayName,
		Size:         int64(buf.Len()),
		CreatedAt:    time.Now(),
	}, nil
}

func (s *memorySink) all() []savedMedia {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedMedia(nil), s.saved...)
}
