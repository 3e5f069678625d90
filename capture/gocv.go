package capture

import (
	"context"
	"image"
	"io"
	"strconv"
	"sync"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// GocvCamera reads stills and frames from an OpenCV video capture device.
// It implements ImageSource, FrameSource and Configurer.
type GocvCamera struct {
	device string

	mu  sync.Mutex
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

// OpenGocvCamera opens a capture device. A numeric device is treated as a
// device index, anything else as a file or stream URL.
//
// Arguments:
//   - device: The device index, file path or URL.
//
// Returns:
//   - *GocvCamera: The opened camera.
//   - error: An error if the device could not be opened.
func OpenGocvCamera(device string) (*GocvCamera, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(device); convErr == nil {
		vc, err = gocv.OpenVideoCapture(id)
	} else {
		vc, err = gocv.OpenVideoCapture(device)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open capture device %q", device)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("capture device %q is not available", device)
	}

	return &GocvCamera{device: device, vc: vc, mat: gocv.NewMat()}, nil
}

// Configure requests a capture size. The device may settle on a different
// size; Size reports what it actually delivers.
func (c *GocvCamera) Configure(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return errors.New("camera is closed")
	}
	c.vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	c.vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	return nil
}

// Size returns the current frame size of the device.
func (c *GocvCamera) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return 0, 0
	}
	return int(c.vc.Get(gocv.VideoCaptureFrameWidth)), int(c.vc.Get(gocv.VideoCaptureFrameHeight))
}

// ReadFrame reads the next frame. It returns io.EOF once the device stops
// producing frames.
func (c *GocvCamera) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil, errors.New("camera is closed")
	}
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, io.EOF
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert frame")
	}
	return img, nil
}

// Capture takes a still photo.
func (c *GocvCamera) Capture(ctx context.Context) (image.Image, error) {
	img, err := c.ReadFrame(ctx)
	if errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(ErrNoFrame, "device %q", c.device)
	}
	return img, err
}

// Close releases the device.
func (c *GocvCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.mat.Close()
	c.vc = nil
	return err
}

// GocvVideoWriterFactory creates OpenCV video writers.
type GocvVideoWriterFactory struct {
	// Codec is the FourCC code; defaults to "mp4v".
	Codec string
}

// Create implements VideoWriterFactory.
func (f GocvVideoWriterFactory) Create(path string, fps float64, width, height int) (VideoWriter, error) {
	codec := f.Codec
	if codec == "" {
		codec = "mp4v"
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid video size %dx%d", width, height)
	}

	vw, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, errors.Wrapf(err, "open video writer %s", path)
	}
	return &gocvVideoWriter{vw: vw, width: width, height: height}, nil
}

type gocvVideoWriter struct {
	vw            *gocv.VideoWriter
	width, height int
}

// WriteFrame resizes frames that do not match the video size.
func (w *gocvVideoWriter) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		img = resize.Resize(uint(w.width), uint(w.height), img, resize.Bilinear)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "convert frame")
	}
	defer mat.Close()

	return w.vw.Write(mat)
}

func (w *gocvVideoWriter) Close() error {
	return w.vw.Close()
}
