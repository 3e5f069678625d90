package capture

import (
	"context"
	"image"

	"github.com/kbinani/screenshot"
	"github.com/pkg/errors"
)

// DisplayScreenSource captures the primary display.
type DisplayScreenSource struct{}

// NewDisplayScreenSource returns a screen source for the primary display.
func NewDisplayScreenSource() *DisplayScreenSource {
	return &DisplayScreenSource{}
}

// Size returns the primary display size, which is what Bind is called with.
func (s *DisplayScreenSource) Size() (int, int, error) {
	b, err := primaryDisplayBounds()
	if err != nil {
		return 0, 0, err
	}
	return b.Dx(), b.Dy(), nil
}

// Screenshot implements ScreenSource.
func (s *DisplayScreenSource) Screenshot(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := primaryDisplayBounds()
	if err != nil {
		return nil, err
	}

	img, err := screenshot.CaptureRect(b)
	if err != nil {
		return nil, errors.Wrap(err, "capture display")
	}
	return img, nil
}

// primaryDisplayBounds returns the display whose bounds start at the origin,
// falling back to display 0.
func primaryDisplayBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, errors.New("no active displays")
	}

	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		if b.Min.X == 0 && b.Min.Y == 0 {
			return b, nil
		}
	}
	return screenshot.GetDisplayBounds(0), nil
}
