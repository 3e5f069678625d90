package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ResampleFilter defines the resampling algorithm used when the overlay is
// stretched over the base image.
type ResampleFilter string

const (
	// NearestNeighborFilter uses nearest-neighbor interpolation (fastest, lowest quality).
	NearestNeighborFilter ResampleFilter = "nearest"
	// BilinearFilter uses bilinear interpolation (fast, good quality).
	BilinearFilter ResampleFilter = "bilinear"
	// BicubicFilter uses bicubic interpolation (slower, better quality).
	BicubicFilter ResampleFilter = "bicubic"
	// MitchellNetravaliFilter uses the Mitchell-Netravali cubic filter (balanced).
	MitchellNetravaliFilter ResampleFilter = "mitchell"
	// LanczosFilter uses Lanczos resampling with a=3 (slowest, sharpest).
	LanczosFilter ResampleFilter = "lanczos"
)

var interpolations = map[ResampleFilter]resize.InterpolationFunction{
	NearestNeighborFilter:   resize.NearestNeighbor,
	BilinearFilter:          resize.Bilinear,
	BicubicFilter:           resize.Bicubic,
	MitchellNetravaliFilter: resize.MitchellNetravali,
	LanczosFilter:           resize.Lanczos3,
}

// ParseResampleFilter validates a filter name.
func ParseResampleFilter(name string) (ResampleFilter, error) {
	f := ResampleFilter(name)
	if _, ok := interpolations[f]; !ok {
		return "", errors.Errorf("unknown resample filter %q", name)
	}
	return f, nil
}

type compositeOptions struct {
	filter ResampleFilter
}

// CompositeOption configures Composite.
type CompositeOption func(*compositeOptions)

// WithResampleFilter selects the interpolation used to stretch the overlay.
func WithResampleFilter(f ResampleFilter) CompositeOption {
	return func(o *compositeOptions) {
		if _, ok := interpolations[f]; ok {
			o.filter = f
		}
	}
}

// Composite layers overlay on top of base and returns a new image with base's
// dimensions and origin at (0,0). The overlay is stretched from its full
// extent onto the full extent of the result, so its aspect ratio is not
// preserved. Transparent overlay pixels leave base untouched. Neither input
// is modified or retained.
//
// Arguments:
//   - base: The photo, drawn unscaled.
//   - overlay: The screenshot, stretched to cover base.
//   - opts: Optional settings such as the resample filter.
//
// Returns:
//   - *image.RGBA: The composited image.
//   - error: ErrInvalidDimension for nil or empty inputs, ErrEncoding if a
//     colour model cannot be converted to RGBA.
//
// Example:
//
// ```go
//
//	out, err := Composite(photo, screenshot, WithResampleFilter(BicubicFilter))
//
// ```
func Composite(base, overlay image.Image, opts ...CompositeOption) (*image.RGBA, error) {
	o := compositeOptions{filter: BilinearFilter}
	for _, opt := range opts {
		opt(&o)
	}

	if err := checkCompositable("base", base); err != nil {
		return nil, err
	}
	if err := checkCompositable("overlay", overlay); err != nil {
		return nil, err
	}

	bb := base.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bb.Dx(), bb.Dy()))
	draw.Draw(dst, dst.Bounds(), base, bb.Min, draw.Src)

	scaled := stretch(overlay, bb.Dx(), bb.Dy(), interpolations[o.filter])
	draw.Draw(dst, dst.Bounds(), scaled, scaled.Bounds().Min, draw.Over)

	return dst, nil
}

// stretch scales img to exactly width x height.
func stretch(img image.Image, width, height int, interp resize.InterpolationFunction) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, interp)
}

func checkCompositable(role string, img image.Image) error {
	if img == nil {
		return errors.Wrapf(ErrInvalidDimension, "%s image is nil", role)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return errors.Wrapf(ErrInvalidDimension, "%s image is %dx%d", role, b.Dx(), b.Dy())
	}
	if p, ok := img.ColorModel().(color.Palette); ok && len(p) == 0 {
		return errors.Wrapf(ErrEncoding, "%s image has an empty palette", role)
	}
	return nil
}
