// Package images provides aspect-ratio classification, a catalogue of common
// capture resolutions, image compositing and the image codecs used to persist
// captured photos.
package images

import (
	"fmt"
	"math"
	"math/big"

	"github.com/pkg/errors"
)

// AspectRatio represents a capture aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Defines standard and common aspect ratios for camera sensors and displays.
const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio54  AspectRatio = "5:4"
	AspectRatio32  AspectRatio = "3:2"
	AspectRatio179 AspectRatio = "17:9" // Common in some high-end sensors
)

// Ratio4To3 and Ratio16To9 are the numeric values of the two aspect ratio
// classes a capture pipeline can be configured with.
const (
	Ratio4To3  = 4.0 / 3.0
	Ratio16To9 = 16.0 / 9.0
)

// ClassifyAspectRatio picks the supported aspect ratio class (4:3 or 16:9)
// closest to the ratio of the given dimensions. Orientation does not matter:
// the ratio is always long side over short side. When both classes are
// equally close the result is AspectRatio43.
//
// Arguments:
//   - width: The surface width in pixels, must be positive.
//   - height: The surface height in pixels, must be positive.
//
// Returns:
//   - AspectRatio: AspectRatio43 or AspectRatio169.
//   - error: ErrInvalidDimension if either dimension is not positive.
func ClassifyAspectRatio(width, height int) (AspectRatio, error) {
	if width <= 0 || height <= 0 {
		return "", errors.Wrapf(ErrInvalidDimension, "classify %dx%d", width, height)
	}

	long, short := int64(width), int64(height)
	if short > long {
		long, short = short, long
	}

	// |long/short - 4/3| <= |long/short - 16/9|, scaled by 9*short so the
	// comparison is exact and midpoints such as 14:9 tie correctly.
	if long > math.MaxInt64/16 {
		return classifyWide(long, short), nil
	}
	d43 := 3 * abs64(3*long-4*short)
	d169 := abs64(9*long - 16*short)
	if d43 <= d169 {
		return AspectRatio43, nil
	}
	return AspectRatio169, nil
}

// classifyWide is ClassifyAspectRatio for sides whose scaled terms overflow int64.
func classifyWide(long, short int64) AspectRatio {
	l, s := big.NewInt(long), big.NewInt(short)
	scaled := func(a int64, x *big.Int) *big.Int {
		return new(big.Int).Mul(big.NewInt(a), x)
	}

	d43 := new(big.Int).Sub(scaled(3, l), scaled(4, s))
	d43.Abs(d43).Mul(d43, big.NewInt(3))
	d169 := new(big.Int).Sub(scaled(9, l), scaled(16, s))
	d169.Abs(d169)

	if d43.Cmp(d169) <= 0 {
		return AspectRatio43
	}
	return AspectRatio169
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ResolutionType represents a common name or standard for a capture resolution.
type ResolutionType string

// Defines the unique type for each catalogued resolution.
const (
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeSVGA     ResolutionType = "SVGA"
	ResolutionTypeQHD540   ResolutionType = "qHD 540p"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionTypeXGA      ResolutionType = "XGA"
	ResolutionType1MP54    ResolutionType = "1MP (5:4)"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionType2MP43    ResolutionType = "2MP (4:3)"
	ResolutionTypeQHD1440p ResolutionType = "QHD 1440p"
	ResolutionType3MP43    ResolutionType = "3MP (4:3)"
	ResolutionType6MP32    ResolutionType = "6MP (3:2)"
	ResolutionTypeQHDPlus  ResolutionType = "QHD+"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
	ResolutionType12MP     ResolutionType = "12MP (4:3)"
	ResolutionType8KUHD    ResolutionType = "8K UHD"
	ResolutionType16KUHD   ResolutionType = "16K UHD"
)

// Pixels describes the exact dimensions of a resolution.
type Pixels struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Classify returns the aspect ratio class of the dimensions.
func (p Pixels) Classify() (AspectRatio, error) {
	return ClassifyAspectRatio(p.Width, p.Height)
}

// Fits reports whether p fits inside the bounds in either orientation.
func (p Pixels) Fits(maxWidth, maxHeight int) bool {
	return (p.Width <= maxWidth && p.Height <= maxHeight) ||
		(p.Height <= maxWidth && p.Width <= maxHeight)
}

// Resolution describes the complete set of attributes for a resolution standard.
type Resolution struct {
	Name         ResolutionType `json:"name"`
	AspectRatio  AspectRatio    `json:"aspectRatio"`
	Pixels       Pixels         `json:"pixels"`
	Experimental bool           `json:"experimental"` // Not offered by consumer camera sensors.
}

// GetMegaPixels calculates the megapixel value based on the resolution's pixel dimensions.
// It returns the value rounded to two decimal places (e.g., 2.07 for 1080p).
func (r Resolution) GetMegaPixels() float64 {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Pixels.Width*r.Pixels.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Pixels.Width, r.Pixels.Height, r.GetMegaPixels())
}

// resolutions stores all catalogued resolution standards keyed by type.
var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeVGA: {
		Name:        ResolutionTypeVGA,
		AspectRatio: AspectRatio43,
		Pixels:      Pixels{Width: 640, Height: 480},
	},
	ResolutionTypeNHD: {
		Name:        ResolutionTypeNHD,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 640, Height: 360},
	},
	ResolutionTypeSVGA: {
		Name:        ResolutionTypeSVGA,
		AspectRatio: AspectRatio43,
		Pixels:      Pixels{Width: 800, Height: 600},
	},
	ResolutionTypeQHD540: {
		Name:        ResolutionTypeQHD540,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 960, Height: 540},
	},
	ResolutionTypeHD720p: {
		Name:        ResolutionTypeHD720p,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 1280, Height: 720},
	},
	ResolutionTypeXGA: {
		Name:        ResolutionTypeXGA,
		AspectRatio: AspectRatio43,
		Pixels:      Pixels{Width: 1024, Height: 768},
	},
	ResolutionType1MP54: {
		Name:        ResolutionType1MP54,
		AspectRatio: AspectRatio54,
		Pixels:      Pixels{Width: 1280, Height: 1024},
	},
	ResolutionTypeFHD1080p: {
		Name:        ResolutionTypeFHD1080p,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 1920, Height: 1080},
	},
	ResolutionType2MP43: {
		Name:        ResolutionType2MP43,
		AspectRatio: AspectRatio43,
		Pixels:      Pixels{Width: 1600, Height: 1200},
	},
	ResolutionTypeQHD1440p: {
		Name:        ResolutionTypeQHD1440p,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 2560, Height: 1440},
	},
	ResolutionType3MP43: {
		Name:        ResolutionType3MP43,
		AspectRatio: AspectRatio43,
		Pixels:      Pixels{Width: 2048, Height: 1536},
	},
	ResolutionType6MP32: {
		Name:        ResolutionType6MP32,
		AspectRatio: AspectRatio32,
		Pixels:      Pixels{Width: 3072, Height: 2048},
	},
	ResolutionTypeQHDPlus: {
		Name:        ResolutionTypeQHDPlus,
		AspectRatio: AspectRatio179,
		Pixels:      Pixels{Width: 3200, Height: 1800},
	},
	ResolutionType4KUHD: {
		Name:        ResolutionType4KUHD,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 3840, Height: 2160},
	},
	ResolutionType12MP: {
		Name:        ResolutionType12MP,
		AspectRatio: AspectRatio43,
		Pixels:      Pixels{Width: 4000, Height: 3000},
	},
	ResolutionType8KUHD: {
		Name:         ResolutionType8KUHD,
		AspectRatio:  AspectRatio169,
		Pixels:       Pixels{Width: 7680, Height: 4320},
		Experimental: true,
	},
	ResolutionType16KUHD: {
		Name:         ResolutionType16KUHD,
		AspectRatio:  AspectRatio169,
		Pixels:       Pixels{Width: 15360, Height: 8640},
		Experimental: true,
	},
}

// GetSupportedResolutions returns a slice of all non-experimental resolutions.
// The order is not guaranteed.
func GetSupportedResolutions() []Resolution {
	supported := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		if !res.Experimental {
			supported = append(supported, res)
		}
	}
	return supported
}

// GetResolutionByType retrieves a specific resolution by its type.
func GetResolutionByType(t ResolutionType) (Resolution, bool) {
	res, ok := resolutions[t]
	return res, ok
}

// HighestResolutionForAspectRatio retrieves the largest supported resolution
// with the given aspect ratio that fits within maxWidth x maxHeight in either
// orientation.
//
// Arguments:
//   - ratio: The aspect ratio the resolution must have.
//   - maxWidth: The maximum width the device can deliver.
//   - maxHeight: The maximum height the device can deliver.
//
// Returns:
//   - Resolution: The matching resolution.
//   - bool: True if a resolution was found, otherwise false.
func HighestResolutionForAspectRatio(ratio AspectRatio, maxWidth, maxHeight int) (Resolution, bool) {
	var highest Resolution
	var found bool

	for _, res := range resolutions {
		if res.Experimental || res.AspectRatio != ratio || !res.Pixels.Fits(maxWidth, maxHeight) {
			continue
		}
		if !found || res.GetMegaPixels() > highest.GetMegaPixels() {
			highest = res
			found = true
		}
	}
	return highest, found
}
