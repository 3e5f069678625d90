package images

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassifyAspectRatio covers the reference points and boundary inputs.
func TestClassifyAspectRatio(t *testing.T) {
	testCases := []struct {
		name     string
		width    int
		height   int
		expected AspectRatio
	}{
		{name: "exact 4:3", width: 4, height: 3, expected: AspectRatio43},
		{name: "exact 16:9", width: 16, height: 9, expected: AspectRatio169},
		{name: "VGA", width: 640, height: 480, expected: AspectRatio43},
		{name: "Full HD", width: 1920, height: 1080, expected: AspectRatio169},
		{name: "portrait phone", width: 1080, height: 2340, expected: AspectRatio169},
		{name: "portrait tablet", width: 1536, height: 2048, expected: AspectRatio43},
		{name: "square", width: 1000, height: 1000, expected: AspectRatio43},
		{name: "midpoint ties to 4:3", width: 1400, height: 900, expected: AspectRatio43},
		{name: "midpoint small", width: 14, height: 9, expected: AspectRatio43},
		{name: "just past midpoint", width: 1401, height: 900, expected: AspectRatio169},
		{name: "just before midpoint", width: 1399, height: 900, expected: AspectRatio43},
		{name: "ultra wide", width: 3440, height: 1440, expected: AspectRatio169},
		{name: "1x1 pixel", width: 1, height: 1, expected: AspectRatio43},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ClassifyAspectRatio(tc.width, tc.height)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestClassifyAspectRatio_Symmetric(t *testing.T) {
	for w := 1; w <= 64; w++ {
		for h := 1; h <= 64; h++ {
			a, err := ClassifyAspectRatio(w, h)
			require.NoError(t, err)
			b, err := ClassifyAspectRatio(h, w)
			require.NoError(t, err)
			assert.Equal(t, a, b, "classify(%d,%d) != classify(%d,%d)", w, h, h, w)
		}
	}
}

func TestClassifyAspectRatio_Deterministic(t *testing.T) {
	first, err := ClassifyAspectRatio(2340, 1080)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := ClassifyAspectRatio(2340, 1080)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestClassifyAspectRatio_LargeDimensions(t *testing.T) {
	testCases := []struct {
		name     string
		width    int
		height   int
		expected AspectRatio
	}{
		{name: "huge long side", width: math.MaxInt / 2, height: 1, expected: AspectRatio169},
		{name: "huge portrait", width: 1, height: math.MaxInt, expected: AspectRatio169},
		{name: "huge square", width: math.MaxInt, height: math.MaxInt, expected: AspectRatio43},
		{name: "huge 4:3", width: math.MaxInt / 4 * 4, height: math.MaxInt / 4 * 3, expected: AspectRatio43},
		{name: "huge 16:9", width: math.MaxInt / 16 * 16, height: math.MaxInt / 16 * 9, expected: AspectRatio169},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ClassifyAspectRatio(tc.width, tc.height)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)

			swapped, err := ClassifyAspectRatio(tc.height, tc.width)
			require.NoError(t, err)
			assert.Equal(t, got, swapped)
		})
	}
}

func TestClassifyAspectRatio_InvalidDimension(t *testing.T) {
	for _, dims := range [][2]int{{0, 1080}, {1920, 0}, {-4, 3}, {4, -3}, {0, 0}} {
		got, err := ClassifyAspectRatio(dims[0], dims[1])
		assert.Empty(t, got)
		assert.True(t, errors.Is(err, ErrInvalidDimension), "dims %v: %v", dims, err)
	}
}

// TestResolution_GetMegaPixels performs table-driven tests on the GetMegaPixels method.
func TestResolution_GetMegaPixels(t *testing.T) {
	fhd, _ := GetResolutionByType(ResolutionTypeFHD1080p)
	uhd, _ := GetResolutionByType(ResolutionType4KUHD)

	testCases := []struct {
		name     string
		res      Resolution
		expected float64
	}{
		// 1920 * 1080 = 2,073,600 -> 2.07 MP
		{name: "Full HD 1080p", res: fhd, expected: 2.07},
		// 3840 * 2160 = 8,294,400 -> 8.29 MP
		{name: "4K UHD", res: uhd, expected: 8.29},
		{name: "Zero Width", res: Resolution{Pixels: Pixels{Width: 0, Height: 1080}}, expected: 0.0},
		{name: "Negative Height", res: Resolution{Pixels: Pixels{Width: 1920, Height: -1}}, expected: 0.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, tc.res.GetMegaPixels(), 1e-9)
		})
	}
}

// TestResolution_String verifies the human-readable string output for a resolution.
func TestResolution_String(t *testing.T) {
	res, ok := GetResolutionByType(ResolutionTypeFHD1080p)
	require.True(t, ok)
	assert.Equal(t, "Full HD 1080p (1920x1080, 2.07MP)", res.String())
}

func TestCatalogueRatiosMatchClassifier(t *testing.T) {
	for _, res := range GetSupportedResolutions() {
		if res.AspectRatio != AspectRatio43 && res.AspectRatio != AspectRatio169 {
			continue
		}
		got, err := res.Pixels.Classify()
		require.NoError(t, err)
		assert.Equal(t, res.AspectRatio, got, res.String())
	}
}

func TestGetSupportedResolutions_ExcludesExperimental(t *testing.T) {
	for _, res := range GetSupportedResolutions() {
		assert.False(t, res.Experimental, res.String())
	}
}

func TestHighestResolutionForAspectRatio(t *testing.T) {
	testCases := []struct {
		name      string
		ratio     AspectRatio
		maxW      int
		maxH      int
		expected  ResolutionType
		expectHit bool
	}{
		{name: "1080p sensor 16:9", ratio: AspectRatio169, maxW: 1920, maxH: 1080, expected: ResolutionTypeFHD1080p, expectHit: true},
		{name: "1080p sensor 4:3", ratio: AspectRatio43, maxW: 1920, maxH: 1080, expected: ResolutionTypeXGA, expectHit: true},
		{name: "portrait bounds", ratio: AspectRatio169, maxW: 1080, maxH: 1920, expected: ResolutionTypeFHD1080p, expectHit: true},
		{name: "12MP sensor 4:3", ratio: AspectRatio43, maxW: 4000, maxH: 3000, expected: ResolutionType12MP, expectHit: true},
		{name: "experimental never chosen", ratio: AspectRatio169, maxW: 100000, maxH: 100000, expected: ResolutionType4KUHD, expectHit: true},
		{name: "too small", ratio: AspectRatio43, maxW: 320, maxH: 240, expectHit: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := HighestResolutionForAspectRatio(tc.ratio, tc.maxW, tc.maxH)
			assert.Equal(t, tc.expectHit, ok)
			if tc.expectHit {
				assert.Equal(t, tc.expected, res.Name)
			}
		})
	}
}
