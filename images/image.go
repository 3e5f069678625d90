// Package images - Encoded image definition and the codecs used to read and
// write captured photos.
package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// DefaultJPEGQuality is the quality photos are re-compressed with after compositing.
const DefaultJPEGQuality = 100

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// Reader returns a reader over the encoded bytes.
func (i Image) Reader() io.Reader {
	return bytes.NewReader(i.Data)
}

// ImageFormat represents supported image container formats.
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
)

var formatMIME = map[ImageFormat]string{
	FormatJPEG: "image/jpeg",
	FormatWebP: "image/webp",
	FormatPNG:  "image/png",
	FormatBMP:  "image/bmp",
}

var formatExt = map[ImageFormat]string{
	FormatJPEG: ".jpg",
	FormatWebP: ".webp",
	FormatPNG:  ".png",
	FormatBMP:  ".bmp",
}

// MIMEType returns the media type of the format, or "" if unknown.
func (f ImageFormat) MIMEType() string {
	return formatMIME[f]
}

// Extension returns the canonical file extension (with dot), or "" if unknown.
func (f ImageFormat) Extension() string {
	return formatExt[f]
}

// FormatFromMIME maps a media type to an ImageFormat.
func FormatFromMIME(mime string) (ImageFormat, bool) {
	for f, m := range formatMIME {
		if strings.EqualFold(m, mime) {
			return f, true
		}
	}
	return "", false
}

// FormatFromExtension maps a file name or extension to an ImageFormat.
func FormatFromExtension(name string) (ImageFormat, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".png":
		return FormatPNG, true
	case ".webp":
		return FormatWebP, true
	case ".bmp":
		return FormatBMP, true
	}
	return "", false
}

// Decode reads an image in any supported container format.
//
// Arguments:
//   - r: The encoded image stream.
//
// Returns:
//   - image.Image: The decoded image.
//   - ImageFormat: The detected container format.
//   - error: An error wrapping ErrEncoding if the stream cannot be decoded.
func Decode(r io.Reader) (image.Image, ImageFormat, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrapf(ErrEncoding, "decode image: %v", err)
	}

	format := ImageFormat(name)
	if _, ok := formatMIME[format]; !ok {
		return nil, "", errors.Wrapf(ErrEncoding, "unsupported image format %q", name)
	}
	return img, format, nil
}

// Encode writes img to w in the given format. Quality applies to JPEG and
// WebP; values outside 1..100 fall back to DefaultJPEGQuality.
func Encode(w io.Writer, img image.Image, format ImageFormat, quality int) error {
	if img == nil || img.Bounds().Empty() {
		return errors.Wrap(ErrInvalidDimension, "encode empty image")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case FormatBMP:
		err = bmp.Encode(w, img)
	default:
		return errors.Wrapf(ErrEncoding, "unsupported image format %q", format)
	}
	if err != nil {
		return errors.Wrapf(ErrEncoding, "encode %s: %v", format, err)
	}
	return nil
}

// EncodeImage encodes img into an in-memory Image.
func EncodeImage(img image.Image, format ImageFormat, quality int) (Image, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return Image{}, err
	}
	b := img.Bounds()
	return Image{
		Format: format,
		Data:   buf.Bytes(),
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}
