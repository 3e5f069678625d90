package images

import (
	"crypto/md5"
	"fmt"
	"image"
	"image/draw"
)

// Checksum generates a deterministic checksum of an image's pixels, independent
// of its concrete type and origin.
//
// Arguments:
// - img: The image to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string, or "empty" for nil or empty images.
//
// Example:
//
// ```go
//
//	checksum := Checksum(photo)
//	logger.Debug("photo captured", zap.String("checksum", checksum))
//
// ```
func Checksum(img image.Image) string {
	if img == nil || img.Bounds().Empty() {
		return "empty"
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != 4*rgba.Rect.Dx() {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	hash := md5.New()
	hash.Write(rgba.Pix)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
