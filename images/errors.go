package images

import "github.com/pkg/errors"

var (
	// ErrInvalidDimension is returned when a width or height is not positive
	// or an image is nil or empty.
	ErrInvalidDimension = errors.New("invalid dimension")
	// ErrEncoding is returned when pixel data cannot be combined, decoded or
	// encoded.
	ErrEncoding = errors.New("encoding error")
)
