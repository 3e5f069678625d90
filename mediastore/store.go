// Package mediastore persists captured photos and videos and keeps a
// catalogue of what was written. A Request carries the same metadata a
// platform media store asks for: display name, MIME type and the relative
// collection path.
package mediastore

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-camerax/images"
	"github.com/pkg/errors"
)

// Default collections for captured media.
const (
	ImageCollection = "Pictures/CameraX-Image"
	VideoCollection = "Movies/CameraX-Video"

	MIMEVideoMP4 = "video/mp4"
)

var (
	// ErrUnsupportedMIME is returned for media types the store cannot name.
	ErrUnsupportedMIME = errors.New("unsupported mime type")
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("media entry not found")
	// ErrInvalidRequest is returned for requests with missing fields or unsafe paths.
	ErrInvalidRequest = errors.New("invalid media request")
)

// Request describes a media item to be written.
type Request struct {
	DisplayName  string
	MIMEType     string
	RelativePath string
}

// Entry is a stored media item.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"display_name"`
	MIMEType     string    `json:"mime_type"`
	RelativePath string    `json:"relative_path"`
	URI          string    `json:"uri"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileName returns the display name with the extension for its MIME type.
func (e Entry) FileName() string {
	ext, _ := ExtensionForMIME(e.MIMEType)
	return e.DisplayName + ext
}

// Sink writes media content.
type Sink interface {
	Save(ctx context.Context, req Request, r io.Reader) (Entry, error)
}

// Opener reads back media content written by a Sink.
type Opener interface {
	Open(ctx context.Context, entry Entry) (io.ReadCloser, error)
}

// ExtensionForMIME returns the file extension used for a media type.
func ExtensionForMIME(mime string) (string, error) {
	if strings.EqualFold(mime, MIMEVideoMP4) {
		return ".mp4", nil
	}
	if f, ok := images.FormatFromMIME(mime); ok {
		return f.Extension(), nil
	}
	return "", errors.Wrapf(ErrUnsupportedMIME, "%q", mime)
}

// MIMEForName returns the media type for a file name, based on its extension.
func MIMEForName(name string) (string, error) {
	if strings.EqualFold(path.Ext(name), ".mp4") {
		return MIMEVideoMP4, nil
	}
	if f, ok := images.FormatFromExtension(name); ok {
		return f.MIMEType(), nil
	}
	return "", errors.Wrapf(ErrUnsupportedMIME, "no media type for %q", name)
}

// Key returns the slash-separated object key for a request.
func (r Request) Key() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	ext, err := ExtensionForMIME(r.MIMEType)
	if err != nil {
		return "", err
	}
	return path.Join(cleanRelative(r.RelativePath), r.DisplayName+ext), nil
}

// Validate checks that the request names a file inside its collection.
func (r Request) Validate() error {
	if r.DisplayName == "" || r.MIMEType == "" {
		return errors.Wrap(ErrInvalidRequest, "display name and mime type are required")
	}
	if strings.ContainsAny(r.DisplayName, `/\`) || r.DisplayName == "." || r.DisplayName == ".." {
		return errors.Wrapf(ErrInvalidRequest, "display name %q", r.DisplayName)
	}
	rel := cleanRelative(r.RelativePath)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return errors.Wrapf(ErrInvalidRequest, "relative path %q escapes the store", r.RelativePath)
	}
	return nil
}

func cleanRelative(p string) string {
	p = path.Clean(strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/"))
	if p == "." {
		return ""
	}
	return p
}

// entryID derives a stable identifier from an entry URI.
func entryID(uri string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(uri))
}
