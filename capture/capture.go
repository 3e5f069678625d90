// Package capture - Photo and video capture orchestration. The camera, the
// screen and media storage are reached only through the small interfaces in
// this file so the session logic can run against real devices or fakes.
package capture

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

var (
	// ErrNotBound is returned when capturing before Bind succeeded.
	ErrNotBound = errors.New("camera use cases are not bound")
	// ErrPermissionDenied is returned when a required permission is missing.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoFrame is returned when a source produced no image.
	ErrNoFrame = errors.New("no frame available")
	// ErrRecordingUnsupported is returned when the session has no frame source
	// or video writer.
	ErrRecordingUnsupported = errors.New("video recording is not configured")
)

// ImageSource produces still photos.
type ImageSource interface {
	Capture(ctx context.Context) (image.Image, error)
	Close() error
}

// Configurer is implemented by sources whose output size can be requested.
type Configurer interface {
	Configure(width, height int) error
}

// ScreenSource produces a screenshot of the current UI.
type ScreenSource interface {
	Screenshot(ctx context.Context) (image.Image, error)
}

// FrameSource produces the continuous frames used for recording.
type FrameSource interface {
	Size() (width, height int)
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// VideoWriter encodes frames into a video container.
type VideoWriter interface {
	WriteFrame(img image.Image) error
	Close() error
}

// VideoWriterFactory creates a VideoWriter writing to path.
type VideoWriterFactory interface {
	Create(path string, fps float64, width, height int) (VideoWriter, error)
}

// Permission names a capability the session needs from the host.
type Permission string

// Permissions requested by the session.
const (
	PermissionCamera       Permission = "camera"
	PermissionRecordAudio  Permission = "record_audio"
	PermissionWriteStorage Permission = "write_storage"
)

// RequiredPermissions are the permissions needed for all features.
var RequiredPermissions = []Permission{PermissionCamera, PermissionRecordAudio, PermissionWriteStorage}

// PermissionChecker reports granted permissions.
type PermissionChecker interface {
	Granted(p Permission) bool
}

// StaticPermissions is a PermissionChecker backed by a fixed set.
type StaticPermissions map[Permission]bool

// Granted implements PermissionChecker.
func (s StaticPermissions) Granted(p Permission) bool {
	return s[p]
}

// AllPermissions grants every permission.
func AllPermissions() StaticPermissions {
	s := StaticPermissions{}
	for _, p := range RequiredPermissions {
		s[p] = true
	}
	return s
}

// Missing returns the required permissions the checker does not grant.
func Missing(checker PermissionChecker) []Permission {
	var missing []Permission
	for _, p := range RequiredPermissions {
		if !checker.Granted(p) {
			missing = append(missing, p)
		}
	}
	return missing
}
