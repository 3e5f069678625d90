package capture

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/nvr-ai/go-camerax/images"
	"github.com/nvr-ai/go-camerax/mediastore"
	"github.com/nvr-ai/go-camerax/profiler"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Default session settings.
const (
	DefaultFPS       = 30.0
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1080
)

// SessionOptions configures a Session. Camera and Sink are required.
type SessionOptions struct {
	// Camera produces the still photos.
	Camera ImageSource
	// Frames feeds recordings; nil disables recording.
	Frames FrameSource
	// Writers creates the video encoder for each recording; nil disables recording.
	Writers VideoWriterFactory
	// Screen provides the overlay screenshot; required when Overlay is set.
	Screen ScreenSource
	// Sink stores photos and finished videos.
	Sink mediastore.Sink
	// Permissions defaults to AllPermissions.
	Permissions PermissionChecker

	// MaxWidth and MaxHeight bound the capture resolution.
	MaxWidth, MaxHeight int
	// FPS is the recording frame rate.
	FPS float64
	// Overlay composites the screenshot over each photo.
	Overlay        bool
	ResampleFilter images.ResampleFilter
	JPEGQuality    int
	// TempDir holds videos while they are recorded; defaults to os.TempDir().
	TempDir string

	// OnRecordEvent receives every recording event, including finalize events
	// for recordings that ended on their own.
	OnRecordEvent func(RecordEvent)

	Logger   *zap.Logger
	Profiler *profiler.Profiler
	// Now is the clock used for display names; defaults to time.Now.
	Now func() time.Time
}

// Binding is the capture configuration chosen for a screen.
type Binding struct {
	ScreenWidth  int
	ScreenHeight int
	AspectRatio  images.AspectRatio
	Resolution   images.Resolution
}

// Session binds a camera to a screen's aspect ratio and takes photos and
// videos. Methods are safe for concurrent use.
type Session struct {
	opts   SessionOptions
	logger *zap.Logger

	// ctx lives until Close and parents every recording.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	binding   *Binding
	recording *Recording
	closed    bool
}

// NewSession validates opts and returns an unbound session.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Camera == nil {
		return nil, errors.New("session requires a camera")
	}
	if opts.Sink == nil {
		return nil, errors.New("session requires a media sink")
	}
	if opts.Overlay && opts.Screen == nil {
		return nil, errors.New("session overlay requires a screen source")
	}
	if opts.Permissions == nil {
		opts.Permissions = AllPermissions()
	}
	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		opts.MaxWidth, opts.MaxHeight = DefaultMaxWidth, DefaultMaxHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.ResampleFilter == "" {
		opts.ResampleFilter = images.BilinearFilter
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = images.DefaultJPEGQuality
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{opts: opts, logger: logger.Named("session"), ctx: ctx, cancel: cancel}, nil
}

// Bind selects the capture configuration for a screen of the given size:
// the screen is classified as 4:3 or 16:9 and the largest catalogued
// resolution of that class within the camera bounds is requested from the
// camera. Rebinding replaces the previous binding.
//
// Arguments:
//   - ctx: Cancels the bind.
//   - screenWidth: The screen width in pixels.
//   - screenHeight: The screen height in pixels.
//
// Returns:
//   - Binding: The chosen configuration.
//   - error: ErrPermissionDenied, ErrInvalidDimension or a camera error.
func (s *Session) Bind(ctx context.Context, screenWidth, screenHeight int) (Binding, error) {
	if err := ctx.Err(); err != nil {
		return Binding{}, err
	}
	if !s.opts.Permissions.Granted(PermissionCamera) {
		return Binding{}, errors.Wrapf(ErrPermissionDenied, "%s", PermissionCamera)
	}

	s.logger.Debug("Screen metrics", zap.Int("width", screenWidth), zap.Int("height", screenHeight))
	ratio, err := images.ClassifyAspectRatio(screenWidth, screenHeight)
	if err != nil {
		return Binding{}, err
	}
	s.logger.Debug("Preview aspect ratio", zap.String("ratio", string(ratio)))

	res, ok := images.HighestResolutionForAspectRatio(ratio, s.opts.MaxWidth, s.opts.MaxHeight)
	if !ok {
		// Let the camera pick the closest size it can deliver.
		res = images.Resolution{
			Name:        "sensor",
			AspectRatio: ratio,
			Pixels:      images.Pixels{Width: s.opts.MaxWidth, Height: s.opts.MaxHeight},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Binding{}, errors.New("session is closed")
	}

	// Unbind use cases before rebinding.
	s.binding = nil
	if c, ok := s.opts.Camera.(Configurer); ok {
		if err := c.Configure(res.Pixels.Width, res.Pixels.Height); err != nil {
			s.logger.Error("Use case binding failed", zap.Error(err))
			return Binding{}, errors.Wrap(err, "configure camera")
		}
	}

	b := Binding{
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
		AspectRatio:  ratio,
		Resolution:   res,
	}
	s.binding = &b
	s.logger.Info("camera bound", zap.String("ratio", string(ratio)), zap.Stringer("resolution", res))
	return b, nil
}

// Binding returns the current binding.
func (s *Session) Binding() (Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binding == nil {
		return Binding{}, false
	}
	return *s.binding, true
}

// TakePhoto captures a still, overlays the current screenshot when enabled,
// and saves the result as a JPEG in the image collection. The screenshot is
// taken after the camera has returned the photo, so it shows the UI as it
// was when the photo arrived.
func (s *Session) TakePhoto(ctx context.Context) (mediastore.Entry, error) {
	if _, ok := s.Binding(); !ok {
		return mediastore.Entry{}, ErrNotBound
	}
	if !s.opts.Permissions.Granted(PermissionWriteStorage) {
		return mediastore.Entry{}, errors.Wrapf(ErrPermissionDenied, "%s", PermissionWriteStorage)
	}

	entry, err := s.takePhoto(ctx)
	if err != nil {
		s.logger.Error("Photo capture failed", zap.Error(err))
		return mediastore.Entry{}, err
	}
	s.logger.Info("Photo capture succeeded", zap.String("uri", entry.URI), zap.Int64("size", entry.Size))
	return entry, nil
}

func (s *Session) takePhoto(ctx context.Context) (mediastore.Entry, error) {
	name := DisplayName(s.opts.Now())

	done := s.opts.Profiler.StartOperation("capture")
	photo, err := s.opts.Camera.Capture(ctx)
	done()
	if err != nil {
		return mediastore.Entry{}, errors.Wrap(err, "capture photo")
	}
	if photo == nil {
		return mediastore.Entry{}, errors.Wrap(ErrNoFrame, "capture photo")
	}

	final := photo
	if s.opts.Overlay {
		if final, err = s.overlay(ctx, photo); err != nil {
			return mediastore.Entry{}, err
		}
	}

	done = s.opts.Profiler.StartOperation("encode")
	encoded, err := images.EncodeImage(final, images.FormatJPEG, s.opts.JPEGQuality)
	done()
	if err != nil {
		return mediastore.Entry{}, errors.Wrap(err, "encode photo")
	}

	done = s.opts.Profiler.StartOperation("save")
	entry, err := s.opts.Sink.Save(ctx, mediastore.Request{
		DisplayName:  name,
		MIMEType:     images.FormatJPEG.MIMEType(),
		RelativePath: mediastore.ImageCollection,
	}, encoded.Reader())
	done()
	if err != nil {
		return mediastore.Entry{}, errors.Wrap(err, "save photo")
	}

	if ce := s.logger.Check(zap.DebugLevel, "photo stored"); ce != nil {
		ce.Write(
			zap.String("name", name),
			zap.Int("width", encoded.Width),
			zap.Int("height", encoded.Height),
			zap.String("checksum", images.Checksum(final)),
		)
	}
	return entry, nil
}

func (s *Session) overlay(ctx context.Context, photo image.Image) (image.Image, error) {
	done := s.opts.Profiler.StartOperation("screenshot")
	shot, err := s.opts.Screen.Screenshot(ctx)
	done()
	if err != nil {
		return nil, errors.Wrap(err, "take screenshot")
	}

	done = s.opts.Profiler.StartOperation("composite")
	out, err := images.Composite(photo, shot, images.WithResampleFilter(s.opts.ResampleFilter))
	done()
	if err != nil {
		return nil, errors.Wrap(err, "composite screenshot")
	}
	return out, nil
}

// Recording returns the active recording, if any.
func (s *Session) Recording() (*Recording, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording, s.recording != nil
}

// ToggleRecording stops the active recording and returns its finalize event,
// or starts a new recording and returns its start event. Audio is flagged
// only when the record-audio permission is granted. A started recording
// outlives ctx; it runs until toggled off, it ends on its own, or the
// session is closed.
func (s *Session) ToggleRecording(ctx context.Context) (RecordEvent, error) {
	s.mu.Lock()
	if rec := s.recording; rec != nil {
		s.recording = nil
		s.mu.Unlock()

		event := rec.Stop()
		if event.Err != nil {
			return event, event.Err
		}
		return event, nil
	}

	event, announced, err := s.startRecordingLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return RecordEvent{}, err
	}

	s.emit(event)
	close(announced)
	return event, nil
}

// startRecordingLocked starts a recording; s.mu must be held. The finalize
// event of the recording is held back until announced is closed so listeners
// always see the start event first.
func (s *Session) startRecordingLocked(ctx context.Context) (RecordEvent, chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return RecordEvent{}, nil, err
	}
	if s.closed {
		return RecordEvent{}, nil, errors.New("session is closed")
	}
	if s.binding == nil {
		return RecordEvent{}, nil, ErrNotBound
	}
	if s.opts.Frames == nil || s.opts.Writers == nil {
		return RecordEvent{}, nil, ErrRecordingUnsupported
	}
	if !s.opts.Permissions.Granted(PermissionWriteStorage) {
		return RecordEvent{}, nil, errors.Wrapf(ErrPermissionDenied, "%s", PermissionWriteStorage)
	}

	name := DisplayName(s.opts.Now())
	audio := s.opts.Permissions.Granted(PermissionRecordAudio)
	tmpPath := filepath.Join(s.opts.TempDir, "camerax-"+name+".mp4")
	discard := func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove temporary video", zap.String("path", tmpPath), zap.Error(err))
		}
	}

	width, height := s.opts.Frames.Size()
	writer, err := s.opts.Writers.Create(tmpPath, s.opts.FPS, width, height)
	if err != nil {
		discard()
		return RecordEvent{}, nil, errors.Wrap(err, "create video writer")
	}

	announced := make(chan struct{})
	s.recording = startRecording(s.ctx, recordingOptions{
		name:   name,
		audio:  audio,
		frames: s.opts.Frames,
		writer: writer,
		logger: s.logger,
		commit: func(ctx context.Context) (mediastore.Entry, error) {
			return s.commitVideo(ctx, name, tmpPath)
		},
		discard: discard,
		onFinalize: func(rec *Recording, event RecordEvent) {
			s.finalized(rec, event, announced)
		},
	})

	s.logger.Info("Video capture started", zap.String("name", name), zap.Bool("audio", audio),
		zap.Int("width", width), zap.Int("height", height))
	return RecordEvent{Type: EventStart, Name: name, Audio: audio}, announced, nil
}

func (s *Session) commitVideo(ctx context.Context, name, tmpPath string) (mediastore.Entry, error) {
	defer os.Remove(tmpPath)

	f, err := os.Open(tmpPath)
	if err != nil {
		return mediastore.Entry{}, errors.Wrap(err, "open recorded video")
	}
	defer f.Close()

	done := s.opts.Profiler.StartOperation("save")
	defer done()
	entry, err := s.opts.Sink.Save(ctx, mediastore.Request{
		DisplayName:  name,
		MIMEType:     mediastore.MIMEVideoMP4,
		RelativePath: mediastore.VideoCollection,
	}, f)
	if err != nil {
		return mediastore.Entry{}, errors.Wrap(err, "save video")
	}
	return entry, nil
}

// finalized runs on the recording goroutine once a recording has ended.
func (s *Session) finalized(rec *Recording, event RecordEvent, announced <-chan struct{}) {
	s.mu.Lock()
	if s.recording == rec {
		s.recording = nil
	}
	s.mu.Unlock()

	if event.Err != nil {
		s.logger.Error("Video capture ends with error", zap.String("name", event.Name), zap.Error(event.Err))
	} else {
		s.logger.Info("Video capture succeeded", zap.String("uri", event.Entry.URI),
			zap.Int("frames", event.Frames), zap.Duration("duration", event.Duration))
	}
	<-announced
	s.emit(event)
}

func (s *Session) emit(event RecordEvent) {
	if s.opts.OnRecordEvent != nil {
		s.opts.OnRecordEvent(event)
	}
}

// Close cancels the session context, which interrupts an active recording
// (frames written so far are still committed), waits for that recording to
// finalize and closes the camera and frame source.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	rec := s.recording
	s.recording = nil
	s.binding = nil
	s.mu.Unlock()

	s.cancel()
	if rec != nil {
		<-rec.Done()
	}

	err := s.opts.Camera.Close()
	if s.opts.Frames != nil && !sameDevice(s.opts.Frames, s.opts.Camera) {
		if ferr := s.opts.Frames.Close(); err == nil {
			err = ferr
		}
	}
	return errors.Wrap(err, "close session")
}

// sameDevice reports whether a and b are the same object. Values of
// non-comparable types are never the same device.
func sameDevice(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
