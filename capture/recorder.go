package capture

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/nvr-ai/go-camerax/mediastore"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RecordEventType identifies a recording lifecycle event.
type RecordEventType int

const (
	// EventStart is emitted once the recording is running.
	EventStart RecordEventType = iota
	// EventFinalize is emitted once the recording has stopped and its output
	// was committed (or failed).
	EventFinalize
)

func (t RecordEventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventFinalize:
		return "finalize"
	}
	return "unknown"
}

// RecordEvent describes a recording state change.
type RecordEvent struct {
	Type     RecordEventType
	Name     string
	Audio    bool
	Frames   int
	Duration time.Duration
	// Entry is the stored video, set on a successful finalize.
	Entry mediastore.Entry
	// Err is set when the recording ended with an error.
	Err error
}

// HasError reports whether a finalize event carries an error.
func (e RecordEvent) HasError() bool {
	return e.Err != nil
}

// Recording is a running video recording. Frames are pumped from the source
// to the writer on a separate goroutine until Stop is called, the context is
// cancelled, the source reports io.EOF or a read or write fails.
type Recording struct {
	name    string
	audio   bool
	frames  FrameSource
	writer  VideoWriter
	commit  func(ctx context.Context) (mediastore.Entry, error)
	discard func()
	logger  *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	mu       sync.Mutex
	stopped  bool
	count    int
	finalize RecordEvent
}

type recordingOptions struct {
	name   string
	audio  bool
	frames FrameSource
	writer VideoWriter
	// commit stores the finished video; called only when pumping succeeded.
	commit func(ctx context.Context) (mediastore.Entry, error)
	// discard drops the partial output of a recording that is not committed.
	discard func()
	// onFinalize is called from the pump goroutine with the final event,
	// after Done is closed.
	onFinalize func(*Recording, RecordEvent)
	logger     *zap.Logger
}

func startRecording(ctx context.Context, opts recordingOptions) *Recording {
	ctx, cancel := context.WithCancel(ctx)
	r := &Recording{
		name:    opts.name,
		audio:   opts.audio,
		frames:  opts.frames,
		writer:  opts.writer,
		commit:  opts.commit,
		discard: opts.discard,
		logger:  opts.logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}

	go func() {
		event := r.run()
		close(r.done)
		if opts.onFinalize != nil {
			opts.onFinalize(r, event)
		}
	}()
	return r
}

// Name returns the display name of the recording.
func (r *Recording) Name() string {
	return r.name
}

// Frames returns the number of frames written so far.
func (r *Recording) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Stop ends the recording, waits for the output to be committed and returns
// the finalize event. Calling Stop more than once returns the same event.
func (r *Recording) Stop() RecordEvent {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	<-r.done
	return r.Finalized()
}

// Done is closed once the recording has been finalized.
func (r *Recording) Done() <-chan struct{} {
	return r.done
}

// Finalized returns the finalize event; only meaningful after Done is closed.
func (r *Recording) Finalized() RecordEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalize
}

func (r *Recording) run() RecordEvent {
	pumpErr := r.pump()

	if err := r.writer.Close(); err != nil && pumpErr == nil {
		pumpErr = errors.Wrap(err, "close video writer")
	}

	event := RecordEvent{
		Type:     EventFinalize,
		Name:     r.name,
		Audio:    r.audio,
		Frames:   r.Frames(),
		Duration: time.Since(r.started),
	}
	switch {
	case pumpErr != nil:
		event.Err = pumpErr
		r.drop()
	case event.Frames == 0:
		event.Err = errors.Wrap(ErrNoFrame, "recording has no frames")
		r.drop()
	default:
		// The pump context is already cancelled; commit on a fresh one.
		entry, err := r.commit(context.WithoutCancel(r.ctx))
		event.Entry, event.Err = entry, err
	}

	r.mu.Lock()
	r.finalize = event
	r.mu.Unlock()
	return event
}

func (r *Recording) drop() {
	if r.discard != nil {
		r.discard()
	}
}

func (r *Recording) pump() error {
	for {
		if r.ctx.Err() != nil {
			return r.endPump()
		}

		img, err := r.frames.ReadFrame(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return r.endPump()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "read frame")
		}
		if err := r.writer.WriteFrame(img); err != nil {
			return errors.Wrap(err, "write frame")
		}

		r.mu.Lock()
		r.count++
		r.mu.Unlock()
	}
}

// endPump ends a pump cancelled by Stop or by the parent context. Frames
// written so far are committed in both cases.
func (r *Recording) endPump() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	if r.logger != nil {
		r.logger.Warn("recording interrupted", zap.String("name", r.name), zap.Error(r.ctx.Err()))
	}
	return nil
}
