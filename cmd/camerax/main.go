// Command camerax takes photos and videos from a local camera, overlaying the
// current screen on photos, and stores them in a media collection.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-camerax/capture"
	"github.com/nvr-ai/go-camerax/config"
	"github.com/nvr-ai/go-camerax/mediastore"
	"github.com/nvr-ai/go-camerax/profiler"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const usage = `usage: camerax [flags] <command>

Commands:
  photo         bind to the screen and take one photo
  record        record a video for --duration or until interrupted
  probe <path>  print the aspect ratio class of a video file
  list [mime]   list catalogued media, optionally filtered by mime prefix

Flags:
`

// options holds the command line flags.
type options struct {
	configPath string
	envFile    string
	device     string
	output     string
	storage    string
	noOverlay  bool
	debug      bool
	duration   time.Duration
	set        map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	o := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet("camerax", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&o.configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&o.envFile, "env-file", ".env", "Path to an optional dotenv file")
	fs.StringVar(&o.device, "device", "", "Capture device index or video path")
	fs.StringVar(&o.output, "output", "", "Output directory for the file storage backend")
	fs.StringVar(&o.storage, "storage", "", "Storage backend (file or s3)")
	fs.BoolVar(&o.noOverlay, "no-overlay", false, "Do not draw the screenshot over photos")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	fs.DurationVar(&o.duration, "duration", 0, "Recording length for the record command")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, errors.New("missing command")
	}
	return o, fs.Args(), nil
}

// apply overrides configuration values with flags given on the command line.
func (o *options) apply(cfg *config.Config) error {
	if o.set["device"] {
		cfg.Camera.Device = o.device
	}
	if o.set["output"] {
		cfg.Storage.OutputDir = o.output
	}
	if o.set["storage"] {
		cfg.Storage.Backend = config.StorageBackend(o.storage)
	}
	if o.noOverlay {
		cfg.Photo.Overlay = false
	}
	if o.set["duration"] {
		cfg.RecordDuration = o.duration
	}
	return cfg.Validate()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "camerax: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, cmd, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.debug)
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	if err := opts.apply(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd[0] {
	case "probe":
		if len(cmd) < 2 {
			return errors.New("probe requires a video path")
		}
		info, err := capture.ProbeAspectRatio(ctx, cmd[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\t%dx%d\t%s\n", cmd[1], info.Width, info.Height, info.AspectRatio)
		return nil

	case "list":
		catalog, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		defer catalog.Close()

		prefix := ""
		if len(cmd) > 1 {
			prefix = cmd[1]
		}
		entries, err := catalog.List(ctx, prefix)
		if err != nil {
			return err
		}
		for _, e := range entries {
			printEntry(stdout, e)
		}
		return nil

	case "photo", "record":
		return runSession(ctx, cmd[0], cfg, logger, stdout)
	}

	return errors.Errorf("unknown command %q", cmd[0])
}

func openCatalog(ctx context.Context, cfg *config.Config) (*mediastore.Catalog, error) {
	var sink mediastore.Sink
	switch cfg.Storage.Backend {
	case config.StorageS3:
		s3Sink, err := mediastore.NewS3Sink(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Region)
		if err != nil {
			return nil, err
		}
		sink = s3Sink
	default:
		fileSink, err := mediastore.NewFileSink(cfg.Storage.OutputDir)
		if err != nil {
			return nil, err
		}
		sink = fileSink
	}
	return mediastore.OpenCatalog(cfg.Storage.CatalogDSN, sink)
}

func runSession(ctx context.Context, cmd string, cfg *config.Config, logger *zap.Logger, stdout io.Writer) error {
	catalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	camera, err := capture.OpenGocvCamera(cfg.Camera.Device)
	if err != nil {
		return err
	}

	screen := capture.NewDisplayScreenSource()
	width, height := cfg.Screen.Width, cfg.Screen.Height
	if width == 0 {
		if width, height, err = screen.Size(); err != nil {
			camera.Close()
			return errors.Wrap(err, "screen size")
		}
	}

	prof := profiler.New(100)
	defer prof.Report(logger)

	session, err := capture.NewSession(capture.SessionOptions{
		Camera:         camera,
		Frames:         camera,
		Writers:        capture.GocvVideoWriterFactory{},
		Screen:         screen,
		Sink:           catalog,
		MaxWidth:       cfg.Camera.MaxWidth,
		MaxHeight:      cfg.Camera.MaxHeight,
		FPS:            cfg.Camera.FPS,
		Overlay:        cfg.Photo.Overlay,
		ResampleFilter: cfg.Photo.ResampleFilter,
		JPEGQuality:    cfg.Photo.JPEGQuality,
		Logger:         logger,
		Profiler:       prof,
	})
	if err != nil {
		camera.Close()
		return err
	}
	defer session.Close()

	if _, err := session.Bind(ctx, width, height); err != nil {
		return err
	}

	if cmd == "photo" {
		entry, err := session.TakePhoto(ctx)
		if err != nil {
			return err
		}
		printEntry(stdout, entry)
		return nil
	}
	return record(ctx, session, cfg.RecordDuration, stdout)
}

func record(ctx context.Context, session *capture.Session, duration time.Duration, stdout io.Writer) error {
	start, err := session.ToggleRecording(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "recording %s (audio: %t)\n", start.Name, start.Audio)

	rec, ok := session.Recording()
	if !ok {
		return errors.New("recording ended immediately")
	}

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
	case <-timeout:
	case <-rec.Done():
		final := rec.Finalized()
		if final.Err != nil {
			return final.Err
		}
		printEntry(stdout, final.Entry)
		return nil
	}

	// Stop, not ToggleRecording: the recording may have ended meanwhile.
	final := rec.Stop()
	if final.Err != nil {
		return final.Err
	}
	printEntry(stdout, final.Entry)
	return nil
}

func printEntry(w io.Writer, e mediastore.Entry) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.ID, e.MIMEType, e.URI, e.Size, e.CreatedAt.Format(time.RFC3339))
}
