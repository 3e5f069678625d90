// Package config - Configuration for the capture session, its collaborators
// and media storage.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-camerax/images"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StorageBackend selects where captured media is written.
type StorageBackend string

const (
	// StorageFile writes media below a local directory.
	StorageFile StorageBackend = "file"
	// StorageS3 uploads media to an S3 bucket.
	StorageS3 StorageBackend = "s3"
)

// Environment variables that override file values.
const (
	EnvDevice      = "CAMERAX_DEVICE"
	EnvOutputDir   = "CAMERAX_OUTPUT_DIR"
	EnvStorage     = "CAMERAX_STORAGE"
	EnvS3Bucket    = "CAMERAX_S3_BUCKET"
	EnvS3Region    = "CAMERAX_S3_REGION"
	EnvCatalogDSN  = "CAMERAX_CATALOG_DSN"
	EnvOverlay     = "CAMERAX_OVERLAY"
	EnvJPEGQuality = "CAMERAX_JPEG_QUALITY"
)

// CameraConfig describes the capture device.
type CameraConfig struct {
	// Device is a device index ("0") or a video file path.
	Device string `json:"device" yaml:"device"`
	// MaxWidth and MaxHeight bound the capture resolution the sensor can deliver.
	MaxWidth  int `json:"max_width" yaml:"max_width"`
	MaxHeight int `json:"max_height" yaml:"max_height"`
	// FPS is the recording frame rate.
	FPS float64 `json:"fps" yaml:"fps"`
}

// ScreenConfig describes the display the session binds its aspect ratio to.
// A zero size means "ask the screen source".
type ScreenConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// StorageConfig describes where media ends up and how it is catalogued.
type StorageConfig struct {
	Backend    StorageBackend `json:"backend" yaml:"backend"`
	OutputDir  string         `json:"output_dir" yaml:"output_dir"`
	S3Bucket   string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region   string         `json:"s3_region" yaml:"s3_region"`
	CatalogDSN string         `json:"catalog_dsn" yaml:"catalog_dsn"`
}

// PhotoConfig controls compositing and encoding of photos.
type PhotoConfig struct {
	// Overlay enables drawing the screenshot over the captured photo.
	Overlay        bool                  `json:"overlay" yaml:"overlay"`
	ResampleFilter images.ResampleFilter `json:"resample_filter" yaml:"resample_filter"`
	JPEGQuality    int                   `json:"jpeg_quality" yaml:"jpeg_quality"`
}

// Config is the complete application configuration.
type Config struct {
	Camera         CameraConfig  `json:"camera" yaml:"camera"`
	Screen         ScreenConfig  `json:"screen" yaml:"screen"`
	Storage        StorageConfig `json:"storage" yaml:"storage"`
	Photo          PhotoConfig   `json:"photo" yaml:"photo"`
	RecordDuration time.Duration `json:"record_duration" yaml:"record_duration"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Device:    "0",
			MaxWidth:  1920,
			MaxHeight: 1080,
			FPS:       30,
		},
		Storage: StorageConfig{
			Backend:    StorageFile,
			OutputDir:  "media",
			CatalogDSN: "media/catalog.db",
		},
		Photo: PhotoConfig{
			Overlay:        true,
			ResampleFilter: images.BilinearFilter,
			JPEGQuality:    images.DefaultJPEGQuality,
		},
		RecordDuration: 10 * time.Second,
	}
}

// Load reads the configuration. Values are layered: defaults, then the YAML
// file at path (if non-empty), then the optional .env file and process
// environment.
//
// Arguments:
//   - path: Path to a YAML configuration file, may be empty.
//   - envFiles: Optional dotenv files; missing files are ignored.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: An error if a file cannot be parsed or validation fails.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "load env file %s", f)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvDevice); ok {
		c.Camera.Device = v
	}
	if v, ok := os.LookupEnv(EnvOutputDir); ok {
		c.Storage.OutputDir = v
	}
	if v, ok := os.LookupEnv(EnvStorage); ok {
		c.Storage.Backend = StorageBackend(v)
	}
	if v, ok := os.LookupEnv(EnvS3Bucket); ok {
		c.Storage.S3Bucket = v
	}
	if v, ok := os.LookupEnv(EnvS3Region); ok {
		c.Storage.S3Region = v
	}
	if v, ok := os.LookupEnv(EnvCatalogDSN); ok {
		c.Storage.CatalogDSN = v
	}
	if v, ok := os.LookupEnv(EnvOverlay); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvOverlay)
		}
		c.Photo.Overlay = b
	}
	if v, ok := os.LookupEnv(EnvJPEGQuality); ok {
		q, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvJPEGQuality)
		}
		c.Photo.JPEGQuality = q
	}
	return nil
}

// Validate checks the configuration for values the session cannot work with.
func (c *Config) Validate() error {
	if c.Camera.Device == "" {
		return errors.New("camera device is required")
	}
	if c.Camera.MaxWidth <= 0 || c.Camera.MaxHeight <= 0 {
		return errors.Wrapf(images.ErrInvalidDimension, "camera max size %dx%d", c.Camera.MaxWidth, c.Camera.MaxHeight)
	}
	if c.Camera.FPS <= 0 {
		return errors.Errorf("camera fps must be positive, got %v", c.Camera.FPS)
	}
	if c.Screen.Width < 0 || c.Screen.Height < 0 || (c.Screen.Width == 0) != (c.Screen.Height == 0) {
		return errors.Wrapf(images.ErrInvalidDimension, "screen size %dx%d", c.Screen.Width, c.Screen.Height)
	}
	if _, err := images.ParseResampleFilter(string(c.Photo.ResampleFilter)); err != nil {
		return err
	}
	if c.Photo.JPEGQuality < 1 || c.Photo.JPEGQuality > 100 {
		return errors.Errorf("jpeg quality must be within 1..100, got %d", c.Photo.JPEGQuality)
	}
	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.OutputDir == "" {
			return errors.New("storage output_dir is required for the file backend")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" || c.Storage.S3Region == "" {
			return errors.New("storage s3_bucket and s3_region are required for the s3 backend")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.RecordDuration < 0 {
		return errors.Errorf("record duration must not be negative, got %s", c.RecordDuration)
	}
	return nil
}
