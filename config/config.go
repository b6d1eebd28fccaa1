package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	SourceWebcam = "webcam"
	SourceBoard  = "board"
)

// Config holds the capture pipeline settings. Fields may be loaded from a
// YAML, TOML or JSON file and overridden by command-line flags.
type Config struct {
	Source string `yaml:"source" toml:"source" json:"source"`
	Device string `yaml:"device" toml:"device" json:"device"`
	Format string `yaml:"format" toml:"format" json:"format"`

	// Resolution of the frames handed to the comparison.
	Width  int `yaml:"width" toml:"width" json:"width"`
	Height int `yaml:"height" toml:"height" json:"height"`

	FPS                  float64 `yaml:"fps" toml:"fps" json:"fps"`
	ThroughputWindowSecs float64 `yaml:"throughput_window_secs" toml:"throughput_window_secs" json:"throughput_window_secs"`
	AcquireTimeoutMillis int     `yaml:"acquire_timeout_ms" toml:"acquire_timeout_ms" json:"acquire_timeout_ms"`

	// Motion detection
	Sensitivity        int     `yaml:"sensitivity" toml:"sensitivity" json:"sensitivity"`
	SampleFraction     float64 `yaml:"sample_fraction" toml:"sample_fraction" json:"sample_fraction"`
	CalibrationSamples int     `yaml:"calibration_samples" toml:"calibration_samples" json:"calibration_samples"`
	CalibrationRetries int     `yaml:"calibration_retries" toml:"calibration_retries" json:"calibration_retries"`
	MaxHardwareErrors  int     `yaml:"max_hardware_errors" toml:"max_hardware_errors" json:"max_hardware_errors"`

	// Rendering of deltas between key frames
	DimPercent      float64 `yaml:"dim_percent" toml:"dim_percent" json:"dim_percent"`
	MinRegionPixels int     `yaml:"min_region_pixels" toml:"min_region_pixels" json:"min_region_pixels"`

	// Board camera process
	BoardCommand   string   `yaml:"board_command" toml:"board_command" json:"board_command"`
	BoardArgs      []string `yaml:"board_args" toml:"board_args" json:"board_args"`
	BoardFramerate int      `yaml:"board_framerate" toml:"board_framerate" json:"board_framerate"`
	VFlip          bool     `yaml:"vflip" toml:"vflip" json:"vflip"`

	SessionSecs float64 `yaml:"session_secs" toml:"session_secs" json:"session_secs"`
	Listen      string  `yaml:"listen" toml:"listen" json:"listen"`
	LogLevel    string  `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogJSON     bool    `yaml:"log_json" toml:"log_json" json:"log_json"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Source:               SourceWebcam,
		Device:               "/dev/video0",
		Width:                320,
		Height:               240,
		FPS:                  10,
		ThroughputWindowSecs: 1,
		AcquireTimeoutMillis: 1000,
		Sensitivity:          50,
		SampleFraction:       0.1,
		CalibrationSamples:   5,
		CalibrationRetries:   3,
		MaxHardwareErrors:    5,
		DimPercent:           40,
		BoardCommand:         "rpicam-vid",
		BoardFramerate:       32,
		LogLevel:             "info",
	}
}

// Validate fills unset values with defaults and rejects values the pipeline
// can not run with.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Source == "" {
		c.Source = def.Source
	}
	c.Source = strings.ToLower(c.Source)
	if c.Source != SourceWebcam && c.Source != SourceBoard {
		return errors.Errorf("unknown source %q, want %q or %q", c.Source, SourceWebcam, SourceBoard)
	}
	if c.Device == "" {
		c.Device = def.Device
	}
	if c.Width == 0 {
		c.Width = def.Width
	}
	if c.Height == 0 {
		c.Height = def.Height
	}
	if c.Width < 0 || c.Height < 0 {
		return errors.Errorf("invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.FPS == 0 {
		c.FPS = def.FPS
	}
	if c.FPS < 0 {
		return errors.Errorf("invalid fps %.2f", c.FPS)
	}
	if c.ThroughputWindowSecs <= 0 {
		c.ThroughputWindowSecs = def.ThroughputWindowSecs
	}
	if c.AcquireTimeoutMillis <= 0 {
		c.AcquireTimeoutMillis = def.AcquireTimeoutMillis
	}
	if c.Sensitivity < 0 || c.Sensitivity > 255 {
		return errors.Errorf("invalid sensitivity %d (must be 0-255)", c.Sensitivity)
	}
	if c.SampleFraction == 0 {
		c.SampleFraction = def.SampleFraction
	}
	if c.SampleFraction < 0 || c.SampleFraction > 1 {
		return errors.Errorf("invalid sample fraction %.3f (must be in (0,1])", c.SampleFraction)
	}
	if c.CalibrationSamples == 0 {
		c.CalibrationSamples = def.CalibrationSamples
	}
	if c.CalibrationRetries == 0 {
		c.CalibrationRetries = def.CalibrationRetries
	}
	if c.CalibrationSamples < 0 || c.CalibrationRetries < 0 {
		return errors.Errorf("invalid calibration samples/retries %d/%d", c.CalibrationSamples, c.CalibrationRetries)
	}
	if c.MaxHardwareErrors < 0 {
		return errors.Errorf("invalid max hardware errors %d", c.MaxHardwareErrors)
	}
	if c.DimPercent < 0 || c.DimPercent > 100 {
		return errors.Errorf("invalid dim percent %.1f (must be 0-100)", c.DimPercent)
	}
	if c.MinRegionPixels < 0 {
		c.MinRegionPixels = 0
	}
	if c.BoardCommand == "" {
		c.BoardCommand = def.BoardCommand
	}
	if c.BoardFramerate <= 0 {
		c.BoardFramerate = def.BoardFramerate
	}
	if c.SessionSecs < 0 {
		c.SessionSecs = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	return nil
}

// ThroughputWindow is the throughput reporting window.
func (c *Config) ThroughputWindow() time.Duration {
	return time.Duration(c.ThroughputWindowSecs * float64(time.Second))
}

// AcquireTimeout is how long a source waits for a single frame.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMillis) * time.Millisecond
}

// SessionDuration is how long the command captures, zero meaning until
// interrupted.
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionSecs * float64(time.Second))
}

// Load reads the configuration file at path. The decoder is chosen from the
// file extension: .yaml/.yml, .toml, anything else is read as JSON. A
// missing file yields DefaultConfig().
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = json.NewDecoder(bytes.NewReader(data)).Decode(cfg)
	}
	if err != nil {
		return DefaultConfig(), errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}
