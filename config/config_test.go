package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.ThroughputWindow() != time.Second {
		t.Fatalf("unexpected throughput window %v", cfg.ThroughputWindow())
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Width != 320 || cfg.Source != SourceWebcam {
		t.Fatalf("expected defaults")
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "motioncam.yaml", `
source: board
width: 640
height: 480
sample_fraction: 0.25
board_args: ["--awb", "auto"]
vflip: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != SourceBoard || cfg.Width != 640 || cfg.Height != 480 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.SampleFraction != 0.25 || !cfg.VFlip || len(cfg.BoardArgs) != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Sensitivity != 50 {
		t.Fatalf("unset keys should keep defaults, sensitivity=%d", cfg.Sensitivity)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "motioncam.toml", `
source = "webcam"
device = "/dev/video2"
fps = 15.0
dim_percent = 25.0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device != "/dev/video2" || cfg.FPS != 15 || cfg.DimPercent != 25 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "motioncam.json", `{"calibration_samples": 7, "max_hardware_errors": 2}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CalibrationSamples != 7 || cfg.MaxHardwareErrors != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoad_InvalidSource(t *testing.T) {
	path := writeFile(t, "bad.json", `{"source": "floppy"}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"fraction":    func(c *Config) { c.SampleFraction = 1.5 },
		"dim":         func(c *Config) { c.DimPercent = 120 },
		"sensitivity": func(c *Config) { c.Sensitivity = 300 },
		"fps":         func(c *Config) { c.FPS = -1 },
		"samples":     func(c *Config) { c.CalibrationSamples = -2 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestValidate_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Source != SourceWebcam || cfg.FPS != 10 || cfg.SampleFraction != 0.1 || cfg.BoardCommand != "rpicam-vid" {
		t.Fatalf("zero values not filled: %+v", cfg)
	}
}
