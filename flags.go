package main

import (
	"github.com/spf13/pflag"

	"github.com/tcolgate/motioncam/config"
)

// newFlagSet binds every config key to a flag, using the values already in
// cfg as defaults.
func newFlagSet(cfg *config.Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("motioncam", pflag.ContinueOnError)

	fs.StringVar(&cfg.Source, "source", cfg.Source, "frame source, webcam or board")
	fs.StringVarP(&cfg.Device, "device", "d", cfg.Device, "video device to use")
	fs.StringVarP(&cfg.Format, "format", "f", cfg.Format, "video format to use, default first supported")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "width of compared frames")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "height of compared frames")
	fs.Float64Var(&cfg.FPS, "fps", cfg.FPS, "target capture rate")
	fs.Float64Var(&cfg.ThroughputWindowSecs, "throughput-window", cfg.ThroughputWindowSecs, "seconds between throughput reports")
	fs.IntVar(&cfg.AcquireTimeoutMillis, "acquire-timeout-ms", cfg.AcquireTimeoutMillis, "how long to wait for a single frame")

	fs.IntVar(&cfg.Sensitivity, "sensitivity", cfg.Sensitivity, "green channel change for a pixel to count as changed")
	fs.Float64Var(&cfg.SampleFraction, "sample-fraction", cfg.SampleFraction, "portion of pixels compared per frame")
	fs.IntVar(&cfg.CalibrationSamples, "calibration-samples", cfg.CalibrationSamples, "frame pairs measured while calibrating")
	fs.IntVar(&cfg.CalibrationRetries, "calibration-retries", cfg.CalibrationRetries, "calibration attempts before giving up")
	fs.IntVar(&cfg.MaxHardwareErrors, "max-hardware-errors", cfg.MaxHardwareErrors, "consecutive frame failures tolerated")

	fs.Float64Var(&cfg.DimPercent, "dim-percent", cfg.DimPercent, "brightness of unchanged pixels in rendered deltas")
	fs.IntVar(&cfg.MinRegionPixels, "min-region-pixels", cfg.MinRegionPixels, "report changed regions larger than this, 0 disables")

	fs.StringVar(&cfg.BoardCommand, "board-command", cfg.BoardCommand, "board camera process")
	fs.StringSliceVar(&cfg.BoardArgs, "board-args", cfg.BoardArgs, "extra arguments for the board camera process")
	fs.IntVar(&cfg.BoardFramerate, "board-framerate", cfg.BoardFramerate, "frame rate requested from the board camera")
	fs.BoolVar(&cfg.VFlip, "vflip", cfg.VFlip, "flip board camera frames vertically")

	fs.Float64Var(&cfg.SessionSecs, "session-secs", cfg.SessionSecs, "capture for this long, 0 runs until interrupted")
	fs.StringVarP(&cfg.Listen, "listen", "l", cfg.Listen, "addr to serve the delta viewer on")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log as JSON")

	return fs
}

// overlayFlags copies every flag explicitly set in set onto the flags bound
// to dst.
func overlayFlags(set, dst *pflag.FlagSet) error {
	var err error
	set.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		target := dst.Lookup(f.Name)
		if target == nil {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			if tv, ok := target.Value.(pflag.SliceValue); ok {
				err = tv.Replace(sv.GetSlice())
				return
			}
		}
		err = dst.Set(f.Name, f.Value.String())
	})
	return err
}
