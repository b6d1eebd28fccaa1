package camera

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motioncam/config"
	"github.com/tcolgate/motioncam/frame"
)

// Open returns the frame source selected by cfg. The source is not yet
// initialized.
func Open(cfg *config.Config, log logrus.FieldLogger) (frame.Source, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch cfg.Source {
	case config.SourceWebcam:
		return &Webcam{
			Device:  cfg.Device,
			Format:  cfg.Format,
			Width:   cfg.Width,
			Height:  cfg.Height,
			Timeout: cfg.AcquireTimeout(),
			Log:     log.WithField("source", cfg.Source),
		}, nil
	case config.SourceBoard:
		return &Board{
			Command: cfg.BoardCommand,
			Args:    BoardArgs(cfg.Width, cfg.Height, cfg.BoardFramerate, cfg.BoardArgs),
			Width:   cfg.Width,
			Height:  cfg.Height,
			VFlip:   cfg.VFlip,
			Timeout: cfg.AcquireTimeout(),
			Log:     log.WithField("source", cfg.Source),
		}, nil
	default:
		return nil, errors.Errorf("unknown source %q", cfg.Source)
	}
}
