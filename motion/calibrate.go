package motion

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motioncam/frame"
)

// MotionThreshold is the calibrated noise floor: changed-pixel counts at or
// below it are sensor noise.
type MotionThreshold int

// CalibrationError reports that no threshold could be established.
type CalibrationError struct {
	Attempts int
	Err      error
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("motion calibration failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// Trainer establishes a motion threshold from a source.
type Trainer interface {
	Train(ctx context.Context, src frame.Source) (MotionThreshold, error)
}

// TrainerFunc adapts a function to Trainer.
type TrainerFunc func(ctx context.Context, src frame.Source) (MotionThreshold, error)

func (f TrainerFunc) Train(ctx context.Context, src frame.Source) (MotionThreshold, error) {
	return f(ctx, src)
}

// Calibrator measures the changed-pixel count between successive frames of
// a static scene and keeps the smallest one.
type Calibrator struct {
	Engine  *Engine
	Samples int
	Retries int
	// Pacer, when set, spaces calibration frames like the capture loop.
	Pacer *Pacer
	Log   logrus.FieldLogger
}

// Train runs up to Retries attempts of Samples comparisons each.
func (c *Calibrator) Train(ctx context.Context, src frame.Source) (MotionThreshold, error) {
	log := c.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	attempts := c.Retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		threshold, err := c.attempt(ctx, src)
		if err == nil {
			log.WithFields(logrus.Fields{"threshold": threshold, "attempt": attempt}).Info("trained motion detection")
			return threshold, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, &CalibrationError{Attempts: attempt, Err: ctx.Err()}
		}
		log.WithError(err).WithField("attempt", attempt).Warn("motion training attempt failed")
	}
	return 0, &CalibrationError{Attempts: attempts, Err: lastErr}
}

func (c *Calibrator) next(ctx context.Context, src frame.Source) (*frame.Frame, error) {
	if c.Pacer != nil {
		if err := c.Pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}
	f, err := src.Acquire(ctx)
	if c.Pacer != nil {
		c.Pacer.Mark()
	}
	return f, err
}

func (c *Calibrator) attempt(ctx context.Context, src frame.Source) (MotionThreshold, error) {
	if c.Samples < 1 {
		return 0, errors.Errorf("no calibration samples configured")
	}
	prev, err := c.next(ctx, src)
	if err != nil {
		return 0, errors.Wrap(err, "baseline frame")
	}

	lowest := -1
	for i := 0; i < c.Samples; i++ {
		curr, err := c.next(ctx, src)
		if err != nil {
			return 0, errors.Wrapf(err, "sample %d", i+1)
		}
		changed, _, err := c.Engine.Compare(prev, curr, CompareOptions{})
		if err != nil {
			return 0, errors.Wrapf(err, "sample %d", i+1)
		}
		if lowest < 0 || changed < lowest {
			lowest = changed
		}
		prev = curr
	}
	return MotionThreshold(lowest), nil
}
