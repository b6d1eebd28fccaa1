package motion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motioncam/frame"
)

var (
	// ErrNotCalibrated is returned by Start before a successful Configure.
	ErrNotCalibrated = errors.New("capture loop has no motion threshold")
	// ErrAlreadyConfigured is returned by a second Configure.
	ErrAlreadyConfigured = errors.New("capture loop already configured")
	// ErrStopped is returned by Configure when Stop wins the race.
	ErrStopped = errors.New("capture loop stopped")
)

// DefaultMaxHardwareErrors is used when Options.MaxHardwareErrors is zero.
const DefaultMaxHardwareErrors = 5

// State is the lifecycle stage of a CaptureLoop.
type State int32

const (
	StateUninitialized State = iota
	StateCalibrating
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCalibrating:
		return "calibrating"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a CaptureLoop.
type Options struct {
	Engine *Engine
	// Trainer defaults to a Calibrator sharing the loop's Pacer, run with
	// CalibrationSamples and CalibrationRetries.
	Trainer            Trainer
	CalibrationSamples int
	CalibrationRetries int
	// FPS and ThroughputWindow drive the loop's Pacer.
	FPS              float64
	ThroughputWindow time.Duration
	// MaxHardwareErrors is how many consecutive acquisition failures are
	// skipped before the loop gives up. Zero means DefaultMaxHardwareErrors,
	// a negative value makes the first failure fatal.
	MaxHardwareErrors int
	Log               logrus.FieldLogger
}

// Stats summarises a capture session.
type Stats struct {
	State      State
	Threshold  MotionThreshold
	Frames     uint64
	KeyFrames  uint64
	Skipped    uint64
	Throughput float64
}

// CaptureLoop pulls frames from a source at a bounded rate and queues the
// ones that differ from their predecessor by more than the trained
// threshold.
type CaptureLoop struct {
	id     string
	src    frame.Source
	engine *Engine
	train  Trainer
	pacer  *Pacer
	queue  *Queue
	maxHW  int
	log    logrus.FieldLogger

	mu        sync.Mutex
	state     atomic.Int32
	threshold MotionThreshold
	trained   bool
	cancel    context.CancelFunc
	done      chan struct{}
	err       error

	// configCancel aborts an in-flight Configure.
	configCancel context.CancelFunc

	stopOnce    sync.Once
	releaseOnce sync.Once

	seq       uint64
	frames    atomic.Uint64
	keyFrames atomic.Uint64
	skipped   atomic.Uint64
}

// NewCaptureLoop returns a loop owning src.
func NewCaptureLoop(src frame.Source, opts Options) *CaptureLoop {
	id := uuid.NewString()
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("session", id)

	engine := opts.Engine
	if engine == nil {
		engine = &Engine{Sensitivity: 50, SampleFraction: 0.1}
	}
	pacer := NewPacer(opts.FPS, opts.ThroughputWindow, func(fps float64) {
		log.WithField("fps", fps).Debug("capture throughput")
	})
	train := opts.Trainer
	if train == nil {
		samples, retries := opts.CalibrationSamples, opts.CalibrationRetries
		if samples == 0 {
			samples = 5
		}
		if retries == 0 {
			retries = 3
		}
		train = &Calibrator{Engine: engine, Samples: samples, Retries: retries, Pacer: pacer, Log: log}
	}

	maxHW := opts.MaxHardwareErrors
	switch {
	case maxHW == 0:
		maxHW = DefaultMaxHardwareErrors
	case maxHW < 0:
		maxHW = 0
	}

	return &CaptureLoop{
		id:     id,
		src:    src,
		engine: engine,
		train:  train,
		pacer:  pacer,
		queue:  NewQueue(),
		maxHW:  maxHW,
		log:    log,
	}
}

// ID identifies the capture session in logs.
func (c *CaptureLoop) ID() string { return c.id }

// Queue is where key frames are published.
func (c *CaptureLoop) Queue() *Queue { return c.queue }

// Pacer is the loop's frame pacer, shared with calibration.
func (c *CaptureLoop) Pacer() *Pacer { return c.pacer }

func (c *CaptureLoop) State() State { return State(c.state.Load()) }

func (c *CaptureLoop) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.log.WithFields(logrus.Fields{"from": prev, "to": s}).Debug("capture state")
	}
}

// Threshold returns the trained threshold, if any.
func (c *CaptureLoop) Threshold() (MotionThreshold, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold, c.trained
}

func (c *CaptureLoop) Stats() Stats {
	threshold, _ := c.Threshold()
	return Stats{
		State:      c.State(),
		Threshold:  threshold,
		Frames:     c.frames.Load(),
		KeyFrames:  c.keyFrames.Load(),
		Skipped:    c.skipped.Load(),
		Throughput: c.pacer.Throughput(),
	}
}

// Configure initializes the source and trains the motion threshold. On
// failure, or if Stop is called meanwhile, the loop is stopped, the source
// released and the queue closed.
func (c *CaptureLoop) Configure(ctx context.Context) error {
	c.mu.Lock()
	switch c.State() {
	case StateUninitialized:
	case StateStopped:
		c.mu.Unlock()
		return ErrStopped
	default:
		c.mu.Unlock()
		return ErrAlreadyConfigured
	}
	c.setState(StateCalibrating)
	ctx, cancel := context.WithCancel(ctx)
	c.configCancel = cancel
	c.mu.Unlock()
	defer cancel()

	if err := c.src.Init(ctx); err != nil {
		if !frame.IsInitialization(err) {
			err = frame.NewInitializationError("frame source", err)
		}
		c.log.WithError(err).Error("unable to initialize frame source")
		c.shutdown()
		return err
	}

	threshold, err := c.train.Train(ctx, c.src)
	if err != nil {
		var ce *CalibrationError
		if !errors.As(err, &ce) {
			err = &CalibrationError{Attempts: 1, Err: err}
		}
		c.log.WithError(err).Error("unable to train motion, stopping")
		c.shutdown()
		return err
	}

	c.mu.Lock()
	c.configCancel = nil
	if c.State() != StateCalibrating {
		c.mu.Unlock()
		c.log.Info("stopped during calibration")
		c.shutdown()
		return ErrStopped
	}
	c.threshold = threshold
	c.trained = true
	c.mu.Unlock()
	return nil
}

// Start launches the producer goroutine.
func (c *CaptureLoop) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.trained {
		return ErrNotCalibrated
	}
	if c.State() != StateCalibrating {
		return errors.Errorf("can not start capture loop in state %s", c.State())
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.setState(StateRunning)

	threshold, done := c.threshold, c.done
	go func() {
		defer close(done)
		err := c.run(ctx, threshold)
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
	}()
	return nil
}

// Stop asks the producer to finish its current iteration and exit. It is
// safe to call from any goroutine, any number of times. The source is only
// released by whoever is still using it: the producer, an in-flight
// Configure, or Stop itself when neither is.
func (c *CaptureLoop) Stop() {
	c.stopOnce.Do(func() {
		c.log.Info("stop requested")
		c.mu.Lock()
		c.setState(StateStopped)
		cancel, configCancel := c.cancel, c.configCancel
		c.mu.Unlock()
		switch {
		case cancel != nil:
			cancel()
		case configCancel != nil:
			configCancel()
		default:
			c.shutdown()
		}
	})
}

// Wait blocks until the producer has exited and returns its error.
func (c *CaptureLoop) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// shutdown moves to Stopped, closes the queue and releases the source once.
func (c *CaptureLoop) shutdown() {
	c.setState(StateStopped)
	c.queue.Close()
	c.releaseOnce.Do(func() {
		if err := c.src.Release(); err != nil {
			c.log.WithError(err).Warn("release frame source")
		}
	})
}

// acquire fetches one paced frame.
func (c *CaptureLoop) acquire(ctx context.Context) (*frame.Frame, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	f, err := c.src.Acquire(ctx)
	c.pacer.Mark()
	if err != nil {
		return nil, err
	}
	c.seq++
	f.Seq = c.seq
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	c.frames.Add(1)
	return f, nil
}

// skip records a failed frame and reports whether the streak is now fatal.
func (c *CaptureLoop) skip(err error, streak int) bool {
	c.skipped.Add(1)
	if streak > c.maxHW {
		return true
	}
	c.log.WithError(err).WithField("streak", streak).Warn("skipping frame")
	return false
}

func (c *CaptureLoop) run(ctx context.Context, threshold MotionThreshold) error {
	defer c.shutdown()

	c.log.WithField("threshold", threshold).Info("capturing frames")
	tolerance := int(threshold)

	var prev *frame.Frame
	streak := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		curr, err := c.acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			streak++
			if c.skip(err, streak) {
				c.log.WithError(err).Error("frame source keeps failing, stopping capture")
				return errors.Wrapf(err, "%d consecutive frame failures", streak)
			}
			continue
		}

		if prev == nil {
			// baseline for the first comparison
			prev = curr
			streak = 0
			continue
		}

		changed, err := c.engine.Count(prev, curr, tolerance)
		if err != nil {
			streak++
			if c.skip(frame.NewHardwareError("compare", err), streak) {
				return errors.Wrapf(err, "%d consecutive frame failures", streak)
			}
			continue
		}
		streak = 0

		if changed > tolerance {
			c.log.WithFields(logrus.Fields{"seq": curr.Seq, "changed": changed}).Debug("motion detected")
			c.queue.Push(KeyFrameRecord{Seq: curr.Seq, Frame: curr})
			c.keyFrames.Add(1)
		}
		prev = curr
	}
}
