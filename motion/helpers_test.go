package motion

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motioncam/frame"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// solidFrame builds a w x h frame with every pixel set to (r, g, b).
func solidFrame(w, h int, r, g, b uint8) *frame.Frame {
	f := frame.New(w, h)
	for i := 0; i < f.PixelCount(); i++ {
		f.SetRGB(i, r, g, b)
	}
	return f
}

// withGreen returns a copy of f with the green channel of offsets set to g.
func withGreen(f *frame.Frame, g uint8, offsets ...int) *frame.Frame {
	c := f.Clone()
	for _, off := range offsets {
		r, _, b := c.RGB(off)
		c.SetRGB(off, r, g, b)
	}
	return c
}

// fakeSource plays back a fixed list of frames, repeating the last one once
// the list is exhausted. failAfter, when positive, makes every acquisition
// after that many successful ones fail.
type fakeSource struct {
	mu        sync.Mutex
	frames    []*frame.Frame
	next      int
	initErr   error
	acqErr    error
	failAfter int
	inited    bool

	acquired atomic.Int64
	released atomic.Int64
}

func (s *fakeSource) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initErr != nil {
		return s.initErr
	}
	s.inited = true
	return nil
}

func (s *fakeSource) Acquire(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.released.Load() > 0 {
		return nil, frame.NewHardwareError("acquire", errors.New("source already released"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.acquired.Add(1)
	if !s.inited {
		return nil, frame.NewHardwareError("acquire", errors.New("not initialized"))
	}
	if s.acqErr != nil {
		return nil, frame.NewHardwareError("acquire", s.acqErr)
	}
	if s.failAfter > 0 && n > int64(s.failAfter) {
		return nil, frame.NewHardwareError("acquire", errors.New("device gone"))
	}
	if len(s.frames) == 0 {
		return nil, frame.NewHardwareError("acquire", errors.New("no frames"))
	}
	i := s.next
	if i >= len(s.frames) {
		i = len(s.frames) - 1
		// keep the producer from spinning on a static scene
		time.Sleep(time.Millisecond)
	} else {
		s.next++
	}
	return s.frames[i].Clone(), nil
}

func (s *fakeSource) Release() error {
	s.released.Add(1)
	return nil
}

func fixedTrainer(t MotionThreshold) Trainer {
	return TrainerFunc(func(ctx context.Context, src frame.Source) (MotionThreshold, error) {
		return t, nil
	})
}
