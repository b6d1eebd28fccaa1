package motion

import (
	"context"
	"math"
	"sync/atomic"
	"time"
)

// Pacer spaces frame acquisitions to a target rate and measures the rate
// actually achieved over a fixed wall-clock window.
type Pacer struct {
	interval time.Duration
	window   time.Duration
	report   func(fps float64)
	now      func() time.Time

	last        time.Time
	windowStart time.Time
	frames      int
	fps         atomic.Uint64
}

// NewPacer returns a pacer for fps frames per second. A non-positive fps
// disables waiting. report, when set, receives the measured rate at the end
// of every window.
func NewPacer(fps float64, window time.Duration, report func(fps float64)) *Pacer {
	var interval time.Duration
	if fps > 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}
	if window <= 0 {
		window = time.Second
	}
	return &Pacer{
		interval: interval,
		window:   window,
		report:   report,
		now:      time.Now,
	}
}

// Interval is the target spacing between frames.
func (p *Pacer) Interval() time.Duration { return p.interval }

// Wait blocks until the interval has elapsed since the last Mark. It returns
// immediately when the deadline has already passed.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.last.IsZero() || p.interval <= 0 {
		return nil
	}
	delay := p.last.Add(p.interval).Sub(p.now())
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mark records that a frame has just been acquired.
func (p *Pacer) Mark() {
	now := p.now()
	p.last = now
	if p.windowStart.IsZero() {
		p.windowStart = now
		return
	}
	p.frames++
	elapsed := now.Sub(p.windowStart)
	if elapsed < p.window {
		return
	}
	fps := float64(p.frames) / elapsed.Seconds()
	p.fps.Store(math.Float64bits(fps))
	p.windowStart = now
	p.frames = 0
	if p.report != nil {
		p.report(fps)
	}
}

// Throughput is the rate measured over the last complete window. It is safe
// to call from any goroutine.
func (p *Pacer) Throughput() float64 {
	return math.Float64frombits(p.fps.Load())
}
