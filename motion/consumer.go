package motion

import (
	"image"

	"github.com/disintegration/gift"
	"github.com/pkg/errors"

	"github.com/tcolgate/motioncam/frame"
)

// RenderedDelta is a key frame with every unchanged pixel dimmed, so the
// motion since the previous key frame stands out.
type RenderedDelta struct {
	From    uint64
	To      uint64
	Frame   *frame.Frame
	Changed int
	Offsets DeltaPixelList
	Regions []Region
}

// Consumer pairs successive key frames and renders the difference between
// them. It is meant to be driven from a single goroutine.
type Consumer struct {
	engine     *Engine
	dim        *gift.GIFT
	minRegion  int
	regionBlur float32

	seed *KeyFrameRecord
}

// NewConsumer returns a consumer that dims unchanged pixels to dimPercent of
// their value. A positive minRegionPixels enables region analysis.
func NewConsumer(engine *Engine, dimPercent float64, minRegionPixels int) *Consumer {
	factor := float32(dimPercent / 100)
	return &Consumer{
		engine: engine,
		dim: gift.New(
			gift.ColorFunc(func(r0, g0, b0, a0 float32) (r, g, b, a float32) {
				return r0 * factor, g0 * factor, b0 * factor, a0
			}),
		),
		minRegion:  minRegionPixels,
		regionBlur: DefaultRegionBlur,
	}
}

// Accumulate takes the next key frame. The first call only seeds the
// consumer. Later calls return a rendered delta against the previous key
// frame, or nil when nothing changed at full resolution. The new record
// always replaces the seed.
func (c *Consumer) Accumulate(rec KeyFrameRecord) (*RenderedDelta, error) {
	if rec.Frame == nil {
		return nil, errors.Errorf("key frame %d has no frame", rec.Seq)
	}
	prev := c.seed
	c.seed = &rec
	if prev == nil {
		return nil, nil
	}

	offsets, err := c.engine.Delta(prev.Frame, rec.Frame)
	if err != nil {
		return nil, errors.Wrapf(err, "delta %d..%d", prev.Seq, rec.Seq)
	}
	if len(offsets) == 0 {
		return nil, nil
	}

	out := c.render(rec.Frame, offsets)
	out.Seq = rec.Seq
	out.Timestamp = rec.Frame.Timestamp

	d := &RenderedDelta{
		From:    prev.Seq,
		To:      rec.Seq,
		Frame:   out,
		Changed: len(offsets),
		Offsets: offsets,
	}
	if c.minRegion > 0 {
		d.Regions = FindRegions(out.Width, out.Height, offsets, c.regionBlur, c.minRegion)
	}
	return d, nil
}

// Seed is the key frame the next record will be compared against.
func (c *Consumer) Seed() (KeyFrameRecord, bool) {
	if c.seed == nil {
		return KeyFrameRecord{}, false
	}
	return *c.seed, true
}

func (c *Consumer) render(src *frame.Frame, offsets DeltaPixelList) *frame.Frame {
	dst := image.NewRGBA(c.dim.Bounds(src.Bounds()))
	c.dim.Draw(dst, src)
	out := frame.FromImage(dst)
	for _, off := range offsets {
		r, g, b := src.RGB(off)
		out.SetRGB(off, r, g, b)
	}
	return out
}
