// Package motion detects movement between successive camera frames and
// hands the frames that contain it to a consumer.
package motion

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tcolgate/motioncam/frame"
)

// ErrShapeMismatch is returned when two frames of different size are
// compared.
var ErrShapeMismatch = errors.New("frames differ in size")

// DeltaPixelList holds the offsets of changed pixels in scan order.
type DeltaPixelList []int

// CompareOptions tunes a single comparison.
type CompareOptions struct {
	// SampleFraction overrides the engine's fraction when non-zero.
	SampleFraction float64
	// Tolerance is the count above which a comparison may stop early.
	Tolerance int
	// ShortCircuit enables stopping once the count exceeds Tolerance.
	ShortCircuit bool
	// RecordOffsets scans every pixel and returns the changed offsets.
	RecordOffsets bool
}

// Engine counts changed pixels between two frames by sampling the green
// channel on an evenly spaced stride.
type Engine struct {
	// Sensitivity is how much the green channel must move for a pixel to
	// count as changed.
	Sensitivity int
	// SampleFraction is the portion of pixels visited per comparison.
	SampleFraction float64
}

// Stride returns the distance between sampled pixels for a frame of
// pixelCount pixels. At least one pixel is always sampled.
func Stride(pixelCount int, fraction float64) int {
	if pixelCount <= 0 {
		return 1
	}
	samples := int(math.Round(fraction * float64(pixelCount)))
	if samples < 1 {
		samples = 1
	}
	stride := pixelCount / samples
	if stride < 1 {
		stride = 1
	}
	return stride
}

// Compare counts the sampled pixels whose green channel moved by more than
// the engine sensitivity.
func (e *Engine) Compare(prev, curr *frame.Frame, opts CompareOptions) (int, DeltaPixelList, error) {
	if !prev.SameShape(curr) {
		return 0, nil, errors.Wrapf(ErrShapeMismatch, "%dx%d vs %dx%d", prev.Width, prev.Height, curr.Width, curr.Height)
	}

	n := curr.PixelCount()
	fraction := opts.SampleFraction
	if fraction == 0 {
		fraction = e.SampleFraction
	}
	stride := Stride(n, fraction)

	var offsets DeltaPixelList
	if opts.RecordOffsets {
		stride = 1
		offsets = DeltaPixelList{}
	}
	shortCircuit := opts.ShortCircuit && !opts.RecordOffsets

	changed := 0
	for i := 0; i < n; i += stride {
		d := int(curr.Green(i)) - int(prev.Green(i))
		if d < 0 {
			d = -d
		}
		if d <= e.Sensitivity {
			continue
		}
		changed++
		if offsets != nil {
			offsets = append(offsets, i)
		}
		if shortCircuit && changed > opts.Tolerance {
			return changed, nil, nil
		}
	}
	return changed, offsets, nil
}

// Count is the hot-path comparison: sampled, stopping once tolerance is
// exceeded.
func (e *Engine) Count(prev, curr *frame.Frame, tolerance int) (int, error) {
	changed, _, err := e.Compare(prev, curr, CompareOptions{Tolerance: tolerance, ShortCircuit: true})
	return changed, err
}

// Delta scans every pixel and returns the changed offsets.
func (e *Engine) Delta(prev, curr *frame.Frame) (DeltaPixelList, error) {
	_, offsets, err := e.Compare(prev, curr, CompareOptions{RecordOffsets: true})
	return offsets, err
}
