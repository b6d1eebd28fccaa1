package motion

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/tcolgate/motioncam/frame"
)

func TestStride(t *testing.T) {
	cases := []struct {
		pixels   int
		fraction float64
		want     int
	}{
		{200, 0.1, 10},
		{76800, 0.1, 10},
		{100, 1, 1},
		{100, 0, 100},
		{100, 0.001, 100},
		{0, 0.1, 1},
	}
	for _, c := range cases {
		if got := Stride(c.pixels, c.fraction); got != c.want {
			t.Errorf("Stride(%d, %v) = %d, want %d", c.pixels, c.fraction, got, c.want)
		}
	}
}

func TestEngine_IdenticalFramesCountZero(t *testing.T) {
	e := &Engine{Sensitivity: 50, SampleFraction: 0.1}
	a := solidFrame(20, 10, 10, 100, 10)
	changed, err := e.Count(a, a.Clone(), 0)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected 0 changed pixels, got %d", changed)
	}
}

func TestEngine_SensitivityIsStrict(t *testing.T) {
	e := &Engine{Sensitivity: 50, SampleFraction: 1}
	a := solidFrame(4, 4, 0, 100, 0)
	b := withGreen(a, 150, 0, 1)
	b = withGreen(b, 151, 2)

	changed, _, err := e.Compare(a, b, CompareOptions{})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected only the delta of 51 to count, got %d", changed)
	}
}

func TestEngine_OnlyGreenCounts(t *testing.T) {
	e := &Engine{Sensitivity: 10, SampleFraction: 1}
	a := solidFrame(4, 4, 0, 0, 0)
	b := solidFrame(4, 4, 255, 0, 255)
	changed, _, err := e.Compare(a, b, CompareOptions{})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if changed != 0 {
		t.Fatalf("red and blue changes must be ignored, got %d", changed)
	}
}

func TestEngine_ShortCircuit(t *testing.T) {
	e := &Engine{Sensitivity: 10, SampleFraction: 1}
	a := solidFrame(10, 10, 0, 0, 0)
	b := solidFrame(10, 10, 0, 200, 0)

	changed, err := e.Count(a, b, 3)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if changed != 4 {
		t.Fatalf("expected the count to stop at tolerance+1, got %d", changed)
	}

	full, _, _ := e.Compare(a, b, CompareOptions{})
	if full != 100 {
		t.Fatalf("expected 100 without short circuit, got %d", full)
	}
}

func TestEngine_SampledCount(t *testing.T) {
	e := &Engine{Sensitivity: 50, SampleFraction: 0.1}
	a := solidFrame(20, 10, 0, 0, 0)
	// offsets 5, 15, ... fall between samples
	var missed []int
	for i := 5; i < 200; i += 10 {
		missed = append(missed, i)
	}
	b := withGreen(a, 200, missed...)
	changed, _, _ := e.Compare(a, b, CompareOptions{})
	if changed != 0 {
		t.Fatalf("unsampled pixels counted: %d", changed)
	}

	c := withGreen(a, 200, 0, 10, 20)
	changed, _, _ = e.Compare(a, c, CompareOptions{})
	if changed != 3 {
		t.Fatalf("expected 3 sampled changes, got %d", changed)
	}
}

func TestEngine_DeltaScansEveryPixel(t *testing.T) {
	e := &Engine{Sensitivity: 50, SampleFraction: 0.1}
	a := solidFrame(20, 10, 0, 0, 0)
	b := withGreen(a, 200, 3, 7, 199)

	offsets, err := e.Delta(a, b)
	if err != nil {
		t.Fatalf("Delta: %v", err)
	}
	want := DeltaPixelList{3, 7, 199}
	if len(offsets) != len(want) {
		t.Fatalf("got offsets %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("got offsets %v, want %v", offsets, want)
		}
	}

	_, offsets, _ = e.Compare(a, b, CompareOptions{RecordOffsets: true, ShortCircuit: true, Tolerance: 0})
	if len(offsets) != 3 {
		t.Fatalf("recording offsets must ignore short circuit, got %v", offsets)
	}
}

func TestEngine_DeltaEmptyWhenUnchanged(t *testing.T) {
	e := &Engine{Sensitivity: 50}
	a := solidFrame(3, 3, 1, 2, 3)
	offsets, err := e.Delta(a, a.Clone())
	if err != nil {
		t.Fatalf("Delta: %v", err)
	}
	if offsets == nil || len(offsets) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", offsets)
	}
}

func TestEngine_ShapeMismatch(t *testing.T) {
	e := &Engine{Sensitivity: 50, SampleFraction: 0.1}
	_, _, err := e.Compare(frame.New(4, 4), frame.New(4, 5), CompareOptions{})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}
