package frame

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/pkg/errors"
)

func TestFrame_OffsetPointRoundTrip(t *testing.T) {
	f := New(7, 5)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			off := f.Offset(x, y)
			if p := f.Point(off); p.X != x || p.Y != y {
				t.Fatalf("Point(Offset(%d,%d)) = %v", x, y, p)
			}
		}
	}
	if got := f.Offset(0, 1); got != 7 {
		t.Fatalf("expected row-major offset 7, got %d", got)
	}
}

func TestFrame_ImageInterface(t *testing.T) {
	f := New(4, 3)
	f.SetRGB(f.Offset(2, 1), 10, 20, 30)

	var img image.Image = f
	if img.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	c := img.At(2, 1).(color.RGBA)
	if c != (color.RGBA{10, 20, 30, 255}) {
		t.Fatalf("unexpected color %v", c)
	}
	if c := img.At(9, 9).(color.RGBA); c.A != 0 {
		t.Fatalf("expected transparent outside bounds, got %v", c)
	}
}

func TestFrame_RGBAAndBack(t *testing.T) {
	f := New(3, 2)
	for i := 0; i < f.PixelCount(); i++ {
		f.SetRGB(i, uint8(i), uint8(i*2), uint8(i*3))
	}
	back := FromImage(f.RGBA())
	if !bytes.Equal(back.Pix, f.Pix) {
		t.Fatalf("pixels differ after RGBA round trip: %v vs %v", back.Pix, f.Pix)
	}
}

func TestFrame_CloneIsDeep(t *testing.T) {
	f := New(2, 2)
	c := f.Clone()
	c.SetRGB(0, 1, 2, 3)
	if r, _, _ := f.RGB(0); r != 0 {
		t.Fatalf("clone shares pixels with original")
	}
}

func TestFromYUYV(t *testing.T) {
	w, h := 4, 2
	buf := make([]byte, w*h*2)
	for i := 0; i < len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = 128, 128, 128, 128
	}
	f, err := FromYUYV(buf, w, h)
	if err != nil {
		t.Fatalf("FromYUYV: %v", err)
	}
	if f.Width != w || f.Height != h {
		t.Fatalf("unexpected size %dx%d", f.Width, f.Height)
	}
	r, g, b := f.RGB(0)
	if r != 128 || g != 128 || b != 128 {
		t.Fatalf("expected mid gray, got %d,%d,%d", r, g, b)
	}

	if _, err := FromYUYV(buf[:3], w, h); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestFromMJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 200, 100, 50, 255
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	f, err := FromMJPEG(buf.Bytes())
	if err != nil {
		t.Fatalf("FromMJPEG: %v", err)
	}
	if f.Width != 16 || f.Height != 8 {
		t.Fatalf("unexpected size %dx%d", f.Width, f.Height)
	}
	_, g, _ := f.RGB(f.Offset(8, 4))
	if g < 90 || g > 110 {
		t.Fatalf("green channel drifted too far: %d", g)
	}
}

func TestAddMotionDHT(t *testing.T) {
	bare := []byte{0xff, 0xd8, 0xff, 0xda, 1, 2, 3, 0xff, 0xd9}
	out := AddMotionDHT(bare)
	if !bytes.Contains(out, dhtMarker) {
		t.Fatalf("expected DHT to be inserted")
	}
	if !bytes.HasSuffix(out, bare[2:]) {
		t.Fatalf("scan data must follow the inserted tables")
	}
	if again := AddMotionDHT(out); len(again) != len(out) {
		t.Fatalf("tables inserted twice")
	}
	if noScan := AddMotionDHT([]byte{1, 2, 3}); len(noScan) != 3 {
		t.Fatalf("buffer without scan must be unchanged")
	}
}

func TestErrorKinds(t *testing.T) {
	hw := errors.Wrap(NewHardwareError("read", errors.New("boom")), "acquire")
	if !IsHardware(hw) {
		t.Fatalf("expected hardware error to be detected through wrapping")
	}
	if IsInitialization(hw) {
		t.Fatalf("hardware error misclassified")
	}
	in := NewInitializationError("/dev/video9", errors.New("no such device"))
	if !IsInitialization(in) {
		t.Fatalf("expected initialization error")
	}
}
