// Package frame holds the RGB frame type shared by camera sources and the
// motion pipeline, and the capability contract every camera source meets.
package frame

import (
	"context"
	"image"
	"image/color"
	"time"
)

// Channels is the number of bytes stored per pixel.
const Channels = 3

// Frame is a fixed resolution RGB pixel buffer. Pixels are stored row-major,
// three bytes per pixel. A Frame must not be modified once it has been handed
// to another goroutine.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Pix       []byte
}

// Source produces frames from a camera device.
type Source interface {
	// Init prepares the device. It must succeed before the first Acquire.
	Init(ctx context.Context) error
	// Acquire returns the next frame, or a *HardwareError.
	Acquire(ctx context.Context) (*Frame, error)
	// Release frees the device. Calling it more than once is harmless.
	Release() error
}

// New allocates a black frame of the given size.
func New(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*Channels),
	}
}

// PixelCount is the number of pixels in the frame.
func (f *Frame) PixelCount() int {
	return f.Width * f.Height
}

// Offset flattens (x, y) into a pixel offset.
func (f *Frame) Offset(x, y int) int {
	return y*f.Width + x
}

// Point is the inverse of Offset.
func (f *Frame) Point(offset int) image.Point {
	return image.Pt(offset%f.Width, offset/f.Width)
}

// Green returns the green channel of the pixel at offset.
func (f *Frame) Green(offset int) uint8 {
	return f.Pix[offset*Channels+1]
}

// RGB returns the three channels of the pixel at offset.
func (f *Frame) RGB(offset int) (r, g, b uint8) {
	i := offset * Channels
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// SetRGB sets the pixel at offset.
func (f *Frame) SetRGB(offset int, r, g, b uint8) {
	i := offset * Channels
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// SameShape reports whether both frames have identical dimensions.
func (f *Frame) SameShape(o *Frame) bool {
	return f.Width == o.Width && f.Height == o.Height
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Pix = make([]byte, len(f.Pix))
	copy(c.Pix, f.Pix)
	return &c
}

func (f *Frame) ColorModel() color.Model {
	return color.RGBAModel
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

func (f *Frame) At(x, y int) color.Color {
	if !image.Pt(x, y).In(f.Bounds()) {
		return color.RGBA{}
	}
	r, g, b := f.RGB(f.Offset(x, y))
	return color.RGBA{r, g, b, 0xff}
}

// RGBA copies the frame into an opaque *image.RGBA.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	n := f.PixelCount()
	for i := 0; i < n; i++ {
		img.Pix[i*4+0] = f.Pix[i*3+0]
		img.Pix[i*4+1] = f.Pix[i*3+1]
		img.Pix[i*4+2] = f.Pix[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// FromImage converts any image into a Frame. Alpha is discarded.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < f.Height; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < f.Width; x++ {
				f.SetRGB(f.Offset(x, y), row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.YCbCr:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				yi := src.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := src.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				f.SetRGB(f.Offset(x, y), r, g, bl)
			}
		}
	default:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				f.SetRGB(f.Offset(x, y), uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			}
		}
	}
	return f
}
