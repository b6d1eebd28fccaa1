// Package camera provides the frame sources the capture loop can run
// against: a V4L2 webcam and the Raspberry Pi board camera.
package camera

import (
	"context"
	"image"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/blackjack/webcam"
	"github.com/disintegration/gift"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motioncam/frame"
)

const (
	fmtYUYV  = 0x56595559
	fmtMJPEG = 0x47504a4d
)

var supportedFormats = map[webcam.PixelFormat]bool{
	fmtYUYV:  true,
	fmtMJPEG: true,
}

type byArea []webcam.FrameSize

func (slice byArea) Len() int {
	return len(slice)
}

func (slice byArea) Less(i, j int) bool {
	ls := slice[i].MaxWidth * slice[i].MaxHeight
	rs := slice[j].MaxWidth * slice[j].MaxHeight
	return ls < rs
}

func (slice byArea) Swap(i, j int) {
	slice[i], slice[j] = slice[j], slice[i]
}

// ErrNotStreaming is wrapped in the hardware error returned by Acquire
// before Init or after Release.
var ErrNotStreaming = errors.New("camera is not streaming")

// Webcam reads frames from a V4L2 device.
type Webcam struct {
	Device string
	// Format is the V4L2 format description to request, empty picks the
	// first supported one.
	Format  string
	Width   int
	Height  int
	Timeout time.Duration
	Log     logrus.FieldLogger

	mu     sync.Mutex
	cam    *webcam.Webcam
	pixfmt webcam.PixelFormat
	w, h   int
	resize *gift.GIFT
}

// selectFormat picks a pixel format this package can decode. Codes are
// tried in order so the choice is stable across runs.
func selectFormat(desc map[webcam.PixelFormat]string, want string) (webcam.PixelFormat, error) {
	codes := make([]webcam.PixelFormat, 0, len(desc))
	for f := range desc {
		codes = append(codes, f)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	for _, f := range codes {
		if want == "" {
			if supportedFormats[f] {
				return f, nil
			}
			continue
		}
		if desc[f] == want {
			if !supportedFormats[f] {
				return 0, errors.Errorf("format %q is not supported", want)
			}
			return f, nil
		}
	}
	if want != "" {
		return 0, errors.Errorf("no format %q", want)
	}
	return 0, errors.New("no supported format found")
}

// selectSize picks the smallest frame size that covers w x h, or the
// largest one available. Stepwise ranges that contain w x h are requested
// exactly.
func selectSize(sizes []webcam.FrameSize, w, h int) (uint32, uint32, error) {
	if len(sizes) == 0 {
		return 0, 0, errors.New("no frame sizes reported")
	}
	frames := make(byArea, len(sizes))
	copy(frames, sizes)
	sort.Sort(frames)

	uw, uh := uint32(w), uint32(h)
	for _, f := range frames {
		if f.StepWidth != 0 && f.StepHeight != 0 &&
			f.MinWidth <= uw && uw <= f.MaxWidth &&
			f.MinHeight <= uh && uh <= f.MaxHeight {
			return uw, uh, nil
		}
	}
	for _, f := range frames {
		if f.MaxWidth >= uw && f.MaxHeight >= uh {
			return f.MaxWidth, f.MaxHeight, nil
		}
	}
	largest := frames[len(frames)-1]
	return largest.MaxWidth, largest.MaxHeight, nil
}

func (c *Webcam) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// Init opens the device, negotiates a format and size, and starts
// streaming.
func (c *Webcam) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cam != nil {
		return nil
	}
	log := c.logger().WithField("device", c.Device)

	cam, err := webcam.Open(c.Device)
	if err != nil {
		return frame.NewInitializationError(c.Device, err)
	}

	formatDesc := cam.GetSupportedFormats()
	format, err := selectFormat(formatDesc, c.Format)
	if err != nil {
		cam.Close()
		return frame.NewInitializationError(c.Device, err)
	}
	sw, sh, err := selectSize(cam.GetSupportedFrameSizes(format), c.Width, c.Height)
	if err != nil {
		cam.Close()
		return frame.NewInitializationError(c.Device, err)
	}

	log.WithFields(logrus.Fields{"format": formatDesc[format], "width": sw, "height": sh}).Debug("requesting image format")
	f, w, h, err := cam.SetImageFormat(format, sw, sh)
	if err != nil {
		cam.Close()
		return frame.NewInitializationError(c.Device, errors.Wrap(err, "set image format"))
	}
	if !supportedFormats[f] {
		cam.Close()
		return frame.NewInitializationError(c.Device, errors.Errorf("device switched to unsupported format %#x", uint32(f)))
	}
	log.WithFields(logrus.Fields{"format": formatDesc[f], "width": w, "height": h}).Info("resulting image format")

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return frame.NewInitializationError(c.Device, errors.Wrap(err, "start streaming"))
	}

	c.cam = cam
	c.pixfmt = f
	c.w, c.h = int(w), int(h)
	c.resize = nil
	return nil
}

// waitSeconds converts the acquisition timeout into the whole seconds V4L2
// waits in.
func waitSeconds(d time.Duration) uint32 {
	s := math.Ceil(d.Seconds())
	if s < 1 {
		return 1
	}
	return uint32(s)
}

// Acquire waits for the next frame and converts it to RGB at the configured
// resolution.
func (c *Webcam) Acquire(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cam == nil {
		return nil, frame.NewHardwareError("acquire", ErrNotStreaming)
	}

	err := c.cam.WaitForFrame(waitSeconds(c.Timeout))
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, frame.NewHardwareError("frame timeout", err)
	default:
		return nil, frame.NewHardwareError("wait for frame", err)
	}

	buf, err := c.cam.ReadFrame()
	if err != nil {
		return nil, frame.NewHardwareError("read frame", err)
	}
	if len(buf) == 0 {
		return nil, frame.NewHardwareError("read frame", errors.New("empty frame"))
	}
	// the driver reuses its buffer on the next read
	fc := make([]byte, len(buf))
	copy(fc, buf)

	f, err := c.decode(fc)
	if err != nil {
		return nil, frame.NewHardwareError("decode frame", err)
	}
	f.Timestamp = time.Now()
	return f, nil
}

func (c *Webcam) decode(buf []byte) (*frame.Frame, error) {
	var (
		f   *frame.Frame
		err error
	)
	switch c.pixfmt {
	case fmtYUYV:
		f, err = frame.FromYUYV(buf, c.w, c.h)
	case fmtMJPEG:
		f, err = frame.FromMJPEG(buf)
	default:
		err = errors.Errorf("unknown format %#x", uint32(c.pixfmt))
	}
	if err != nil {
		return nil, err
	}
	if f.Width == c.Width && f.Height == c.Height {
		return f, nil
	}
	if c.resize == nil {
		// MJPEG devices may deliver a size other than the negotiated one
		c.resize = gift.New(gift.Resize(c.Width, c.Height, gift.LinearResampling))
	}
	return resizeFrame(c.resize, f), nil
}

func resizeFrame(g *gift.GIFT, f *frame.Frame) *frame.Frame {
	dst := image.NewRGBA(g.Bounds(f.Bounds()))
	g.Draw(dst, f)
	return frame.FromImage(dst)
}

// Release stops streaming and closes the device.
func (c *Webcam) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cam == nil {
		return nil
	}
	err := c.cam.Close()
	c.cam = nil
	return errors.Wrap(err, "close webcam")
}

// FormatInfo describes one pixel format offered by a device.
type FormatInfo struct {
	Code      uint32
	Name      string
	Supported bool
	Sizes     []string
}

// ListFormats enumerates the pixel formats and frame sizes of device,
// smallest sizes first.
func ListFormats(device string) ([]FormatInfo, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, frame.NewInitializationError(device, err)
	}
	defer cam.Close()

	desc := cam.GetSupportedFormats()
	infos := make([]FormatInfo, 0, len(desc))
	for f, name := range desc {
		sizes := byArea(cam.GetSupportedFrameSizes(f))
		sort.Sort(sizes)
		info := FormatInfo{Code: uint32(f), Name: name, Supported: supportedFormats[f]}
		for _, s := range sizes {
			info.Sizes = append(info.Sizes, s.GetString())
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	return infos, nil
}
