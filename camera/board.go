package camera

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motioncam/frame"
)

var (
	jpegSOI = []byte{0xff, 0xd8}
	jpegEOI = []byte{0xff, 0xd9}
)

const maxJPEGSize = 16 << 20

// ErrProcessExited is wrapped in the hardware error returned once the
// camera process has gone away.
var ErrProcessExited = errors.New("camera process exited")

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images from a
// concatenated MJPEG stream. Bytes outside SOI..EOI are dropped.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// keep a trailing 0xff, it may begin the next SOI
		if n := len(data) - 1; n > 0 {
			return n, nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end >= 0 {
		end += start + len(jpegSOI) + len(jpegEOI)
		return end, data[start:end], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return start, nil, nil
}

// BoardArgs builds the arguments for an rpicam-vid style process writing
// MJPEG to stdout.
func BoardArgs(width, height, framerate int, extra []string) []string {
	args := []string{
		"--codec", "mjpeg",
		"--width", strconv.Itoa(width),
		"--height", strconv.Itoa(height),
		"--framerate", strconv.Itoa(framerate),
		"--timeout", "0",
		"--nopreview",
		"-o", "-",
	}
	return append(args, extra...)
}

// Board reads frames from a camera process that writes an MJPEG stream to
// its standard output, such as rpicam-vid on a Raspberry Pi.
type Board struct {
	Command string
	Args    []string
	Width   int
	Height  int
	VFlip   bool
	Timeout time.Duration
	Log     logrus.FieldLogger

	mu      sync.Mutex
	started bool
	dead    error
	cancel  context.CancelFunc
	latest  chan []byte
	errc    chan error
	done    chan struct{}
	stderr  io.Closer
}

func (b *Board) logger() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}

// Init starts the camera process.
func (b *Board) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	log := b.logger().WithField("command", b.Command)

	pctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(pctx, b.Command, b.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return frame.NewInitializationError(b.Command, err)
	}
	stderr := log.WriterLevel(logrus.DebugLevel)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		cancel()
		stderr.Close()
		return frame.NewInitializationError(b.Command, err)
	}
	log.WithField("args", b.Args).Info("started camera process")

	b.cancel = cancel
	b.stderr = stderr
	b.latest = make(chan []byte, 1)
	b.errc = make(chan error, 1)
	b.done = make(chan struct{})
	b.started = true

	go b.pump(cmd, stdout)
	return nil
}

// pump keeps the most recent image from the process output.
func (b *Board) pump(cmd *exec.Cmd, stdout io.Reader) {
	defer close(b.done)

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 512<<10), maxJPEGSize)
	sc.Split(splitJPEG)
	for sc.Scan() {
		img := make([]byte, len(sc.Bytes()))
		copy(img, sc.Bytes())
		select {
		case <-b.latest:
		default:
		}
		b.latest <- img
	}

	err := sc.Err()
	if werr := cmd.Wait(); err == nil {
		err = werr
	}
	if err == nil {
		err = ErrProcessExited
	} else {
		err = errors.Wrap(err, ErrProcessExited.Error())
	}
	b.errc <- err
}

// Acquire returns the most recent image from the process.
func (b *Board) Acquire(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil, frame.NewHardwareError("acquire", ErrNotStreaming)
	}
	if b.dead != nil {
		return nil, frame.NewHardwareError("acquire", b.dead)
	}

	select {
	case buf := <-b.latest:
		return b.decode(buf)
	default:
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case buf := <-b.latest:
		return b.decode(buf)
	case err := <-b.errc:
		b.dead = err
		// the last image may have arrived just before the exit
		select {
		case buf := <-b.latest:
			return b.decode(buf)
		default:
		}
		return nil, frame.NewHardwareError("acquire", err)
	case <-t.C:
		return nil, frame.NewHardwareError("frame timeout", errors.Errorf("no image within %v", timeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Board) decode(buf []byte) (*frame.Frame, error) {
	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, frame.NewHardwareError("decode frame", err)
	}
	if b.VFlip {
		img = imaging.FlipV(img)
	}
	if img.Bounds().Dx() != b.Width || img.Bounds().Dy() != b.Height {
		img = imaging.Resize(img, b.Width, b.Height, imaging.Linear)
	}
	f := frame.FromImage(img)
	f.Timestamp = time.Now()
	return f, nil
}

// Release stops the camera process and waits for it to exit.
func (b *Board) Release() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = false
	cancel, done, stderr := b.cancel, b.done, b.stderr
	b.mu.Unlock()

	cancel()
	<-done
	return stderr.Close()
}
