package camera

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/cjeanneret/SolGo/internal/config"
	"github.com/cjeanneret/SolGo/internal/debug"
)

const (
	stillBinary   = "rpicam-still"
	previewBinary = "rpicam-vid"
)

// Libcamera drives the Raspberry Pi camera stack by shelling out to the
// rpicam-apps binaries: rpicam-still for full-resolution stills, and a
// long-running rpicam-vid MJPEG subprocess for the live preview feed.
type Libcamera struct {
	still   config.ResolutionConfig
	preview config.ResolutionConfig

	mu       sync.Mutex
	mode     Mode
	running  bool
	focusPos float64 // -1 = autofocus
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	done     chan struct{}

	frameMu sync.RWMutex
	frame   []byte // latest preview JPEG
}

// NewLibcamera creates a libcamera-backed camera with the given still and
// preview resolutions.
func NewLibcamera(still, preview config.ResolutionConfig) *Libcamera {
	return &Libcamera{
		still:    still,
		preview:  preview,
		focusPos: -1,
	}
}

// Configure prepares the backend for the given mode. Must be called with the
// camera stopped.
func (l *Libcamera) Configure(mode Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return hwErr("configure", fmt.Errorf("camera is running"))
	}
	l.mode = mode
	debug.Verbose("Libcamera: configured for %s mode", mode)
	return nil
}

// Start activates the camera. In preview mode it launches the MJPEG
// subprocess; in still mode there is no persistent process, stills are
// one-shot invocations of rpicam-still.
func (l *Libcamera) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	if l.mode == ModePreview {
		if err := l.startPreviewLocked(); err != nil {
			return hwErr("start", err)
		}
	}
	l.running = true
	return nil
}

// Stop deactivates the camera and reaps the preview subprocess if any.
func (l *Libcamera) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return nil
	}
	l.running = false
	if l.cmd != nil {
		_ = l.cmd.Process.Kill()
		<-l.done
		l.cmd = nil
		l.stdout = nil
		l.done = nil
	}
	l.frameMu.Lock()
	l.frame = nil
	l.frameMu.Unlock()
	debug.Verbose("Libcamera: stopped")
	return nil
}

func (l *Libcamera) startPreviewLocked() error {
	args := []string{
		"-t", "0", "-n",
		"--codec", "mjpeg",
		"--width", strconv.Itoa(l.preview.WidthPx),
		"--height", strconv.Itoa(l.preview.HeightPx),
		"--framerate", "10",
		"-o", "-",
	}
	cmd := exec.Command(previewBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	l.cmd = cmd
	l.stdout = stdout
	l.done = make(chan struct{})
	go l.readFrames(stdout, cmd, l.done)
	debug.Info("Libcamera: preview stream started (%dx%d)", l.preview.WidthPx, l.preview.HeightPx)
	return nil
}

// readFrames splits the raw MJPEG byte stream on JPEG SOI/EOI markers and
// keeps only the most recent complete frame.
func (l *Libcamera) readFrames(r io.Reader, cmd *exec.Cmd, done chan struct{}) {
	defer close(done)
	defer cmd.Wait()

	br := bufio.NewReaderSize(r, 1<<16)
	var buf bytes.Buffer
	inFrame := false
	prev := byte(0)
	for {
		b, err := br.ReadByte()
		if err != nil {
			debug.Trace("Libcamera: preview stream ended: %v", err)
			return
		}
		if !inFrame {
			if prev == 0xFF && b == 0xD8 { // SOI
				buf.Reset()
				buf.WriteByte(0xFF)
				buf.WriteByte(0xD8)
				inFrame = true
			}
		} else {
			buf.WriteByte(b)
			if prev == 0xFF && b == 0xD9 { // EOI
				frame := make([]byte, buf.Len())
				copy(frame, buf.Bytes())
				l.frameMu.Lock()
				l.frame = frame
				l.frameMu.Unlock()
				inFrame = false
			}
		}
		prev = b
	}
}

// CaptureStill shoots a full-resolution photo to the given path.
func (l *Libcamera) CaptureStill(path string) error {
	l.mu.Lock()
	if l.mode != ModeStill {
		l.mu.Unlock()
		return hwErr("capture", fmt.Errorf("camera configured for %s, want still", l.mode))
	}
	args := []string{
		"-n",
		"--width", strconv.Itoa(l.still.WidthPx),
		"--height", strconv.Itoa(l.still.HeightPx),
		"-o", path,
	}
	if l.focusPos >= 0 {
		// rpicam lens position is in dioptres; 0-100 maps onto 0-10.
		args = append(args, "--autofocus-mode", "manual",
			"--lens-position", strconv.FormatFloat(l.focusPos/10, 'f', 2, 64))
	} else {
		args = append(args, "--autofocus-on-capture")
	}
	l.mu.Unlock()

	out, err := exec.Command(stillBinary, args...).CombinedOutput()
	if err != nil {
		return hwErr("capture", fmt.Errorf("%s: %w (%s)", stillBinary, err, bytes.TrimSpace(out)))
	}
	return nil
}

// PreviewFrame returns the latest live JPEG frame.
func (l *Libcamera) PreviewFrame() ([]byte, error) {
	l.frameMu.RLock()
	frame := l.frame
	l.frameMu.RUnlock()
	if frame == nil {
		return nil, hwErr("preview", fmt.Errorf("no frame available yet"))
	}
	return frame, nil
}

// SetFocus fixes the lens at a manual position, 0 (infinity) to 100 (closest).
func (l *Libcamera) SetFocus(value float64) error {
	v, err := clampFocus(value)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.focusPos = v
	l.mu.Unlock()
	debug.Info("Libcamera: manual focus set to %.1f", v)
	return nil
}

// AutoFocus re-enables autofocus-on-capture.
func (l *Libcamera) AutoFocus() error {
	l.mu.Lock()
	l.focusPos = -1
	l.mu.Unlock()
	debug.Info("Libcamera: autofocus enabled")
	return nil
}
