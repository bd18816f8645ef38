package camera

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/SolGo/internal/config"
	"github.com/cjeanneret/SolGo/internal/hw/gpio"
)

// Mode selects the hardware configuration of the camera.
type Mode int

const (
	// ModeStill configures the sensor for full-resolution still capture.
	ModeStill Mode = iota
	// ModePreview configures the sensor for a low-resolution live feed.
	ModePreview
)

func (m Mode) String() string {
	switch m {
	case ModeStill:
		return "still"
	case ModePreview:
		return "preview"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrNoPreview is returned by backends that cannot produce live frames.
var ErrNoPreview = errors.New("camera backend has no preview support")

// HardwareError wraps a camera driver failure. The mode controller surfaces
// it without retrying; the scheduler loop owns retry/backoff.
type HardwareError struct {
	Op  string
	Err error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("camera %s: %v", e.Op, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

func hwErr(op string, err error) error {
	return &HardwareError{Op: op, Err: err}
}

// Camera is the high-level interface used by the rest of the application.
// It represents an abstract camera, regardless of how it's controlled
// (camera stack subprocess, GPIO remote trigger, mock).
//
// Configure, Start and Stop must only be called by the mode controller,
// which serializes hardware reconfiguration behind its mode lock.
type Camera interface {
	// Configure prepares the hardware for the given mode. The camera must
	// be stopped when Configure is called.
	Configure(mode Mode) error
	// Start activates the sensor in the configured mode.
	Start() error
	// Stop deactivates the sensor. Safe to call when already stopped.
	Stop() error
	// CaptureStill captures a single photo to the given path.
	CaptureStill(path string) error
	// PreviewFrame returns the most recent live JPEG frame, or ErrNoPreview.
	PreviewFrame() ([]byte, error)
	// SetFocus sets a manual focus position, 0 (infinity) to 100 (closest).
	SetFocus(value float64) error
	// AutoFocus re-enables automatic focus.
	AutoFocus() error
}

// New selects a camera implementation based on configuration.
func New(cfg *config.Config, g gpio.Driver) (Camera, error) {
	switch cfg.Camera.Type {
	case "libcamera":
		return NewLibcamera(cfg.Camera.Resolution, cfg.Camera.Preview), nil
	case "shutter_gpio":
		return NewShutterGPIO(
			g,
			cfg.Camera.FocusPin,
			cfg.Camera.ShutterPin,
			cfg.FocusDelay(),
			cfg.ShutterDelay(),
		), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// clampFocus keeps a focus request within the 0-100 contract.
func clampFocus(v float64) (float64, error) {
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("focus value must be between 0 and 100, got %g", v)
	}
	return v, nil
}

// Filename builds the timestamped photo filename, photo_YYYYMMDD_HHMMSS.jpg.
func Filename(t time.Time) string {
	return "photo_" + t.Format("20060102_150405") + ".jpg"
}
