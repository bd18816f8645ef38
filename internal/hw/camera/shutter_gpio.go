package camera

import (
	"fmt"
	"os"
	"time"

	"github.com/cjeanneret/SolGo/internal/debug"
	"github.com/cjeanneret/SolGo/internal/hw/gpio"
)

// ShutterGPIO is a Camera implementation for a DSLR controlled via the
// 3-pin remote connector:
// - GND: connected to Raspberry Pi ground
// - FOCUS: autofocus (activate by setting to LOW)
// - SHUTTER: trigger (activate by setting to LOW)
//
// Trigger sequence:
// 1. FOCUS to LOW (activates autofocus)
// 2. Wait for autofocus to complete
// 3. SHUTTER to LOW (triggers the shot)
// 4. Hold for a moment
// 5. Set SHUTTER and FOCUS back to HIGH
//
// The image lands on the camera's own card; CaptureStill writes a small
// marker file at the requested path so the last-capture path always names
// an existing file. There is no live feed: PreviewFrame returns
// ErrNoPreview.
type ShutterGPIO struct {
	gpio         gpio.Driver
	focusPin     int
	shutterPin   int
	focusDelay   time.Duration // time for autofocus
	shutterDelay time.Duration // shutter hold time
}

// NewShutterGPIO creates a GPIO-controlled remote shutter trigger.
func NewShutterGPIO(g gpio.Driver, focusPin, shutterPin int, focusDelay, shutterDelay time.Duration) *ShutterGPIO {
	// Configure pins as outputs; lines are HIGH (inactive) at rest.
	_ = g.SetupPin(focusPin, gpio.Output)
	_ = g.SetupPin(shutterPin, gpio.Output)
	_ = g.WritePin(focusPin, gpio.High)
	_ = g.WritePin(shutterPin, gpio.High)

	return &ShutterGPIO{
		gpio:         g,
		focusPin:     focusPin,
		shutterPin:   shutterPin,
		focusDelay:   focusDelay,
		shutterDelay: shutterDelay,
	}
}

// Configure is a no-op: a remote trigger has a single hardware mode.
// Requesting preview mode fails so the controller never enters Preview.
func (s *ShutterGPIO) Configure(mode Mode) error {
	if mode == ModePreview {
		return hwErr("configure", ErrNoPreview)
	}
	return nil
}

// Start is a no-op; the external camera powers itself.
func (s *ShutterGPIO) Start() error { return nil }

// Stop releases both lines to their inactive state.
func (s *ShutterGPIO) Stop() error {
	if err := s.gpio.WritePin(s.shutterPin, gpio.High); err != nil {
		return hwErr("stop", err)
	}
	if err := s.gpio.WritePin(s.focusPin, gpio.High); err != nil {
		return hwErr("stop", err)
	}
	return nil
}

// CaptureStill triggers a shot.
// Sequence: FOCUS -> wait for AF -> SHUTTER -> hold -> release
func (s *ShutterGPIO) CaptureStill(path string) error {
	debug.Verbose("ShutterGPIO: triggering shot (focus=%d, shutter=%d)", s.focusPin, s.shutterPin)

	if err := s.gpio.WritePin(s.focusPin, gpio.Low); err != nil {
		return hwErr("capture", err)
	}
	time.Sleep(s.focusDelay)

	if err := s.gpio.WritePin(s.shutterPin, gpio.Low); err != nil {
		// Release FOCUS on error
		_ = s.gpio.WritePin(s.focusPin, gpio.High)
		return hwErr("capture", err)
	}
	time.Sleep(s.shutterDelay)

	if err := s.gpio.WritePin(s.shutterPin, gpio.High); err != nil {
		return hwErr("capture", err)
	}
	if err := s.gpio.WritePin(s.focusPin, gpio.High); err != nil {
		return hwErr("capture", err)
	}

	// Marker file: the JPEG itself is on the camera's card. Written at the
	// requested path so last-image lookups and the capture hook find a file.
	marker := fmt.Sprintf("triggered at %s\n", time.Now().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(marker), 0o644); err != nil {
		return hwErr("capture", err)
	}

	debug.Verbose("ShutterGPIO: shot triggered successfully")
	return nil
}

// PreviewFrame is unsupported for an externally-triggered camera.
func (s *ShutterGPIO) PreviewFrame() ([]byte, error) {
	return nil, ErrNoPreview
}

// SetFocus is unsupported; the DSLR owns its focus motor.
func (s *ShutterGPIO) SetFocus(value float64) error {
	if _, err := clampFocus(value); err != nil {
		return err
	}
	return hwErr("focus", fmt.Errorf("manual focus not supported by shutter_gpio"))
}

// AutoFocus half-presses the FOCUS line without firing the shutter.
func (s *ShutterGPIO) AutoFocus() error {
	if err := s.gpio.WritePin(s.focusPin, gpio.Low); err != nil {
		return hwErr("focus", err)
	}
	time.Sleep(s.focusDelay)
	if err := s.gpio.WritePin(s.focusPin, gpio.High); err != nil {
		return hwErr("focus", err)
	}
	return nil
}
