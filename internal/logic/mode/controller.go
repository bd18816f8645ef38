// Package mode owns the camera operating mode and the capture-enabled flag.
// The Controller is the single authority allowed to reconfigure the camera
// hardware; every mode-mutating operation runs under one exclusive lock so
// two hardware reconfigurations can never interleave.
package mode

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cjeanneret/SolGo/internal/debug"
	"github.com/cjeanneret/SolGo/internal/hw/camera"
	"github.com/cjeanneret/SolGo/internal/state"
)

// CameraMode is the controller's operating state. Exactly one is active at a
// time; Preview and Scheduled are mutually exclusive because both require
// exclusive hardware reconfiguration.
type CameraMode int

const (
	// Idle: hardware not actively scheduled, not previewing.
	Idle CameraMode = iota
	// Scheduled: hardware configured for still capture, scheduler may fire.
	Scheduled
	// Preview: hardware configured for the low-resolution live feed.
	Preview
)

func (m CameraMode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Preview:
		return "preview"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrNotPreview is returned by ExitPreview when the controller is not in
// preview mode.
var ErrNotPreview = errors.New("not in preview mode")

// Status is a consistent snapshot of the controller state.
type Status struct {
	Mode            CameraMode
	Enabled         bool
	LastCaptureTime time.Time
	LastCapturePath string
}

// Controller arbitrates camera mode transitions and owns the persisted
// enabled flag.
type Controller struct {
	mu        sync.Mutex // the mode lock
	cam       camera.Camera
	store     *state.Store
	photosDir string
	now       func() time.Time

	mode            CameraMode
	enabled         bool
	lastCaptureTime time.Time
	lastCapturePath string

	onCapture func(path string) // invoked outside the lock after each still
}

// NewController loads the persisted enabled flag, configures the camera for
// still capture and starts it. The controller begins in Scheduled mode; mode
// is volatile and never persisted.
func NewController(cam camera.Camera, store *state.Store, photosDir string) (*Controller, error) {
	enabled, err := store.Load()
	if err != nil {
		debug.Error(fmt.Errorf("loading persisted state: %w", err))
	}

	c := &Controller{
		cam:       cam,
		store:     store,
		photosDir: photosDir,
		now:       time.Now,
		mode:      Idle,
		enabled:   enabled,
	}

	if err := cam.Configure(camera.ModeStill); err != nil {
		return nil, err
	}
	if err := cam.Start(); err != nil {
		return nil, err
	}
	c.mode = Scheduled
	debug.Info("Camera initialized (enabled=%v)", enabled)
	return c, nil
}

// SetCaptureHook registers a callback invoked with the photo path after each
// successful still. Used by the bus layer to publish the latest image.
func (c *Controller) SetCaptureHook(fn func(path string)) {
	c.mu.Lock()
	c.onCapture = fn
	c.mu.Unlock()
}

// EnableCapture sets enabled=true and persists it. Does not change the mode.
func (c *Controller) EnableCapture() error {
	return c.setEnabled(true)
}

// DisableCapture sets enabled=false and persists it.
func (c *Controller) DisableCapture() error {
	return c.setEnabled(false)
}

func (c *Controller) setEnabled(v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == v {
		return nil
	}
	c.enabled = v
	debug.Info("Capture enabled=%v", v)
	if err := c.store.Save(v); err != nil {
		return fmt.Errorf("persist enabled flag: %w", err)
	}
	return nil
}

// EnterPreview switches the hardware to the low-resolution live feed.
// Valid from Idle or Scheduled; a no-op when already previewing. The enabled
// flag is left untouched so scheduled capture resumes after ExitPreview.
func (c *Controller) EnterPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Preview {
		return nil
	}
	return c.enterPreviewLocked()
}

func (c *Controller) enterPreviewLocked() error {
	prev := c.mode
	if err := c.cam.Stop(); err != nil {
		return err
	}
	if err := c.cam.Configure(camera.ModePreview); err != nil {
		// Best effort: put the hardware back into still mode.
		c.restoreStillLocked()
		return err
	}
	if err := c.cam.Start(); err != nil {
		c.restoreStillLocked()
		return err
	}
	c.mode = Preview
	debug.Mode(prev.String(), Preview.String())
	return nil
}

// ExitPreview switches the hardware back to full-resolution still capture
// and reloads the persisted enabled flag. Valid only from Preview.
func (c *Controller) ExitPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != Preview {
		return ErrNotPreview
	}
	return c.exitPreviewLocked()
}

func (c *Controller) exitPreviewLocked() error {
	if err := c.cam.Stop(); err != nil {
		return err
	}
	if err := c.cam.Configure(camera.ModeStill); err != nil {
		return err
	}
	if err := c.cam.Start(); err != nil {
		return err
	}
	enabled, err := c.store.Load()
	if err != nil {
		debug.Error(fmt.Errorf("reloading persisted state: %w", err))
	} else {
		c.enabled = enabled
	}
	c.mode = Scheduled
	debug.Mode(Preview.String(), Scheduled.String())
	return nil
}

func (c *Controller) restoreStillLocked() {
	if err := c.cam.Configure(camera.ModeStill); err != nil {
		debug.Error(err)
		c.mode = Idle
		return
	}
	if err := c.cam.Start(); err != nil {
		debug.Error(err)
		c.mode = Idle
		return
	}
	c.mode = Scheduled
}

// CaptureOnce takes a single timestamped photo. Valid from any state: if the
// controller is previewing, the preview is fully exited, the still is taken,
// and the preview is fully re-entered, so an on-demand photo never loses the
// caller's preview session.
func (c *Controller) CaptureOnce() (string, error) {
	c.mu.Lock()

	wasPreview := c.mode == Preview
	if wasPreview {
		if err := c.exitPreviewLocked(); err != nil {
			c.mu.Unlock()
			return "", err
		}
	}

	path := filepath.Join(c.photosDir, camera.Filename(c.now()))
	captureErr := c.cam.CaptureStill(path)
	if captureErr == nil {
		c.lastCaptureTime = c.now()
		c.lastCapturePath = path
		debug.Shot(path)
	}

	if wasPreview {
		if err := c.enterPreviewLocked(); err != nil {
			debug.Error(fmt.Errorf("re-entering preview after capture: %w", err))
		}
	}

	hook := c.onCapture
	c.mu.Unlock()

	if captureErr != nil {
		return "", captureErr
	}
	if hook != nil {
		hook(path)
	}
	return path, nil
}

// SetFocus sets a manual focus position (0-100) on the camera.
func (c *Controller) SetFocus(value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.SetFocus(value)
}

// AutoFocus re-enables automatic focus on the camera.
func (c *Controller) AutoFocus() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.AutoFocus()
}

// PreviewFrame returns the latest live frame from the camera. Read-only:
// does not take the mode lock, so a long-running hardware call can never
// starve the stream handler.
func (c *Controller) PreviewFrame() ([]byte, error) {
	return c.cam.PreviewFrame()
}

// Snapshot returns a consistent copy of the controller state.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Mode:            c.mode,
		Enabled:         c.enabled,
		LastCaptureTime: c.lastCaptureTime,
		LastCapturePath: c.lastCapturePath,
	}
}

// Stop performs the best-effort hardware stop used at process exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.cam.Stop(); err != nil {
		debug.Error(fmt.Errorf("stopping camera: %w", err))
	}
	c.mode = Idle
}
