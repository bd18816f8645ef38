package camera

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/SolGo/internal/config"
	"github.com/cjeanneret/SolGo/internal/hw/gpio"
)

// recordingDriver logs every pin write so the trigger sequence can be checked.
type recordingDriver struct {
	mu     sync.Mutex
	writes []string
	fail   bool
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error { return nil }

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	if d.fail {
		return errors.New("gpio write failed")
	}
	d.mu.Lock()
	d.writes = append(d.writes, fmt.Sprintf("%d=%v", pin, level))
	d.mu.Unlock()
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) { return gpio.Low, nil }
func (d *recordingDriver) Close() error                        { return nil }

// ---------- Filename ----------

func TestFilename(t *testing.T) {
	ts := time.Date(2025, 6, 15, 14, 30, 5, 0, time.UTC)
	got := Filename(ts)
	want := "photo_20250615_143005.jpg"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
}

// ---------- clampFocus ----------

func TestClampFocus(t *testing.T) {
	cases := []struct {
		name    string
		in      float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"max", 100, false},
		{"mid", 42.5, false},
		{"negative", -1, true},
		{"too_large", 100.5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := clampFocus(tc.in)
			if (err != nil) != tc.wantErr {
				t.Errorf("clampFocus(%g) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
		})
	}
}

// ---------- factory ----------

func TestNew_UnsupportedType(t *testing.T) {
	cfg := &config.Config{}
	cfg.Camera.Type = "polaroid"
	if _, err := New(cfg, &gpio.MockDriver{}); err == nil {
		t.Error("expected error for unsupported camera type")
	}
}

func TestNew_Mock(t *testing.T) {
	cfg := &config.Config{}
	cfg.Camera.Type = "mock"
	cam, err := New(cfg, &gpio.MockDriver{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := cam.(*Mock); !ok {
		t.Errorf("expected *Mock, got %T", cam)
	}
}

// ---------- Mock backend ----------

func TestMock_CaptureWritesFile(t *testing.T) {
	cam := NewMock()
	if err := cam.Configure(ModeStill); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := cam.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := cam.CaptureStill(path); err != nil {
		t.Fatalf("CaptureStill: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read captured file: %v", err)
	}
	if len(data) == 0 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("captured file is not a JPEG")
	}
	if got := cam.Captures(); len(got) != 1 || got[0] != path {
		t.Errorf("Captures = %v, want [%s]", got, path)
	}
}

func TestMock_CaptureInPreviewModeFails(t *testing.T) {
	cam := NewMock()
	if err := cam.Configure(ModePreview); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	err := cam.CaptureStill(filepath.Join(t.TempDir(), "x.jpg"))
	if err == nil {
		t.Fatal("expected error capturing in preview mode")
	}
	var hw *HardwareError
	if !errors.As(err, &hw) {
		t.Errorf("expected HardwareError, got %T", err)
	}
}

func TestMock_ConfigureWhileRunningFails(t *testing.T) {
	cam := NewMock()
	if err := cam.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := cam.Configure(ModePreview); err == nil {
		t.Error("expected error configuring a running camera")
	}
}

func TestMock_PreviewFrame(t *testing.T) {
	cam := NewMock()
	if _, err := cam.PreviewFrame(); err == nil {
		t.Error("expected error before preview is running")
	}
	if err := cam.Configure(ModePreview); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := cam.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	frame, err := cam.PreviewFrame()
	if err != nil {
		t.Fatalf("PreviewFrame: %v", err)
	}
	if len(frame) == 0 {
		t.Error("empty preview frame")
	}
}

func TestMock_FailNext(t *testing.T) {
	cam := NewMock()
	cam.FailNext = errors.New("boom")
	err := cam.Start()
	if err == nil {
		t.Fatal("expected injected failure")
	}
	var hw *HardwareError
	if !errors.As(err, &hw) {
		t.Errorf("expected HardwareError, got %T", err)
	}
	// Failure is one-shot
	if err := cam.Start(); err != nil {
		t.Errorf("second Start should succeed, got: %v", err)
	}
}

// ---------- ShutterGPIO backend ----------

func TestShutterGPIO_TriggerSequence(t *testing.T) {
	drv := &recordingDriver{}
	cam := NewShutterGPIO(drv, 17, 27, time.Microsecond, time.Microsecond)

	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := cam.CaptureStill(path); err != nil {
		t.Fatalf("CaptureStill: %v", err)
	}

	// Initial rest state (2 writes) + focus LOW, shutter LOW, shutter HIGH, focus HIGH
	want := []string{
		"17=true", "27=true",
		"17=false", "27=false", "27=true", "17=true",
	}
	drv.mu.Lock()
	defer drv.mu.Unlock()
	if len(drv.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", drv.writes, want)
	}
	for i := range want {
		if drv.writes[i] != want[i] {
			t.Errorf("write[%d] = %s, want %s", i, drv.writes[i], want[i])
		}
	}

	// The marker must land at the requested path itself so the last-capture
	// path recorded by the controller always names an existing file.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected marker file at capture path: %v", err)
	}
	if len(data) == 0 {
		t.Error("marker file is empty")
	}
}

func TestShutterGPIO_NoPreview(t *testing.T) {
	cam := NewShutterGPIO(&recordingDriver{}, 17, 27, 0, 0)
	if err := cam.Configure(ModePreview); err == nil {
		t.Error("expected error configuring preview on shutter_gpio")
	}
	if _, err := cam.PreviewFrame(); !errors.Is(err, ErrNoPreview) {
		t.Errorf("expected ErrNoPreview, got %v", err)
	}
}

func TestShutterGPIO_WriteFailureReleasesFocus(t *testing.T) {
	drv := &recordingDriver{}
	cam := NewShutterGPIO(drv, 17, 27, 0, 0)
	drv.fail = true
	err := cam.CaptureStill(filepath.Join(t.TempDir(), "x.jpg"))
	if err == nil {
		t.Fatal("expected error from failing driver")
	}
	var hw *HardwareError
	if !errors.As(err, &hw) {
		t.Errorf("expected HardwareError, got %T", err)
	}
}
