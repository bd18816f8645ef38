package camera

import (
	"fmt"
	"os"
	"sync"
)

// fakeJPEG is a minimal but well-formed JPEG payload (SOI + EOI).
var fakeJPEG = []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x02, 0xFF, 0xD9}

// Mock is an in-memory Camera used for development and tests. It records
// every call so tests can assert on the hardware interaction sequence.
type Mock struct {
	mu       sync.Mutex
	mode     Mode
	started  bool
	focus    float64 // -1 = auto
	captures []string
	calls    []string

	// FailNext, when set, makes the next hardware call return this error.
	FailNext error
}

// NewMock creates a mock camera in still mode.
func NewMock() *Mock {
	return &Mock{focus: -1}
}

func (m *Mock) fail(op string) error {
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return hwErr(op, err)
	}
	return nil
}

func (m *Mock) Configure(mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "configure:"+mode.String())
	if err := m.fail("configure"); err != nil {
		return err
	}
	if m.started {
		return hwErr("configure", fmt.Errorf("camera is running"))
	}
	m.mode = mode
	return nil
}

func (m *Mock) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "start")
	if err := m.fail("start"); err != nil {
		return err
	}
	m.started = true
	return nil
}

func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "stop")
	if err := m.fail("stop"); err != nil {
		return err
	}
	m.started = false
	return nil
}

func (m *Mock) CaptureStill(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "capture")
	if err := m.fail("capture"); err != nil {
		return err
	}
	if m.mode != ModeStill {
		return hwErr("capture", fmt.Errorf("camera configured for %s, want still", m.mode))
	}
	if err := os.WriteFile(path, fakeJPEG, 0o644); err != nil {
		return hwErr("capture", err)
	}
	m.captures = append(m.captures, path)
	return nil
}

func (m *Mock) PreviewFrame() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != ModePreview || !m.started {
		return nil, hwErr("preview", fmt.Errorf("preview not running"))
	}
	return fakeJPEG, nil
}

func (m *Mock) SetFocus(value float64) error {
	v, err := clampFocus(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.focus = v
	m.mu.Unlock()
	return nil
}

func (m *Mock) AutoFocus() error {
	m.mu.Lock()
	m.focus = -1
	m.mu.Unlock()
	return nil
}

// Captures returns the paths of all stills captured so far.
func (m *Mock) Captures() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.captures))
	copy(out, m.captures)
	return out
}

// Calls returns the ordered hardware call log.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Mode returns the currently configured mode.
func (m *Mock) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Started reports whether the camera is running.
func (m *Mock) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Focus returns the current focus position (-1 = auto).
func (m *Mock) Focus() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focus
}
