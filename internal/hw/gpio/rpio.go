package gpio

import (
	"fmt"

	"github.com/cjeanneret/SolGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver drives the Raspberry Pi GPIO header through go-rpio. The shutter
// trigger lines are set up explicitly by the camera backend; any pin touched
// without a prior SetupPin is configured lazily on first use. Close resets
// every touched pin to input so the DSLR trigger lines cannot stay asserted
// after exit.
type RPiDriver struct {
	pins map[int]rpio.Pin
}

// NewRPiRealDriver opens the GPIO memory range. Needs /dev/gpiomem access or
// root, so it only works on an actual Pi.
func NewRPiRealDriver() (*RPiDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	debug.Info("GPIO driver ready (go-rpio)")
	return &RPiDriver{pins: make(map[int]rpio.Pin)}, nil
}

func (r *RPiDriver) SetupPin(n int, mode PinMode) error {
	debug.GPIO("SetupPin", n, mode)
	p := rpio.Pin(n)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}
	r.pins[n] = p
	return nil
}

// pin returns the handle for n, setting the pin up in the given mode if this
// is its first use.
func (r *RPiDriver) pin(n int, mode PinMode) (rpio.Pin, error) {
	if p, ok := r.pins[n]; ok {
		return p, nil
	}
	if err := r.SetupPin(n, mode); err != nil {
		return 0, err
	}
	return r.pins[n], nil
}

func (r *RPiDriver) WritePin(n int, level Level) error {
	debug.GPIO("WritePin", n, level)
	p, err := r.pin(n, Output)
	if err != nil {
		return err
	}
	if level == High {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(n int) (Level, error) {
	debug.GPIO("ReadPin", n, nil)
	p, err := r.pin(n, Input)
	if err != nil {
		return Low, err
	}
	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

// Close returns all touched pins to input and releases the GPIO range.
func (r *RPiDriver) Close() error {
	debug.Trace("GPIO close")
	for _, p := range r.pins {
		p.Input()
	}
	return rpio.Close()
}
