// Package scheduler runs the production control loop deciding when to
// capture. Decision logic is a pure function over the clock, the daily sun
// window and the controller state; the loop itself never terminates on a
// transient error.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/SolGo/internal/debug"
	"github.com/cjeanneret/SolGo/internal/logic/mode"
	"github.com/cjeanneret/SolGo/internal/logic/sun"
)

// maxIdleSleep caps long waits so externally-toggled enabled/mode changes
// (web interface, message bus) are noticed within a minute.
const maxIdleSleep = 60 * time.Second

// retrySleep is the pause after any error escaping a loop iteration.
const retrySleep = 60 * time.Second

// Action is the per-iteration outcome of the decision function.
type Action int

const (
	// ActionCapture: take a photo now, then sleep one interval.
	ActionCapture Action = iota
	// ActionWaitForStart: before today's window (or capture suspended).
	ActionWaitForStart
	// ActionWaitForTomorrow: today's window is over.
	ActionWaitForTomorrow
	// ActionHold: inside the window but capture is suspended (disabled flag
	// or live preview).
	ActionHold
)

func (a Action) String() string {
	switch a {
	case ActionCapture:
		return "capture"
	case ActionWaitForStart:
		return "wait-for-start"
	case ActionWaitForTomorrow:
		return "wait-for-tomorrow"
	case ActionHold:
		return "hold"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision pairs an action with how long to sleep afterwards and a
// human-readable status message.
type Decision struct {
	Action  Action
	Sleep   time.Duration
	Message string
}

// Decide implements the per-tick decision table:
//   - inside the window, enabled and not previewing: capture, sleep interval
//   - inside the window but suspended (disabled or previewing): hold (capped)
//   - past the window end: wait for tomorrow's start (capped)
//   - before the window: wait for start (capped)
func Decide(now time.Time, w sun.Window, enabled, previewing bool, interval time.Duration) Decision {
	if w.Contains(now) {
		if enabled && !previewing {
			return Decision{
				Action:  ActionCapture,
				Sleep:   interval,
				Message: "capturing",
			}
		}
		msg := "capture disabled"
		if previewing {
			msg = "live preview active, capture suspended"
		}
		return Decision{
			Action:  ActionHold,
			Sleep:   maxIdleSleep,
			Message: msg,
		}
	}

	if now.After(w.End) {
		// Tomorrow's window start: same wall-clock time as today's start,
		// next calendar day.
		tomorrow := now.AddDate(0, 0, 1)
		next := time.Date(
			tomorrow.Year(), tomorrow.Month(), tomorrow.Day(),
			w.Start.Hour(), w.Start.Minute(), 0, 0, now.Location(),
		)
		return Decision{
			Action:  ActionWaitForTomorrow,
			Sleep:   capSleep(next.Sub(now)),
			Message: "done for today, waiting for tomorrow",
		}
	}

	msg := "waiting for capture start time"
	switch {
	case previewing:
		msg = "live preview active, capture suspended"
	case !enabled:
		msg = "capture disabled"
	}
	return Decision{
		Action:  ActionWaitForStart,
		Sleep:   capSleep(w.Start.Sub(now)),
		Message: msg,
	}
}

func capSleep(d time.Duration) time.Duration {
	if d <= 0 || d > maxIdleSleep {
		return maxIdleSleep
	}
	return d
}

// StatusPublisher receives a status snapshot at the top of every iteration.
type StatusPublisher interface {
	PublishStatus(st mode.Status, message string)
}

// Scheduler is the long-running control loop.
type Scheduler struct {
	ctrl     *mode.Controller
	pub      StatusPublisher
	loc      sun.Location
	before   float64 // hours before sunrise
	after    float64 // hours after sunset
	interval time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	mu         sync.Mutex
	lastWindow sun.Window
	lastMsg    string
}

// New creates a scheduler. pub may be nil when the bus is disabled.
func New(ctrl *mode.Controller, pub StatusPublisher, loc sun.Location, hoursBeforeSunrise, hoursAfterSunset float64, interval time.Duration) *Scheduler {
	return &Scheduler{
		ctrl:     ctrl,
		pub:      pub,
		loc:      loc,
		before:   hoursBeforeSunrise,
		after:    hoursAfterSunset,
		interval: interval,
		now:      func() time.Time { return time.Now().In(loc.Timezone) },
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// StatusMessage returns the message of the most recent iteration, for the
// /status endpoint.
func (s *Scheduler) StatusMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastMsg == "" {
		return "starting"
	}
	return s.lastMsg
}

// Window returns the most recently computed capture window.
func (s *Scheduler) Window() sun.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWindow
}

// Run executes the control loop until ctx is cancelled. No error escapes an
// iteration: every failure is logged and degrades to a 60-second retry.
func (s *Scheduler) Run(ctx context.Context) {
	debug.Summary("Capture scheduler started")
	for {
		if ctx.Err() != nil {
			return
		}
		pause := s.iterate()
		if !s.sleep(ctx, pause) {
			return
		}
	}
}

// iterate performs one decision and returns how long to sleep before the
// next one.
func (s *Scheduler) iterate() time.Duration {
	st := s.ctrl.Snapshot()
	s.publish(st)

	w, err := s.window()
	if err != nil {
		s.setMessage("sun window unavailable, retrying")
		debug.Error(err)
		return retrySleep
	}

	d := Decide(s.now(), w, st.Enabled, st.Mode == mode.Preview, s.interval)
	s.setMessage(d.Message)
	debug.Live("Decision: %s, sleeping %s", d.Action, d.Sleep.Round(time.Second))

	if d.Action == ActionCapture {
		if _, err := s.ctrl.CaptureOnce(); err != nil {
			s.setMessage("capture failed, retrying")
			debug.Error(err)
			return retrySleep
		}
	}
	return d.Sleep
}

// window computes today's capture window, falling back to the previous
// day's window when the computation fails (polar edge cases).
func (s *Scheduler) window() (sun.Window, error) {
	w, err := sun.ComputeWindow(s.now(), s.loc, s.before, s.after)
	if err != nil {
		s.mu.Lock()
		prev := s.lastWindow
		s.mu.Unlock()
		if !prev.IsZero() {
			debug.Verbose("Reusing previous capture window after error: %v", err)
			return prev, nil
		}
		return sun.Window{}, err
	}

	s.mu.Lock()
	changed := !w.Start.Equal(s.lastWindow.Start) || !w.End.Equal(s.lastWindow.End)
	s.lastWindow = w
	s.mu.Unlock()
	if changed {
		debug.Window(w.Start, w.End)
	}
	return w, nil
}

func (s *Scheduler) publish(st mode.Status) {
	if s.pub == nil {
		return
	}
	s.mu.Lock()
	msg := s.lastMsg
	s.mu.Unlock()
	s.pub.PublishStatus(st, msg)
}

func (s *Scheduler) setMessage(msg string) {
	s.mu.Lock()
	s.lastMsg = msg
	s.mu.Unlock()
}

// RunTest captures a fixed number of photos at a fixed short interval,
// bypassing the sun window logic entirely. Useful for smoke-testing the
// hardware wiring.
func (s *Scheduler) RunTest(ctx context.Context, count int, interval time.Duration) error {
	debug.Summary("Test mode")
	for i := 0; i < count; i++ {
		st := s.ctrl.Snapshot()
		s.publish(st)
		if !st.Enabled {
			debug.Info("Capture disabled, skipping remaining test photos")
			return nil
		}
		debug.Info("Taking test photo %d/%d", i+1, count)
		if _, err := s.ctrl.CaptureOnce(); err != nil {
			return err
		}
		if i < count-1 && !s.sleep(ctx, interval) {
			return ctx.Err()
		}
	}
	debug.Info("Test completed")
	return nil
}
