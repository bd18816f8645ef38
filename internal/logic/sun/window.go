package sun

import (
	"fmt"
	"time"

	"github.com/cjeanneret/SolGo/internal/debug"
	"github.com/nathan-osman/go-sunrise"
)

// Location is a geographic position with its local timezone.
type Location struct {
	Latitude  float64
	Longitude float64
	Timezone  *time.Location
}

// Window is the daily time range during which scheduled capture is active.
// Both bounds carry the location's timezone. Invariant: Start < End.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window (inclusive bounds).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// GeolocationError signals that no capture window can be computed for the
// given location and date (invalid coordinates, or polar day/night where
// the sun never rises or never sets).
type GeolocationError struct {
	Reason string
}

func (e *GeolocationError) Error() string {
	return "sun window: " + e.Reason
}

// ComputeWindow computes the capture window for the calendar day containing
// date (interpreted in loc.Timezone): sunrise minus hoursBeforeSunrise to
// sunset plus hoursAfterSunset.
//
// If the offsets invert the window (possible at extreme latitudes with very
// short days), the raw sunrise-sunset range is used instead. If even that is
// invalid the sun never rose or never set that day and a GeolocationError is
// returned; the scheduler then falls back to the previous day's window.
func ComputeWindow(date time.Time, loc Location, hoursBeforeSunrise, hoursAfterSunset float64) (Window, error) {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return Window{}, &GeolocationError{Reason: fmt.Sprintf("latitude %.4f out of range", loc.Latitude)}
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return Window{}, &GeolocationError{Reason: fmt.Sprintf("longitude %.4f out of range", loc.Longitude)}
	}
	if hoursBeforeSunrise < 0 || hoursAfterSunset < 0 {
		return Window{}, &GeolocationError{Reason: "hour offsets must be non-negative"}
	}
	tz := loc.Timezone
	if tz == nil {
		tz = time.UTC
	}

	local := date.In(tz)
	rise, set := sunrise.SunriseSunset(
		loc.Latitude, loc.Longitude,
		local.Year(), local.Month(), local.Day(),
	)
	if rise.IsZero() || set.IsZero() {
		return Window{}, &GeolocationError{
			Reason: fmt.Sprintf("no sunrise/sunset on %s at %.4f,%.4f (polar day or night)",
				local.Format("2006-01-02"), loc.Latitude, loc.Longitude),
		}
	}
	rise = rise.In(tz)
	set = set.In(tz)
	if !rise.Before(set) {
		return Window{}, &GeolocationError{
			Reason: fmt.Sprintf("sunrise %s not before sunset %s", rise, set),
		}
	}

	start := rise.Add(-time.Duration(hoursBeforeSunrise * float64(time.Hour)))
	end := set.Add(time.Duration(hoursAfterSunset * float64(time.Hour)))
	if !start.Before(end) {
		// Offsets inverted the window; fall back to the raw daylight range.
		debug.Verbose("Sun window inverted by offsets, falling back to raw sunrise-sunset")
		start, end = rise, set
	}

	return Window{Start: start, End: end}, nil
}
