package sun

import (
	"errors"
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	tz, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load tz %s: %v", name, err)
	}
	return tz
}

func TestComputeWindow_StartBeforeEnd(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		tz       string
		date     time.Time
	}{
		{"paris_summer", 48.8566, 2.3522, "Europe/Paris", time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)},
		{"paris_winter", 48.8566, 2.3522, "Europe/Paris", time.Date(2025, 12, 21, 12, 0, 0, 0, time.UTC)},
		{"sydney", -33.8688, 151.2093, "Australia/Sydney", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)},
		{"equator", 0, 0, "UTC", time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loc := Location{Latitude: tc.lat, Longitude: tc.lon, Timezone: mustLoc(t, tc.tz)}
			w, err := ComputeWindow(tc.date, loc, 1, 1)
			if err != nil {
				t.Fatalf("ComputeWindow: %v", err)
			}
			if !w.Start.Before(w.End) {
				t.Errorf("start %v not before end %v", w.Start, w.End)
			}
			if w.Start.Location().String() != tc.tz {
				t.Errorf("start tz = %s, want %s", w.Start.Location(), tc.tz)
			}
		})
	}
}

func TestComputeWindow_OffsetsWidenWindow(t *testing.T) {
	loc := Location{Latitude: 48.8566, Longitude: 2.3522, Timezone: mustLoc(t, "Europe/Paris")}
	date := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)

	raw, err := ComputeWindow(date, loc, 0, 0)
	if err != nil {
		t.Fatalf("ComputeWindow raw: %v", err)
	}
	wide, err := ComputeWindow(date, loc, 2, 3)
	if err != nil {
		t.Fatalf("ComputeWindow wide: %v", err)
	}

	if got, want := raw.Start.Sub(wide.Start), 2*time.Hour; got != want {
		t.Errorf("start offset = %v, want %v", got, want)
	}
	if got, want := wide.End.Sub(raw.End), 3*time.Hour; got != want {
		t.Errorf("end offset = %v, want %v", got, want)
	}
}

func TestComputeWindow_InvalidCoordinates(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
	}{
		{"lat_too_high", 91, 0},
		{"lat_too_low", -91, 0},
		{"lon_too_high", 0, 181},
		{"lon_too_low", 0, -181},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loc := Location{Latitude: tc.lat, Longitude: tc.lon, Timezone: time.UTC}
			_, err := ComputeWindow(time.Now(), loc, 1, 1)
			var geo *GeolocationError
			if !errors.As(err, &geo) {
				t.Errorf("expected GeolocationError, got %v", err)
			}
		})
	}
}

func TestComputeWindow_PolarNight(t *testing.T) {
	// Svalbard in mid-winter: the sun never rises.
	loc := Location{Latitude: 78.2232, Longitude: 15.6267, Timezone: time.UTC}
	_, err := ComputeWindow(time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC), loc, 1, 1)
	var geo *GeolocationError
	if !errors.As(err, &geo) {
		t.Errorf("expected GeolocationError for polar night, got %v", err)
	}
}

func TestComputeWindow_NegativeOffsetsRejected(t *testing.T) {
	loc := Location{Latitude: 48.85, Longitude: 2.35, Timezone: time.UTC}
	_, err := ComputeWindow(time.Now(), loc, -1, 0)
	var geo *GeolocationError
	if !errors.As(err, &geo) {
		t.Errorf("expected GeolocationError for negative offset, got %v", err)
	}
}

func TestWindow_Contains(t *testing.T) {
	w := Window{
		Start: time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC),
	}
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"before", time.Date(2025, 6, 1, 5, 59, 59, 0, time.UTC), false},
		{"at_start", w.Start, true},
		{"inside", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), true},
		{"at_end", w.End, true},
		{"after", time.Date(2025, 6, 1, 20, 0, 1, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := w.Contains(tc.t); got != tc.want {
				t.Errorf("Contains(%v) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestWindow_IsZero(t *testing.T) {
	if !(Window{}).IsZero() {
		t.Error("zero window should report IsZero")
	}
	w := Window{Start: time.Now(), End: time.Now().Add(time.Hour)}
	if w.IsZero() {
		t.Error("non-zero window should not report IsZero")
	}
}
