package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultServiceMinutes is the time spent at a visit when none is given.
const DefaultServiceMinutes = 30

// TimeWindow is the interval, in minutes since midnight, during which service
// at a visit may begin.
type TimeWindow struct {
	Earliest int
	Latest   int
}

// Valid reports whether the window is well formed.
func (w TimeWindow) Valid() bool {
	return w.Earliest >= 0 && w.Earliest <= w.Latest && w.Latest <= 24*60
}

func (w TimeWindow) String() string {
	return FormatClock(w.Earliest) + "-" + FormatClock(w.Latest)
}

// Represents a single location a route must include exactly once.
// A Visit is immutable for the duration of one optimization run.
type Visit struct {
	ID             string
	Coordinate     Coordinate
	Window         *TimeWindow
	ServiceMinutes int
	DisplayName    string
}

// ServiceDuration returns the service time in minutes, applying the default.
func (v Visit) ServiceDuration() int {
	if v.ServiceMinutes <= 0 {
		return DefaultServiceMinutes
	}
	return v.ServiceMinutes
}

// EarliestOr returns the window start, or fallback when the visit has no window.
func (v Visit) EarliestOr(fallback int) int {
	if v.Window == nil {
		return fallback
	}
	return v.Window.Earliest
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("parse clock %q: expected HH:MM", s)
	}

	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: hours: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: minutes: %w", s, err)
	}

	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("parse clock %q: out of range", s)
	}

	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	if minutes < 0 {
		return "-" + FormatClock(-minutes)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
