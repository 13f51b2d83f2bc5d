package action

import (
	"fmt"
	"strings"
	"time"
)

// dayNames maps accepted day tokens to weekdays.
var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// Window is a weekly clock range, e.g. Mon-Fri 05:40-06:50.
//
// Start is inclusive and End exclusive. When End is earlier than Start the
// range wraps past midnight; days are matched against the day of the
// instant being tested, not the day the range started.
type Window struct {
	days  [7]bool
	start time.Duration
	end   time.Duration
}

// ParseWindow builds a Window.
//
// Parameters:
//   - days: Day tokens ("mon", "friday") or ranges ("mon-fri"); also
//     "weekdays", "weekends" and "daily". Empty means every day.
//   - start, end: Clock times as HH:MM
//
// Returns:
//   - Window: The parsed window
//   - error: ErrInvalidWindow wrapped with the offending value
func ParseWindow(days []string, start, end string) (Window, error) {
	var w Window
	var err error

	if w.start, err = parseClock(start); err != nil {
		return Window{}, err
	}
	if w.end, err = parseClock(end); err != nil {
		return Window{}, err
	}

	if len(days) == 0 {
		days = []string{"daily"}
	}
	for _, d := range days {
		if err := w.addDays(strings.ToLower(strings.TrimSpace(d))); err != nil {
			return Window{}, err
		}
	}
	return w, nil
}

func (w *Window) addDays(token string) error {
	switch token {
	case "daily", "all":
		for i := range w.days {
			w.days[i] = true
		}
		return nil
	case "weekdays":
		for d := time.Monday; d <= time.Friday; d++ {
			w.days[d] = true
		}
		return nil
	case "weekends":
		w.days[time.Saturday] = true
		w.days[time.Sunday] = true
		return nil
	}

	if from, to, ok := strings.Cut(token, "-"); ok {
		first, ok1 := dayNames[from]
		last, ok2 := dayNames[to]
		if !ok1 || !ok2 {
			return fmt.Errorf("%w: day range %q", ErrInvalidWindow, token)
		}
		for d := first; ; d = (d + 1) % 7 {
			w.days[d] = true
			if d == last {
				break
			}
		}
		return nil
	}

	d, ok := dayNames[token]
	if !ok {
		return fmt.Errorf("%w: day %q", ErrInvalidWindow, token)
	}
	w.days[d] = true
	return nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: clock %q", ErrInvalidWindow, s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains reports whether t falls inside the window, in t's location.
func (w Window) Contains(t time.Time) bool {
	if !w.days[t.Weekday()] {
		return false
	}
	clock := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second

	if w.start <= w.end {
		return w.start <= clock && clock < w.end
	}
	return clock >= w.start || clock < w.end
}

// anyContains reports whether any window contains t. No windows means always.
func anyContains(windows []Window, t time.Time) bool {
	if len(windows) == 0 {
		return true
	}
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
