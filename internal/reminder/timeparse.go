package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimeFormat is returned when a time-of-day string matches none of the accepted layouts.
var ErrInvalidTimeFormat = errors.New("invalid time format")

// ExampleFormats names accepted inputs for user-facing messages.
const ExampleFormats = "'2:30 PM' or '14:30'"

// timeLayouts are tried in order; the first successful parse wins.
var timeLayouts = []string{
	"15:04",      // 14:30
	"3:04 PM",    // 2:30 PM
	"3:04PM",     // 2:30PM
	"3:04:05 PM", // 2:30:00 PM, seconds are dropped
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay normalises user supplied text into a 24-hour time of day.
func ParseTimeOfDay(text string) (TimeOfDay, error) {
	// Go only matches upper-case AM/PM markers.
	value := strings.ToUpper(strings.TrimSpace(text))
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
	}
	return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, text)
}

// NextOccurrence returns the first instant strictly after now that falls on the
// given time of day, in now's location. Seconds are always zero.
func NextOccurrence(now time.Time, tod TimeOfDay) time.Time {
	target := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}
