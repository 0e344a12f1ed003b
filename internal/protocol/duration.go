package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("protocol: invalid duration")

// ParseDuration converts an "HH:MM:SS" string to whole seconds. Hours above
// 23 are accepted on input even though the card never produces them.
func ParseDuration(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		vals[i] = v
	}
	if vals[1] > 59 || vals[2] > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return vals[0]*3600 + vals[1]*60 + vals[2], nil
}

// FormatSeconds renders whole seconds as zero-padded "HH:MM:SS". Negative
// and fractional inputs are floored to zero / whole seconds first.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

// ParseWeekday accepts both long and three-letter weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	if d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("protocol: invalid weekday %q", s)
}

// WeekdaysLabel joins weekday names into a short display label, e.g.
// "Mon,Fri". Unrecognized names pass through untouched.
func WeekdaysLabel(days []string) string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		w, err := ParseWeekday(d)
		if err != nil {
			out = append(out, d)
			continue
		}
		out = append(out, w.String()[:3])
	}
	return strings.Join(out, ",")
}

// MonthDaysLabel joins month days into a display label, e.g. "1,15".
func MonthDaysLabel(days []int) string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, strconv.Itoa(d))
	}
	return strings.Join(out, ",")
}
