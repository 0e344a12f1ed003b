package backend

import (
	"errors"
	"time"

	"timercard/internal/protocol"
)

var ErrNoNextExecution = errors.New("backend: no next execution")

// NextExecution computes when a schedule fires next, strictly after now.
// Daily rolls to tomorrow when today's time has passed; weekly scans the
// next seven days for a listed weekday; monthly scans up to twelve months
// and skips days a month does not have (the 31st in February never fires,
// it is not clamped).
func NextExecution(repeatType, scheduleTime string, weekdays []string, monthDays []int, now time.Time) (time.Time, error) {
	secs, err := protocol.ParseDuration(scheduleTime)
	if err != nil {
		return time.Time{}, err
	}
	hour := secs / 3600
	minute := (secs % 3600) / 60
	second := secs % 60

	at := func(day time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, now.Location())
	}

	switch protocol.RepeatType(repeatType) {
	case protocol.RepeatDaily:
		next := at(now)
		if !next.After(now) {
			next = at(now.AddDate(0, 0, 1))
		}
		return next, nil

	case protocol.RepeatWeekly:
		if len(weekdays) == 0 {
			return time.Time{}, ErrNoNextExecution
		}
		target := make(map[time.Weekday]bool, len(weekdays))
		for _, d := range weekdays {
			wd, parseErr := protocol.ParseWeekday(d)
			if parseErr != nil {
				return time.Time{}, parseErr
			}
			target[wd] = true
		}
		for offset := 0; offset < 8; offset++ {
			day := now.AddDate(0, 0, offset)
			if !target[day.Weekday()] {
				continue
			}
			next := at(day)
			if next.After(now) {
				return next, nil
			}
		}
		return time.Time{}, ErrNoNextExecution

	case protocol.RepeatMonthly:
		if len(monthDays) == 0 {
			return time.Time{}, ErrNoNextExecution
		}
		for monthOffset := 0; monthOffset < 12; monthOffset++ {
			first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, monthOffset, 0)
			limit := daysIn(first.Year(), first.Month())
			var best time.Time
			for _, day := range monthDays {
				if day < 1 || day > limit {
					continue
				}
				next := time.Date(first.Year(), first.Month(), day, hour, minute, second, 0, now.Location())
				if !next.After(now) {
					continue
				}
				if best.IsZero() || next.Before(best) {
					best = next
				}
			}
			if !best.IsZero() {
				return best, nil
			}
		}
		return time.Time{}, ErrNoNextExecution

	default:
		return time.Time{}, ErrNoNextExecution
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}
