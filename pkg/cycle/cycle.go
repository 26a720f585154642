// Package cycle computes the time windows in which recurring mission progress accumulates.
package cycle

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Recurrence is how often a mission resets.
type Recurrence string

const (
	Daily   Recurrence = "daily"
	Weekly  Recurrence = "weekly"
	OneTime Recurrence = "one_time"
)

var (
	ErrNoCycle           = errors.New("one-time missions have no cycle")
	ErrUnknownRecurrence = errors.New("unknown recurrence")
)

// Valid reports whether r is a known recurrence.
func (r Recurrence) Valid() bool {
	return r == Daily || r == Weekly || r == OneTime
}

// Epoch is the cycle start used to key progress of one-time missions.
var Epoch = time.Unix(0, 0).UTC()

// Schedule holds the reset instants, all in UTC.
type Schedule struct {
	DailyHour  int          `yaml:"daily_hour_utc" json:"daily_hour_utc"`
	WeeklyDay  time.Weekday `yaml:"-" json:"weekly_weekday"`
	WeeklyHour int          `yaml:"weekly_hour_utc" json:"weekly_hour_utc"`
}

// DefaultSchedule resets daily missions at 04:00 UTC and weekly missions on Monday at 04:00 UTC.
func DefaultSchedule() Schedule {
	return Schedule{DailyHour: 4, WeeklyDay: time.Monday, WeeklyHour: 4}
}

// Start returns the start of the cycle containing now. One-time missions have no cycle and
// return ErrNoCycle.
func Start(r Recurrence, now time.Time, s Schedule) (time.Time, error) {
	now = now.UTC()
	y, m, d := now.Date()
	switch r {
	case Daily:
		reset := time.Date(y, m, d, s.DailyHour, 0, 0, 0, time.UTC)
		if now.Before(reset) {
			return reset.AddDate(0, 0, -1), nil
		}
		return reset, nil
	case Weekly:
		daysSinceReset := (int(now.Weekday()) - int(s.WeeklyDay) + 7) % 7
		reset := time.Date(y, m, d-daysSinceReset, s.WeeklyHour, 0, 0, 0, time.UTC)
		if now.Before(reset) {
			return reset.AddDate(0, 0, -7), nil
		}
		return reset, nil
	case OneTime:
		return time.Time{}, ErrNoCycle
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRecurrence, r)
	}
}

// Key returns the cycle start used to key progress counters. One-time missions use Epoch.
func Key(r Recurrence, now time.Time, s Schedule) (time.Time, error) {
	start, err := Start(r, now, s)
	if errors.Is(err, ErrNoCycle) {
		return Epoch, nil
	}
	return start, err
}

// End returns when the cycle that began at start rolls over. The zero time means never.
func End(r Recurrence, start time.Time) time.Time {
	switch r {
	case Daily:
		return start.AddDate(0, 0, 1)
	case Weekly:
		return start.AddDate(0, 0, 7)
	default:
		return time.Time{}
	}
}

// ParseWeekday accepts an English weekday name such as "monday" or "Mon".
func ParseWeekday(name string) (time.Weekday, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}
