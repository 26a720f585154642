// Package format renders values for chat messages.
package format

import (
	"fmt"
	"time"
)

// plural picks the Polish noun form for n: one, few (2-4, but not 12-14) or many.
func plural(n int64, one, few, many string) string {
	switch {
	case n == 1:
		return one
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return few
	default:
		return many
	}
}

func count(n int64, one, few, many string) string {
	return fmt.Sprintf("%d %s", n, plural(n, one, few, many))
}

// Duration returns duration formatted for inclusion in Discord messages. Hours and minutes
// are rounded to the nearest unit.
func Duration(d time.Duration) string {
	d = d.Round(time.Second)
	days := int64(d / (24 * time.Hour))
	h := int64(d/time.Hour) % 24
	m := int64(d/time.Minute) % 60
	s := int64(d/time.Second) % 60

	if days >= 1 {
		if h >= 12 {
			days++
		}
		return count(days, "dzień", "dni", "dni")
	}
	if h >= 1 {
		if m > 30 {
			h++
		}
		return count(h, "godzina", "godziny", "godzin")
	}
	if m >= 1 {
		if s > 30 {
			m++
		}
		return count(m, "minuta", "minuty", "minut")
	}
	if s <= 1 {
		return "1 sekunda"
	}
	return count(s, "sekunda", "sekundy", "sekund")
}
