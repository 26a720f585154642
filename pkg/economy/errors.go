package economy

import (
	"errors"
	"time"

	"github.com/rbrabson/chronicles/pkg/format"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrUnknownStat     = errors.New("unknown stat")
	ErrDailyCooldown   = errors.New("daily reward already claimed")
	ErrPackageNotFound = errors.New("premium package not found")
)

// DailyCooldownError reports when the next daily reward can be claimed.
type DailyCooldownError struct {
	Next      time.Time
	Remaining time.Duration
}

func (e *DailyCooldownError) Error() string {
	return "daily reward already claimed, try again in " + format.Duration(e.Remaining)
}

func (e *DailyCooldownError) Is(target error) bool {
	return target == ErrDailyCooldown
}
