package intervalize

import (
	"strings"
	"time"

	"vblock/internal/errors"
	"vblock/pkg/exception"
)

// Named intervals.
var intervals = map[string]time.Duration{
	"min":         time.Minute,
	"three_min":   3 * time.Minute,
	"five_min":    5 * time.Minute,
	"ten_min":     10 * time.Minute,
	"fifteen_min": 15 * time.Minute,
	"thirty_min":  30 * time.Minute,
	"hour":        time.Hour,
}

const maxInterval = 24 * time.Hour

// ParseInterval accepts a named interval ("five_min") or a Go duration ("5m").
func ParseInterval(s string) (time.Duration, error) {
	if d, ok := intervals[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(exception.ErrInvalidInterval, "%q", s)
	}
	return d, ValidateInterval(d)
}

// ValidateInterval checks that d is a whole number of minutes, at most one day, and tiles the
// unit its phase is measured in, so every phase wrap is an interval boundary.
func ValidateInterval(d time.Duration) error {
	if d <= 0 || d > maxInterval {
		return errors.Wrapf(exception.ErrInvalidInterval, "%s is outside (0, %s]", d, maxInterval)
	}
	if d%time.Minute != 0 {
		return errors.Wrapf(exception.ErrInvalidInterval, "%s is not divisible by 60s", d)
	}
	cycle := time.Hour
	if d > time.Hour {
		cycle = maxInterval
	}
	if cycle%d != 0 || (d > time.Hour && d%time.Hour != 0) {
		return errors.Wrapf(exception.ErrInvalidInterval, "%s does not divide %s evenly", d, cycle)
	}
	return nil
}

// ValidatePeriod checks that polling every period cannot skip a boundary of interval.
func ValidatePeriod(interval, period time.Duration) error {
	if period <= 0 {
		return errors.Wrapf(exception.ErrInvalidPeriod, "period %s", period)
	}
	if period > interval/2 {
		return errors.Wrapf(exception.ErrInvalidPeriod, "period %s exceeds half of %s", period, interval)
	}
	if interval%period != 0 {
		return errors.Wrapf(exception.ErrInvalidPeriod, "period %s does not divide %s", period, interval)
	}
	return nil
}

// phase reduces t to its position inside the interval, counted in the coarsest
// unit not longer than the interval.
func phase(t time.Time, interval time.Duration) int {
	secs := int(interval / time.Second)
	switch {
	case secs <= 60:
		return t.Second() % secs
	case secs <= 3600:
		return t.Minute() % (secs / 60)
	default:
		return t.Hour() % (secs / 3600)
	}
}
