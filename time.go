package auth

import (
	"math"
	"time"
)

// IsWithinThresholdPeriod reports whether t is less than thresholdExpr
// old, e.g. "10m" or "2h30m".
func IsWithinThresholdPeriod(t time.Time, thresholdExpr string) (bool, error) {
	d, err := time.ParseDuration(thresholdExpr)
	if err != nil {
		return false, err
	}
	return t.After(time.Now().Add(-d)), nil
}

// AddMonths advances t by calendar months.
func AddMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}

// DaysUntil returns the whole days from now to end, rounding partial
// days up. Past ends give zero or negative values.
func DaysUntil(end, now time.Time) int {
	return int(math.Ceil(end.Sub(now).Hours() / 24))
}

func isExpired(at *time.Time, now time.Time) bool {
	return at == nil || !now.Before(*at)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
