package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-marketplace-auth"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	ok, err := auth.IsWithinThresholdPeriod(time.Now().Add(-5*time.Minute), "10m")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.IsWithinThresholdPeriod(time.Now().Add(-2*time.Hour), "1h30m")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = auth.IsWithinThresholdPeriod(time.Now(), "soon")
	assert.Error(t, err)
}

func TestAddMonths(t *testing.T) {
	start := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 7, 15, 8, 0, 0, 0, time.UTC), auth.AddMonths(start, 6))
	assert.Equal(t, time.Date(2025, 12, 15, 8, 0, 0, 0, time.UTC), auth.AddMonths(start, -1))
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 10, auth.DaysUntil(now.AddDate(0, 0, 10), now))
	// partial days round up
	assert.Equal(t, 1, auth.DaysUntil(now.Add(time.Hour), now))
	assert.Equal(t, 0, auth.DaysUntil(now, now))
	assert.Equal(t, -2, auth.DaysUntil(now.AddDate(0, 0, -2), now))
}
