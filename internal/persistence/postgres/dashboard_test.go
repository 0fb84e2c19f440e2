package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekDayIndexAcrossZones(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	monday := time.Date(2026, time.August, 31, 0, 0, 0, 0, est)

	// Database dates come back as midnight UTC. Tuesday UTC midnight is
	// Monday 19:00 in EST; an elapsed-hours division would bucket it wrong.
	tuesday := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	idx, ok := weekDayIndex(monday, tuesday)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	sunday := time.Date(2026, time.September, 6, 0, 0, 0, 0, time.UTC)
	idx, ok = weekDayIndex(monday, sunday)
	require.True(t, ok)
	assert.Equal(t, 6, idx)

	_, ok = weekDayIndex(monday, time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}
