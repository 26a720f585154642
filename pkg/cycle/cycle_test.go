package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStart(t *testing.T) {
	s := DefaultSchedule()
	tests := []struct {
		name       string
		recurrence Recurrence
		now        string
		want       string
	}{
		{"daily before reset", Daily, "2024-01-01T03:59:59Z", "2023-12-31T04:00:00Z"},
		{"daily after reset", Daily, "2024-01-01T04:00:01Z", "2024-01-01T04:00:00Z"},
		{"daily at reset", Daily, "2024-01-01T04:00:00Z", "2024-01-01T04:00:00Z"},
		{"daily late evening", Daily, "2024-01-01T23:59:59Z", "2024-01-01T04:00:00Z"},
		{"weekly on reset day after reset", Weekly, "2024-01-01T05:00:00Z", "2024-01-01T04:00:00Z"},
		{"weekly on reset day before reset", Weekly, "2024-01-01T03:00:00Z", "2023-12-25T04:00:00Z"},
		{"weekly midweek", Weekly, "2024-01-04T12:00:00Z", "2024-01-01T04:00:00Z"},
		{"weekly sunday", Weekly, "2024-01-07T23:00:00Z", "2024-01-01T04:00:00Z"},
		{"weekly across month", Weekly, "2024-03-02T10:00:00Z", "2024-02-26T04:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Start(tt.recurrence, at(tt.now), s)
			require.NoError(t, err)
			assert.Equal(t, at(tt.want), got)
		})
	}
}

func TestDailyResetBoundary(t *testing.T) {
	s := Schedule{DailyHour: 4, WeeklyDay: time.Monday, WeeklyHour: 4}
	before, err := Start(Daily, at("2024-06-10T03:59:59Z"), s)
	require.NoError(t, err)
	after, err := Start(Daily, at("2024-06-10T04:00:01Z"), s)
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, after.Sub(before))

	again, err := Start(Daily, at("2024-06-10T04:00:01Z"), s)
	require.NoError(t, err)
	assert.Equal(t, after, again)
}

func TestStartConvertsToUTC(t *testing.T) {
	warsaw := time.FixedZone("CET", 3600)
	// 04:30 in Warsaw is 03:30 UTC, still the previous daily cycle.
	now := time.Date(2024, 1, 2, 4, 30, 0, 0, warsaw)
	got, err := Start(Daily, now, DefaultSchedule())
	require.NoError(t, err)
	assert.Equal(t, at("2024-01-01T04:00:00Z"), got)
}

func TestOneTimeHasNoCycle(t *testing.T) {
	_, err := Start(OneTime, time.Now(), DefaultSchedule())
	assert.ErrorIs(t, err, ErrNoCycle)

	key, err := Key(OneTime, time.Now(), DefaultSchedule())
	require.NoError(t, err)
	assert.Equal(t, Epoch, key)
	assert.True(t, End(OneTime, key).IsZero())
}

func TestUnknownRecurrence(t *testing.T) {
	_, err := Start(Recurrence("monthly"), time.Now(), DefaultSchedule())
	assert.ErrorIs(t, err, ErrUnknownRecurrence)
}

func TestEnd(t *testing.T) {
	start := at("2024-01-01T04:00:00Z")
	assert.Equal(t, at("2024-01-02T04:00:00Z"), End(Daily, start))
	assert.Equal(t, at("2024-01-08T04:00:00Z"), End(Weekly, start))
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("Monday")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d)
	d, err = ParseWeekday("sun")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)
	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}
