package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDateOrdersLikeCalendar(t *testing.T) {
	earlier := time.Date(2025, 9, 30, 23, 59, 0, 0, time.UTC)
	later := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-09-30", FormatDate(earlier))
	assert.Less(t, FormatDate(earlier), FormatDate(later))
}

func TestParseDateRoundTrip(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	day, err := ParseDate("2024-02-29", loc)
	require.NoError(t, err)

	assert.Equal(t, loc, day.Location())
	assert.Equal(t, "2024-02-29", FormatDate(day))

	_, err = ParseDate("2023-02-29", loc)
	assert.Error(t, err)
}

func TestAddDaysCrossesMonthAndYear(t *testing.T) {
	day := time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-12-31", FormatDate(AddDays(day, 1)))
	assert.Equal(t, "2026-01-06", FormatDate(AddDays(day, 7)))
}

func TestAddDaysIgnoresDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks go back on 2025-10-26.
	day := time.Date(2025, 10, 25, 0, 0, 0, 0, loc)

	next := AddDays(day, 1)
	assert.Equal(t, "2025-10-26", FormatDate(next))
	assert.Equal(t, 0, next.Hour())
}

func TestDayTruncates(t *testing.T) {
	now := time.Date(2025, 4, 8, 17, 45, 12, 99, time.UTC)
	assert.Equal(t, time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC), Day(now))
}

func TestTaskIsDue(t *testing.T) {
	asOf := time.Date(2025, 4, 8, 10, 0, 0, 0, time.UTC)

	assert.True(t, Task{DueDate: "2025-04-08"}.IsDue(asOf))
	assert.True(t, Task{DueDate: "2025-01-01"}.IsDue(asOf))
	assert.False(t, Task{DueDate: "2025-04-09"}.IsDue(asOf))
}
