package srs

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, 4, 8, 15, 30, 0, 0, time.UTC)

func TestNextScenarios(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		level    int
		rating   Rating
		interval int
		newLevel int
		due      string
	}{
		{name: "hard at level 3", level: 3, rating: Hard, interval: 6, newLevel: 4, due: "2025-04-14"},
		{name: "good at level 5", level: 5, rating: Good, interval: 3, newLevel: 6, due: "2025-04-11"},
		{name: "reset at level 2 clamps", level: 2, rating: Reset, interval: 1, newLevel: 0, due: "2025-04-09"},
		{name: "reset at level 0 clamps", level: 0, rating: Reset, interval: 1, newLevel: 0, due: "2025-04-09"},
		{name: "reset at level 7", level: 7, rating: Reset, interval: 1, newLevel: 4, due: "2025-04-09"},
		{name: "hard at level 0", level: 0, rating: Hard, interval: 1, newLevel: 1, due: "2025-04-09"},
		{name: "good at level 0", level: 0, rating: Good, interval: 1, newLevel: 1, due: "2025-04-09"},
		{name: "good at level 1 truncates", level: 1, rating: Good, interval: 1, newLevel: 2, due: "2025-04-09"},
		{name: "hard at level 1 truncates", level: 1, rating: Hard, interval: 1, newLevel: 2, due: "2025-04-09"},
		{name: "hard at level 2", level: 2, rating: Hard, interval: 3, newLevel: 3, due: "2025-04-11"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Next(tc.level, tc.rating, today)
			require.NoError(t, err)

			assert.Equal(t, tc.interval, out.IntervalDays)
			assert.Equal(t, tc.newLevel, out.Level)
			assert.Equal(t, tc.due, out.DueDate())
		})
	}
}

func TestIntervalMatchesFloorOfPower(t *testing.T) {
	t.Parallel()

	for level := 0; level <= 20; level++ {
		hard, err := Interval(level, Hard)
		require.NoError(t, err)
		good, err := Interval(level, Good)
		require.NoError(t, err)

		assert.Equal(t, int(math.Floor(math.Pow(1.9, float64(level)))), hard, "hard level %d", level)
		assert.Equal(t, int(math.Floor(math.Pow(1.3, float64(level)))), good, "good level %d", level)
	}
}

func TestNextRejectsInvalidRating(t *testing.T) {
	t.Parallel()

	for _, r := range []Rating{0, -1, 4, 99} {
		_, err := Next(3, r, today)
		assert.ErrorIs(t, err, ErrInvalidRating, "rating %d", int(r))
	}
}

func TestNextUsesCalendarDateOnly(t *testing.T) {
	t.Parallel()

	lateEvening := time.Date(2025, 4, 8, 23, 59, 59, 0, time.UTC)
	out, err := Next(0, Hard, lateEvening)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC), out.Due)
}

func TestNextClampsDueDateToMaxDue(t *testing.T) {
	t.Parallel()

	out, err := Next(40, Hard, today)
	require.NoError(t, err)

	assert.Equal(t, 41, out.Level)
	assert.Equal(t, "9999-12-31", out.DueDate())
}

func TestNextTreatsNegativeLevelAsZero(t *testing.T) {
	t.Parallel()

	out, err := Next(-4, Good, today)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Level)
	assert.Equal(t, 1, out.IntervalDays)
}

func TestLevelNeverNegative(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	ratings := Ratings()
	level := 0
	for i := 0; i < 10_000; i++ {
		out, err := Next(level, ratings[rng.Intn(len(ratings))], today)
		require.NoError(t, err)
		require.GreaterOrEqual(t, out.Level, 0)
		level = out.Level
	}
}
