// Package srs holds the review policy: how a rating moves a task's level and
// how far its next due date is pushed out.
package srs

import (
	"errors"
	"math"
	"time"

	"memobot/internal/model"
)

// ErrInvalidRating is returned for ratings outside Hard, Good and Reset.
var ErrInvalidRating = errors.New("srs: invalid rating")

const (
	hardBase = 1.9
	goodBase = 1.3

	// resetPenalty is how many levels a Reset takes away.
	resetPenalty = 3

	// maxIntervalDays bounds the float-to-int conversion; anything this large
	// is past MaxDue anyway.
	maxIntervalDays = 4_000_000
)

// Outcome is the state a task moves to after a review.
type Outcome struct {
	Level        int
	IntervalDays int
	Due          time.Time
}

// DueDate returns the outcome's due date in model.DateLayout.
func (o Outcome) DueDate() string {
	return model.FormatDate(o.Due)
}

// Interval returns the number of days until the next review. It reads the
// level before the review is applied.
func Interval(level int, r Rating) (int, error) {
	if level < 0 {
		level = 0
	}
	switch r {
	case Hard:
		return growth(hardBase, level), nil
	case Good:
		return growth(goodBase, level), nil
	case Reset:
		return 1, nil
	default:
		return 0, ErrInvalidRating
	}
}

// NextLevel returns the level after a review. It never goes below zero and has
// no upper bound.
func NextLevel(level int, r Rating) (int, error) {
	if level < 0 {
		level = 0
	}
	switch r {
	case Hard, Good:
		return level + 1, nil
	case Reset:
		return level - min(level, resetPenalty), nil
	default:
		return level, ErrInvalidRating
	}
}

// Next computes the full review outcome for a task at level rated r on today.
// Only the calendar date of today is used.
func Next(level int, r Rating, today time.Time) (Outcome, error) {
	days, err := Interval(level, r)
	if err != nil {
		return Outcome{}, err
	}
	next, err := NextLevel(level, r)
	if err != nil {
		return Outcome{}, err
	}

	due := model.AddDays(model.Day(today), days)
	if limit := MaxDue(today.Location()); due.After(limit) {
		due = limit
	}

	return Outcome{Level: next, IntervalDays: days, Due: due}, nil
}

// MaxDue is the latest due date representable in model.DateLayout.
func MaxDue(loc *time.Location) time.Time {
	return time.Date(9999, time.December, 31, 0, 0, 0, 0, loc)
}

func growth(base float64, level int) int {
	v := math.Floor(math.Pow(base, float64(level)))
	if v >= maxIntervalDays || math.IsInf(v, 0) || math.IsNaN(v) {
		return maxIntervalDays
	}
	return int(v)
}
