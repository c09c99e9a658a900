package srs

import (
	"encoding"
	"fmt"
	"strings"
)

// Rating is the outcome a user reports after revisiting a task.
type Rating int

const (
	Hard  Rating = iota + 1 // Recalled; steep interval growth.
	Good                    // Recalled; gentle interval growth.
	Reset                   // Forgotten; demote and revisit tomorrow.
)

var (
	ratingNames  = [...]string{Hard: "hard", Good: "good", Reset: "reset"}
	ratingByName = map[string]Rating{
		"hard":  Hard,
		"good":  Good,
		"reset": Reset,
		"again": Reset,
		"1":     Hard,
		"2":     Good,
		"3":     Reset,
	}
)

var (
	_ fmt.Stringer             = Rating(0)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// Ratings lists every valid rating in ascending order.
func Ratings() []Rating {
	return []Rating{Hard, Good, Reset}
}

// IsValid reports whether r is one of Hard, Good or Reset.
func (r Rating) IsValid() bool {
	return r >= Hard && r <= Reset
}

// String returns the lowercase name, or "Rating(n)" for invalid values.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating accepts a rating name (case-insensitive, "again" is an alias of
// "reset") or its numeric value.
func ParseRating(s string) (Rating, error) {
	r, ok := ratingByName[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
