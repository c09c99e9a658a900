package srs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingValues(t *testing.T) {
	assert.Equal(t, Rating(1), Hard)
	assert.Equal(t, Rating(2), Good)
	assert.Equal(t, Rating(3), Reset)
}

func TestRatingString(t *testing.T) {
	tests := []struct {
		r    Rating
		want string
	}{
		{Hard, "hard"},
		{Good, "good"},
		{Reset, "reset"},
		{Rating(0), "Rating(0)"},
		{Rating(4), "Rating(4)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.r.String())
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want Rating
	}{
		{"hard", Hard},
		{"HARD", Hard},
		{" good ", Good},
		{"reset", Reset},
		{"again", Reset},
		{"1", Hard},
		{"2", Good},
		{"3", Reset},
	}
	for _, tt := range tests {
		got, err := ParseRating(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "easy", "0", "4", "hardest"} {
		_, err := ParseRating(bad)
		assert.ErrorIs(t, err, ErrInvalidRating, bad)
	}
}

func TestRatingText(t *testing.T) {
	text, err := Good.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "good", string(text))

	_, err = Rating(9).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidRating)

	var r Rating
	require.NoError(t, r.UnmarshalText([]byte("Reset")))
	assert.Equal(t, Reset, r)
	assert.ErrorIs(t, r.UnmarshalText([]byte("meh")), ErrInvalidRating)
}
