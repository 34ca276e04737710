package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/model"
)

// Sunday 15 March 2026, mid-afternoon.
var refNow = time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

// =============================================================================
// Expiry Tests
// =============================================================================

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2026-12-31", "2026-12-31"},
		{"  2026-04-01 ", "2026-04-01"},
		{"2020-01-01", "2020-01-01"},
		{"none", model.NoExpiry},
		{"No Expiry", model.NoExpiry},
		{"NEVER", model.NoExpiry},
		{"+30d", "2026-04-14"},
		{"+2w", "2026-03-29"},
		{"+1m", "2026-04-15"},
		{"+1y", "2027-03-15"},
		{"tomorrow", "2026-03-16"},
		{"in 2 weeks", "2026-03-29"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseExpiry(tt.input, refNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExpiryNaturalLanguageIsFuture(t *testing.T) {
	got, err := ParseExpiry("friday", refNow)
	require.NoError(t, err)

	d, err := time.Parse(model.DateLayout, got)
	require.NoError(t, err)
	assert.Equal(t, time.Friday, d.Weekday())
	assert.True(t, d.After(refNow))
}

func TestParseExpiryErrors(t *testing.T) {
	for _, input := range []string{"", "   ", "+0d", "+99999y", "qwerty zxcvb"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseExpiry(input, refNow)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidExpiry)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "expiry date", pe.Field)
		})
	}
}

func TestFormatDaysLeft(t *testing.T) {
	assert.Equal(t, "1 day", FormatDaysLeft(1))
	assert.Equal(t, "3 days", FormatDaysLeft(3))
	assert.Equal(t, "0 days", FormatDaysLeft(0))
}

func TestFormatExpiry(t *testing.T) {
	tests := []struct {
		expiry string
		want   string
	}{
		{model.NoExpiry, "never"},
		{"garbage", "garbage"},
		{"2026-03-10", "expired 5 days ago"},
		{"2026-03-14", "expired yesterday"},
		{"2026-03-15", "today"},
		{"2026-03-16", "tomorrow"},
		{"2026-03-20", "in 5 days"},
		{"2026-06-01", "Jun 1, 2026"},
	}

	for _, tt := range tests {
		t.Run(tt.expiry, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatExpiry(model.Coupon{ExpiryDate: tt.expiry}, refNow))
		})
	}
}

// =============================================================================
// Time of Day Tests
// =============================================================================

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input    string
		hour     int
		minute   int
		hasError bool
	}{
		{"09:00", 9, 0, false},
		{"9:05", 9, 5, false},
		{"23:59", 23, 59, false},
		{"00:00", 0, 0, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"9am", 0, 0, true},
		{"9:5", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h, m, err := ParseTimeOfDay(tt.input)
			if tt.hasError {
				assert.ErrorIs(t, err, errors.ErrInvalidTimeOfDay)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

func TestNormalizeTimeOfDay(t *testing.T) {
	got, err := NormalizeTimeOfDay("7:05")
	require.NoError(t, err)
	assert.Equal(t, "07:05", got)
}

func TestNextOccurrence(t *testing.T) {
	t.Run("later_today", func(t *testing.T) {
		next := NextOccurrence(refNow, 18, 0)
		assert.Equal(t, time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC), next)
	})

	t.Run("already_passed", func(t *testing.T) {
		next := NextOccurrence(refNow, 9, 0)
		assert.Equal(t, time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), next)
	})

	t.Run("exactly_now_moves_to_tomorrow", func(t *testing.T) {
		next := NextOccurrence(refNow, 14, 30)
		assert.Equal(t, time.Date(2026, 3, 16, 14, 30, 0, 0, time.UTC), next)
	})
}

// =============================================================================
// ParseError Tests
// =============================================================================

func TestParseErrorFormatting(t *testing.T) {
	err := NewExpiryError("someday", "could not understand date")
	assert.Equal(t, "invalid expiry date 'someday': could not understand date", err.Error())

	out := err.FormatWithExamples()
	assert.Contains(t, out, "Valid examples:")
	assert.Contains(t, out, "next friday")

	ue := NewTimeOfDayError("9am").ToUserError()
	assert.Equal(t, "time", ue.Field)
	assert.Contains(t, ue.Suggestion, "09:00")
}
