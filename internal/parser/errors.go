package parser

import (
	"fmt"
	"strings"

	"github.com/manav03panchal/couponvault/internal/errors"
)

// ParseError is an input that could not be parsed, with examples of valid input.
type ParseError struct {
	Input      string
	Field      string
	Message    string
	Examples   []string
	Suggestion string
	sentinel   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Input, e.Message)
}

// Unwrap exposes the errors sentinel so callers can match on the kind.
func (e *ParseError) Unwrap() error {
	return e.sentinel
}

// FormatWithExamples returns the error message followed by valid examples.
func (e *ParseError) FormatWithExamples() string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Examples) > 0 {
		sb.WriteString("\n\nValid examples:\n")
		for _, ex := range e.Examples {
			sb.WriteString("  - ")
			sb.WriteString(ex)
			sb.WriteString("\n")
		}
	}
	if e.Suggestion != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Suggestion)
	}
	return sb.String()
}

// ToUserError converts the parse error into an errors.UserError.
func (e *ParseError) ToUserError() *errors.UserError {
	suggestion := e.Suggestion
	if suggestion == "" && len(e.Examples) > 0 {
		suggestion = "Try: " + strings.Join(e.Examples[:min(3, len(e.Examples))], ", ")
	}
	return errors.NewUserErrorWithField(e.Field, e.Input, e.Message, suggestion)
}

// ExpiryExamples lists accepted expiry inputs.
var ExpiryExamples = []string{
	"2026-12-31",
	"Dec 31 2026",
	"next friday",
	"in 2 weeks",
	"+30d",
	"none",
}

// TimeOfDayExamples lists accepted notification times.
var TimeOfDayExamples = []string{
	"09:00",
	"18:30",
	"7:05",
}

// NewExpiryError creates an expiry parse error with standard examples.
func NewExpiryError(input, message string) *ParseError {
	return &ParseError{
		Input:      input,
		Field:      "expiry date",
		Message:    message,
		Examples:   ExpiryExamples,
		Suggestion: "Use a calendar date, a relative offset, or 'none' for coupons that never expire.",
		sentinel:   errors.ErrInvalidExpiry,
	}
}

// NewTimeOfDayError creates a time-of-day parse error with standard examples.
func NewTimeOfDayError(input string) *ParseError {
	return &ParseError{
		Input:    input,
		Field:    "time",
		Message:  "expected 24h HH:MM",
		Examples: TimeOfDayExamples,
		sentinel: errors.ErrInvalidTimeOfDay,
	}
}
