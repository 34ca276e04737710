package runtime

import (
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/parser"
)

// MinPrefixLength is the shortest id prefix FindCoupon will expand.
const MinPrefixLength = 4

// GetSuggestion returns a suggestion for an error, if available.
func GetSuggestion(err error) string {
	var pe *parser.ParseError
	if errors.As(err, &pe) && pe.Suggestion != "" {
		return pe.Suggestion
	}
	return errors.GetSuggestion(err)
}

// FormatError formats err for the terminal. Debug mode adds the error chain
// and stack.
func FormatError(err error, debug bool) string {
	if err == nil {
		return ""
	}
	if debug {
		return errors.FormatDebugError(err)
	}
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return pe.FormatWithExamples()
	}
	return errors.FormatByCategory(err)
}
