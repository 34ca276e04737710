package errors

import "errors"

// Suggestions maps common errors to helpful suggestions.
var Suggestions = map[error]string{
	ErrCouponNotFound:   "Use 'couponvault list' to see saved coupons and their ids.",
	ErrWebhookNotFound:  "Use 'couponvault webhook list' to see configured webhooks.",
	ErrDuplicateKey:     "A record with that key already exists. Use 'couponvault edit' to change it.",
	ErrInvalidExpiry:    "Use a date like '2026-12-31', 'next friday', 'in 2 weeks', or 'none'.",
	ErrInvalidTimeOfDay: "Use 24h HH:MM, for example '09:00' or '18:30'.",
	ErrInvalidURL:       "Provide a valid URL starting with https:// (or http:// for localhost).",
	ErrInvalidImage:     "Pass a JPEG or PNG file, or a base64 data URI.",
	ErrMissingAPIKey:    "Set ANTHROPIC_API_KEY in the environment or vision.api_key in the config file.",
	ErrExtractionFailed: "Try a sharper photo, or add the coupon manually with 'couponvault add'.",

	ErrDiskFull:           "Free up disk space and try again.",
	ErrDatabaseCorrupted:  "Move the data directory aside and re-import from 'couponvault export' output.",
	ErrNetworkUnavailable: "Check your internet connection. Notifications will retry automatically.",
	ErrLockHeld:           "Another couponvault process holds the database. Use 'couponvault daemon stop' or check for stale processes.",
	ErrTimeout:            "The operation took too long. Try again or check your network connection.",
	ErrPermissionDenied:   "Check file permissions in your data directory (~/.local/share/couponvault/).",
}

// GetSuggestion returns a suggestion for an error by walking its chain.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	if ue, ok := AsUserError(err); ok && ue.Suggestion != "" {
		return ue.Suggestion
	}

	for knownErr, suggestion := range Suggestions {
		if errors.Is(err, knownErr) {
			return suggestion
		}
	}
	return ""
}

// GetCategorySuggestion returns a generic suggestion based on error category.
func GetCategorySuggestion(err error) string {
	switch GetCategory(err) {
	case CategoryUser:
		return "Check your input and try again. Use --help for usage information."
	case CategorySystem:
		return "This is a local storage error. Check disk space and permissions, then try again."
	case CategoryExternal:
		return "The remote service failed. Try again later."
	case CategoryRecoverable:
		return "This error may resolve itself. The operation will be retried automatically."
	}
	return ""
}

// CommandExamples provides example commands for common errors.
var CommandExamples = map[error][]string{
	ErrInvalidExpiry: {
		"couponvault add --store Acme --code SAVE10 --discount 10% --expires 2026-12-31",
		"couponvault add --store Acme --code SAVE10 --discount 10% --expires 'in 2 weeks'",
		"couponvault add --store Acme --code FOREVER --discount $5 --expires none",
	},
	ErrInvalidTimeOfDay: {
		"couponvault prefs set --time 09:00",
		"couponvault prefs set --days 5 --time 18:30",
	},
	ErrCouponNotFound: {
		"couponvault list",
		"couponvault list --store Acme",
	},
}

// GetExamples returns example commands for an error.
func GetExamples(err error) []string {
	for knownErr, examples := range CommandExamples {
		if errors.Is(err, knownErr) {
			return examples
		}
	}
	return nil
}
