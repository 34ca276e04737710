package validate

import (
	"strings"
	"unicode"

	"github.com/manav03panchal/couponvault/internal/model"
)

// SanitizeField trims whitespace, drops control characters and collapses
// internal runs of whitespace to a single space.
func SanitizeField(s string) string {
	s = StripControlChars(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// SanitizeCoupon cleans the text fields of c. The code keeps its internal
// spacing since some stores print codes in groups.
func SanitizeCoupon(c model.Coupon) model.Coupon {
	c.Store = SanitizeField(c.Store)
	c.Discount = SanitizeField(c.Discount)
	c.Code = strings.TrimSpace(StripControlChars(c.Code))
	c.ExpiryDate = SanitizeField(c.ExpiryDate)
	c.CodeType = strings.ToLower(strings.TrimSpace(c.CodeType))
	return c
}

// StripControlChars removes all control characters from a string.
func StripControlChars(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// TruncateString truncates a string to the given length, adding "..." if truncated.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// SafeFilename converts a string to a safe filename.
func SafeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"\x00", "",
	)
	s = replacer.Replace(s)
	s = strings.Trim(s, " .")
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
