// Package parser turns user input into coupon expiry dates and notification times.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"

	"github.com/manav03panchal/couponvault/internal/model"
)

// noExpiryWords are accepted in place of the "No Expiry" sentinel.
var noExpiryWords = map[string]bool{
	"no expiry": true,
	"none":      true,
	"never":     true,
	"-":         true,
}

// maxExpiryYear keeps stored dates in four-digit YYYY-MM-DD form.
const maxExpiryYear = 9999

// offsetRegex matches "+30d", "+2w", "+3m", "+1y".
var offsetRegex = regexp.MustCompile(`^\+(\d+)([dwmy])$`)

// ParseExpiry normalizes an expiry input to the stored form: either
// model.NoExpiry or a YYYY-MM-DD date. Natural language is resolved relative
// to now; an input with no explicit year prefers the next future occurrence.
// Past dates are accepted.
func ParseExpiry(input string, now time.Time) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", NewExpiryError(input, "expiry date is required")
	}
	if noExpiryWords[strings.ToLower(input)] {
		return model.NoExpiry, nil
	}

	if t, err := time.ParseInLocation(model.DateLayout, input, now.Location()); err == nil {
		return t.Format(model.DateLayout), nil
	}

	if match := offsetRegex.FindStringSubmatch(strings.ToLower(input)); match != nil {
		return parseOffset(match[1], match[2], now)
	}

	cfg := &dateparser.Configuration{
		CurrentTime:         now,
		PreferredDateSource: dateparser.Future,
	}
	result, err := dateparser.Parse(cfg, input)
	if err != nil || result.Time.IsZero() || result.Time.Year() > maxExpiryYear {
		return "", NewExpiryError(input, "could not understand date")
	}
	return result.Time.In(now.Location()).Format(model.DateLayout), nil
}

func parseOffset(numStr, unit string, now time.Time) (string, error) {
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return "", NewExpiryError("+"+numStr+unit, "offset must be positive")
	}

	var t time.Time
	switch unit {
	case "d":
		t = now.AddDate(0, 0, n)
	case "w":
		t = now.AddDate(0, 0, 7*n)
	case "m":
		t = now.AddDate(0, n, 0)
	case "y":
		t = now.AddDate(n, 0, 0)
	}
	if t.Before(now) || t.Year() > maxExpiryYear {
		return "", NewExpiryError("+"+numStr+unit, "offset is too large")
	}
	return t.Format(model.DateLayout), nil
}

// FormatDaysLeft renders a day count the way notifications phrase it.
func FormatDaysLeft(days int) string {
	if days == 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}

// FormatExpiry describes a coupon's expiry relative to now for list output:
// "never", "expired 3 days ago", "today", "tomorrow", "in 5 days", or the date.
func FormatExpiry(c model.Coupon, now time.Time) string {
	if !c.HasExpiry() {
		return "never"
	}
	expiry, ok := c.ExpiryTime(now.Location())
	if !ok {
		return c.ExpiryDate
	}

	days := int(math.Round(expiry.Sub(model.StartOfDay(now)).Hours() / 24))
	switch {
	case days < -1:
		return "expired " + strconv.Itoa(-days) + " days ago"
	case days == -1:
		return "expired yesterday"
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days < 14:
		return "in " + FormatDaysLeft(days)
	default:
		return expiry.Format("Jan 2, 2006")
	}
}
