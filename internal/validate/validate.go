// Package validate provides input validation helpers for the couponvault CLI.
package validate

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/model"
)

const (
	// MaxURLLength is the maximum length for a URL.
	MaxURLLength = 2048
	// MaxStoreLength is the maximum length for a store name.
	MaxStoreLength = 128
	// MaxCodeLength is the maximum length for a coupon code.
	MaxCodeLength = 256
	// MaxDiscountLength is the maximum length for a discount description.
	MaxDiscountLength = 256
	// MaxImageFileSize caps images read from disk for scanning.
	MaxImageFileSize = 20 << 20
)

func maxLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return errors.NewUserErrorWithField(field, value,
			field+" too long",
			fmt.Sprintf("Keep %s to %d characters or fewer", field, limit))
	}
	return nil
}

// Coupon validates the user-supplied fields of c. It expects c to be
// sanitized already.
func Coupon(c model.Coupon) error {
	checks := []struct {
		field string
		value string
		limit int
	}{
		{"store", c.Store, MaxStoreLength},
		{"code", c.Code, MaxCodeLength},
		{"discount", c.Discount, MaxDiscountLength},
	}
	for _, ch := range checks {
		if err := NonEmpty(ch.field, ch.value); err != nil {
			return err
		}
		if err := maxLength(ch.field, ch.value, ch.limit); err != nil {
			return err
		}
	}
	if c.CodeType != "" && !model.IsValidCodeType(c.CodeType) {
		return errors.NewUserErrorWithField("code-type", c.CodeType,
			"Invalid code type",
			"Use 'qr' or 'barcode'")
	}
	return nil
}

// WebhookName validates a webhook name.
func WebhookName(name string) error {
	if !model.IsValidWebhookName(name) {
		return errors.NewUserErrorWithField("name", name,
			"Invalid webhook name",
			"Names must start with a letter or number and contain only letters, numbers, dashes, or underscores (max 50)")
	}
	return nil
}

// WebhookType validates a webhook type. Empty means auto-detect.
func WebhookType(t string) error {
	if t == "" || model.IsValidWebhookType(t) {
		return nil
	}
	return errors.NewUserErrorWithField("type", t,
		"Invalid webhook type",
		"Use one of: "+strings.Join(model.ValidWebhookTypes(), ", "))
}

// URL validates a URL for use as a webhook endpoint.
func URL(rawURL string) error {
	if rawURL == "" {
		return errors.NewUserError("URL cannot be empty", "Provide a valid URL")
	}
	if len(rawURL) > MaxURLLength {
		return errors.NewUserError("URL too long", "URLs must be 2048 characters or fewer")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL format",
			"Provide a valid URL starting with https://")
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL scheme",
			"URLs must use https:// (or http:// for localhost)")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL: missing hostname",
			"Provide a valid URL like https://example.com/webhook")
	}

	isLocalhost := hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"

	if parsed.Scheme == "http" && !isLocalhost {
		return errors.NewUserErrorWithField("url", rawURL,
			"HTTP not allowed for external URLs",
			"Use https:// for security. HTTP is only allowed for localhost.")
	}

	if !isLocalhost {
		if err := checkInternalIP(hostname); err != nil {
			return err
		}
	}

	return nil
}

// checkInternalIP checks if a hostname resolves to an internal IP.
func checkInternalIP(hostname string) error {
	if ip := net.ParseIP(hostname); ip != nil {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Internal IP addresses not allowed",
				"Webhook URLs must point to external services")
		}
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		// Unresolvable now; delivery will report it.
		return nil
	}

	for _, ip := range ips {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Hostname resolves to internal IP",
				"Webhook URLs must point to external services")
		}
	}

	return nil
}

var privateRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
}

// isInternalIP checks if an IP is in a private/internal range.
func isInternalIP(ip net.IP) bool {
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ImageFile checks that path names a readable regular file small enough to
// scan.
func ImageFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.NewUserErrorWithField("image", path,
			"Cannot read image file",
			"Check the path and try again")
	}
	if !info.Mode().IsRegular() {
		return errors.NewUserErrorWithField("image", path,
			"Not a regular file",
			"Pass the path of a JPEG, PNG, GIF or WebP image")
	}
	if info.Size() > MaxImageFileSize {
		return errors.NewUserErrorWithField("image", path,
			"Image file too large",
			"Images must be 20 MiB or smaller")
	}
	return nil
}

// ReminderDays validates the days-before-expiry preference. Zero turns
// reminders off.
func ReminderDays(days int) error {
	return InRange("days", days, 0, model.MaxDaysBeforeExpiry)
}

// NonEmpty validates that a string is not empty.
func NonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewUserError(
			field+" cannot be empty",
			"Provide a value for "+field)
	}
	return nil
}

// InRange validates that an integer is within a range.
func InRange(field string, value, min, max int) error {
	if value < min || value > max {
		return errors.NewUserErrorWithField(field, fmt.Sprint(value),
			"Value out of range",
			fmt.Sprintf("Must be between %d and %d", min, max))
	}
	return nil
}
