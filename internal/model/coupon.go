package model

import (
	"math"
	"strings"
	"time"
)

// NoExpiry is the ExpiryDate sentinel for coupons that never expire.
const NoExpiry = "No Expiry"

// DateLayout is the calendar date format stored in ExpiryDate.
const DateLayout = "2006-01-02"

// Code types set when a scan recognized a machine-readable symbol.
const (
	CodeTypeQR      = "qr"
	CodeTypeBarcode = "barcode"
)

// Coupon is a stored redemption offer.
type Coupon struct {
	ID         string `json:"id" yaml:"id"`
	Store      string `json:"store" yaml:"store"`
	Code       string `json:"code" yaml:"code"`
	Discount   string `json:"discount" yaml:"discount"`
	ExpiryDate string `json:"expiryDate" yaml:"expiryDate"`
	CodeImage  string `json:"codeImage,omitempty" yaml:"codeImage,omitempty"`
	CodeType   string `json:"codeType,omitempty" yaml:"codeType,omitempty"`
}

// Validate checks that every required field is populated.
func (c *Coupon) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"store", c.Store},
		{"code", c.Code},
		{"discount", c.Discount},
		{"expiryDate", c.ExpiryDate},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "is required"}
		}
	}
	if c.CodeType != "" && !IsValidCodeType(c.CodeType) {
		return &ValidationError{Field: "codeType", Message: "must be qr or barcode"}
	}
	return nil
}

// HasExpiry reports whether the coupon carries a calendar expiry date.
func (c *Coupon) HasExpiry() bool {
	return c.ExpiryDate != NoExpiry
}

// ExpiryTime returns midnight of the expiry date in loc.
// ok is false for NoExpiry or a date that does not parse.
func (c *Coupon) ExpiryTime(loc *time.Location) (t time.Time, ok bool) {
	if !c.HasExpiry() {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(c.ExpiryDate), loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsExpiredAt reports whether the expiry date is strictly before the calendar day of now.
func (c *Coupon) IsExpiredAt(now time.Time) bool {
	expiry, ok := c.ExpiryTime(now.Location())
	if !ok {
		return false
	}
	return expiry.Before(StartOfDay(now))
}

// DaysUntilExpiry returns the calendar days from now's date to the expiry date.
// ok is false when the coupon has no comparable expiry date.
func (c *Coupon) DaysUntilExpiry(now time.Time) (days int, ok bool) {
	expiry, ok := c.ExpiryTime(now.Location())
	if !ok {
		return 0, false
	}
	// Days around DST changes are 23 or 25 hours long.
	diff := StartOfDay(expiry).Sub(StartOfDay(now))
	return int(math.Round(diff.Hours() / 24)), true
}

// WithStore returns a copy of the coupon under a new id and store.
func (c Coupon) WithStore(id, store string) Coupon {
	c.ID = id
	c.Store = store
	return c
}

// IsValidCodeType checks a scanned code type tag.
func IsValidCodeType(t string) bool {
	return t == CodeTypeQR || t == CodeTypeBarcode
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
