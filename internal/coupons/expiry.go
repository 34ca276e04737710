package coupons

import (
	"context"
	"time"

	"github.com/manav03panchal/couponvault/internal/model"
)

// Urgency buckets a coupon's remaining lifetime for display.
type Urgency int

const (
	UrgencyNone     Urgency = iota // no expiry date
	UrgencyLow                     // more than 7 days left
	UrgencyMedium                  // 4 to 7 days left
	UrgencyHigh                    // 3 days or fewer
	UrgencyExpired                 // before today
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	case UrgencyExpired:
		return "expired"
	default:
		return "none"
	}
}

// UrgencyAt classifies c at now. Coupons with unreadable dates get UrgencyNone.
func UrgencyAt(c model.Coupon, now time.Time) Urgency {
	if c.IsExpiredAt(now) {
		return UrgencyExpired
	}
	days, ok := c.DaysUntilExpiry(now)
	switch {
	case !ok:
		return UrgencyNone
	case days <= 3:
		return UrgencyHigh
	case days <= 7:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// ExpiringWithin returns the coupons whose expiry date falls after now and no
// more than days days ahead, soonest first.
func (s *Service) ExpiringWithin(ctx context.Context, days int) ([]model.Coupon, error) {
	coupons, err := s.GetCoupons(ctx)
	if err != nil {
		return nil, err
	}
	return FilterExpiringWithin(coupons, s.now(), days), nil
}

// FilterExpiringWithin keeps coupons with 0 < DaysUntilExpiry(now) <= days.
func FilterExpiringWithin(coupons []model.Coupon, now time.Time, days int) []model.Coupon {
	out := []model.Coupon{}
	for _, c := range coupons {
		left, ok := c.DaysUntilExpiry(now)
		if ok && left > 0 && left <= days {
			out = append(out, c)
		}
	}
	SortByExpiry(out)
	return out
}

// Expired returns the coupons that are expired at now.
func Expired(coupons []model.Coupon, now time.Time) []model.Coupon {
	out := []model.Coupon{}
	for _, c := range coupons {
		if c.IsExpiredAt(now) {
			out = append(out, c)
		}
	}
	return out
}
