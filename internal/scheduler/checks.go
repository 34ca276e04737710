package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/notify"
	"github.com/manav03panchal/couponvault/internal/parser"
)

// Source supplies the data an expiry check reads. *coupons.Service implements it.
type Source interface {
	GetCoupons(ctx context.Context) ([]model.Coupon, error)
	GetNotificationPreferences(ctx context.Context) model.NotificationPreferences
}

// ExpiryChecker emits a notification for each coupon entering the
// preferences' notification window. A coupon is notified at most once per
// calendar day.
type ExpiryChecker struct {
	source  Source
	sink    notify.Sink
	metrics *metrics.Metrics
	now     func() time.Time
	digest  bool

	mu       sync.Mutex
	notified map[string]string // coupon id -> day notified (YYYY-MM-DD)
	digestOn string
}

// NewExpiryChecker creates a checker reading from source and sending to sink.
func NewExpiryChecker(source Source, sink notify.Sink) *ExpiryChecker {
	return &ExpiryChecker{
		source:   source,
		sink:     sink,
		metrics:  metrics.Default,
		now:      time.Now,
		notified: make(map[string]string),
	}
}

// CheckResult summarizes one check.
type CheckResult struct {
	Window   int // days before expiry from preferences
	Expiring int // coupons inside the window
	Sent     int // notifications delivered
	Skipped  int // already notified today
	Failed   int
}

// Check reads coupons and preferences and notifies about coupons whose expiry
// date is after now and no more than DaysBeforeExpiry days ahead. Failures are
// logged and counted; nothing is retried until the next run.
func (c *ExpiryChecker) Check(ctx context.Context) (CheckResult, error) {
	c.metrics.RecordCheck()
	now := c.now()

	all, err := c.source.GetCoupons(ctx)
	if err != nil {
		c.metrics.RecordError("check", err)
		logging.WarnContext(ctx, "expiry check skipped", logging.KeyError, err)
		return CheckResult{}, err
	}
	prefs := c.source.GetNotificationPreferences(ctx)

	expiring := coupons.FilterExpiringWithin(all, now, prefs.DaysBeforeExpiry)
	res := CheckResult{Window: prefs.DaysBeforeExpiry, Expiring: len(expiring)}
	today := now.Format(model.DateLayout)

	for _, cp := range expiring {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if c.alreadyNotified(cp.ID, today) {
			res.Skipped++
			continue
		}
		days, _ := cp.DaysUntilExpiry(now)
		if err := c.sink.Send(ctx, ExpiringNotification(cp, days, now)); err != nil {
			res.Failed++
			logging.WarnContext(ctx, "expiry notification failed",
				logging.KeyCouponID, cp.ID, logging.KeyError, err)
			continue
		}
		c.markNotified(cp.ID, today)
		res.Sent++
	}

	if c.digest {
		if err := c.sendExpiredDigest(ctx, all, now); err != nil {
			res.Failed++
		}
	}

	logging.InfoContext(ctx, "expiry check finished",
		"window_days", res.Window,
		"expiring", res.Expiring,
		"sent", res.Sent,
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, nil
}

func (c *ExpiryChecker) alreadyNotified(id, day string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notified[id] == day
}

func (c *ExpiryChecker) markNotified(id, day string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Entries from earlier days can never match again.
	for k, v := range c.notified {
		if v != day {
			delete(c.notified, k)
		}
	}
	c.notified[id] = day
}

// ExpiringNotification builds the "Coupon Expiring Soon" alert for c.
func ExpiringNotification(c model.Coupon, days int, now time.Time) *model.Notification {
	n := model.NewNotification(model.NotifyExpiringSoon, "Coupon Expiring Soon",
		fmt.Sprintf("Your %s off coupon for %s expires in %s!", c.Discount, c.Store, parser.FormatDaysLeft(days))).
		WithCoupon(c.ID).
		WithColor(model.ColorWarning).
		WithField("Store", c.Store).
		WithField("Code", c.Code).
		WithField("Expires", c.ExpiryDate)
	n.Timestamp = now
	return n
}
