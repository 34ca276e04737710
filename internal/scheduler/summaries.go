package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/model"
)

// EnableExpiredDigest makes Check also send one daily reminder listing how
// many stored coupons are already expired.
func (c *ExpiryChecker) EnableExpiredDigest() {
	c.digest = true
}

func (c *ExpiryChecker) sendExpiredDigest(ctx context.Context, all []model.Coupon, now time.Time) error {
	expired := coupons.Expired(all, now)
	if len(expired) == 0 {
		return nil
	}

	today := now.Format(model.DateLayout)
	c.mu.Lock()
	sent := c.digestOn == today
	c.mu.Unlock()
	if sent {
		return nil
	}

	if err := c.sink.Send(ctx, ExpiredDigest(expired, now)); err != nil {
		logging.WarnContext(ctx, "expired digest failed", logging.KeyError, err)
		return err
	}

	c.mu.Lock()
	c.digestOn = today
	c.mu.Unlock()
	return nil
}

// ExpiredDigest builds the daily reminder about expired coupons.
func ExpiredDigest(expired []model.Coupon, now time.Time) *model.Notification {
	noun := "coupons have"
	if len(expired) == 1 {
		noun = "coupon has"
	}
	n := model.NewNotification(model.NotifyExpired, "Expired Coupons",
		fmt.Sprintf("%d %s expired. Run 'couponvault purge' to remove them.", len(expired), noun)).
		WithColor(model.ColorError)

	groups := coupons.GroupByStore(expired)
	for _, store := range coupons.StoreNames(groups) {
		n.WithField(store, fmt.Sprintf("%d", len(groups[store])))
	}
	n.Timestamp = now
	return n
}
