package daemon

import (
	"context"

	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/storage"
)

// DBSource opens the database for the duration of each call, so the CLI can
// use it between checks. It implements scheduler.Source and
// notify.WebhookStore.
type DBSource struct {
	opts storage.Options
}

// NewDBSource creates a source over the database described by opts.
func NewDBSource(opts storage.Options) *DBSource {
	return &DBSource{opts: opts}
}

func (s *DBSource) with(ctx context.Context, fn func(db *storage.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := storage.Open(s.opts)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// GetCoupons returns every stored coupon.
func (s *DBSource) GetCoupons(ctx context.Context) ([]model.Coupon, error) {
	var out []model.Coupon
	err := s.with(ctx, func(db *storage.DB) error {
		var err error
		out, err = coupons.NewService(db).GetCoupons(ctx)
		return err
	})
	return out, err
}

// GetNotificationPreferences returns the stored preferences, or the defaults
// when the database cannot be opened.
func (s *DBSource) GetNotificationPreferences(ctx context.Context) model.NotificationPreferences {
	prefs := model.DefaultNotificationPreferences()
	err := s.with(ctx, func(db *storage.DB) error {
		prefs = coupons.NewService(db).GetNotificationPreferences(ctx)
		return nil
	})
	if err != nil {
		logging.WarnContext(ctx, "using default notification preferences", logging.KeyError, err)
	}
	return prefs
}

// ListEnabled returns the enabled webhooks.
func (s *DBSource) ListEnabled(ctx context.Context) ([]*model.Webhook, error) {
	var out []*model.Webhook
	err := s.with(ctx, func(db *storage.DB) error {
		var err error
		out, err = storage.NewWebhookRepo(db).ListEnabled(ctx)
		return err
	})
	return out, err
}

// Get returns the named webhook.
func (s *DBSource) Get(ctx context.Context, name string) (*model.Webhook, error) {
	var out *model.Webhook
	err := s.with(ctx, func(db *storage.DB) error {
		var err error
		out, err = storage.NewWebhookRepo(db).Get(ctx, name)
		return err
	})
	return out, err
}

// RecordDelivery stores the outcome of a delivery to the named webhook.
func (s *DBSource) RecordDelivery(ctx context.Context, name string, deliveryErr error) error {
	return s.with(ctx, func(db *storage.DB) error {
		return storage.NewWebhookRepo(db).RecordDelivery(ctx, name, deliveryErr)
	})
}

// Ping opens and closes the database.
func (s *DBSource) Ping(ctx context.Context) error {
	return s.with(ctx, func(db *storage.DB) error {
		return db.Ping(ctx)
	})
}
