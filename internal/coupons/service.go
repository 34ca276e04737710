// Package coupons implements the coupon domain on top of the local database:
// coupon CRUD, the store directory derived from coupons, expiry handling and
// notification preferences.
//
// The store directory invariant: after every successful write, each coupon's
// store has a directory entry, and entries with no coupon are removed by the
// operations that can orphan them (delete, purge, store moves, Reconcile).
package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/parser"
	"github.com/manav03panchal/couponvault/internal/storage"
)

// Service is the domain storage service. It is safe for concurrent use.
type Service struct {
	db    *storage.DB
	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how new coupon ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a service backed by db.
func NewService(db *storage.DB, opts ...Option) *Service {
	s := &Service{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// GetCoupons returns every stored coupon. Failures are returned as *errors.FetchError.
func (s *Service) GetCoupons(ctx context.Context) ([]model.Coupon, error) {
	coupons, err := storage.GetAll[model.Coupon](ctx, s.db, model.CollectionCoupons)
	if err != nil {
		return nil, &errors.FetchError{What: "coupons", Err: err}
	}
	return coupons, nil
}

// GetCoupon returns one coupon by id.
func (s *Service) GetCoupon(ctx context.Context, id string) (model.Coupon, error) {
	var c model.Coupon
	found, err := s.db.Get(ctx, model.CollectionCoupons, id, &c)
	if err != nil {
		return model.Coupon{}, err
	}
	if !found {
		return model.Coupon{}, fmt.Errorf("%w: %s", errors.ErrCouponNotFound, id)
	}
	return c, nil
}

// GetStores returns the store directory in name order. A read failure is
// logged and yields an empty list.
func (s *Service) GetStores(ctx context.Context) []string {
	stores, err := storage.GetAll[model.Store](ctx, s.db, model.CollectionStores)
	if err != nil {
		logging.WarnContext(ctx, "failed to read stores", logging.KeyError, err)
		return []string{}
	}
	names := make([]string, 0, len(stores))
	for _, st := range stores {
		names = append(names, st.Name)
	}
	return names
}

// AddCoupon validates c, assigns an id when it has none, and stores it
// together with its store entry in one transaction.
func (s *Service) AddCoupon(ctx context.Context, c model.Coupon) (model.Coupon, error) {
	c = normalize(c)
	if err := c.Validate(); err != nil {
		return model.Coupon{}, err
	}
	if c.ID == "" {
		c.ID = s.newID()
	}

	err := s.db.Batch(ctx, func(t *storage.Txn) error {
		if err := t.Add(model.CollectionCoupons, c.ID, c); err != nil {
			return err
		}
		return ensureStore(t, c.Store)
	})
	if err != nil {
		return model.Coupon{}, err
	}

	logging.DebugContext(ctx, "coupon added", logging.KeyCouponID, c.ID, logging.KeyStore, c.Store)
	return c, nil
}

// UpdateCoupon replaces the coupon with c's id (inserting it if absent). The
// record is validated first. If the store text changed in place, the new
// store gets an entry and the old one is dropped when nothing references it.
func (s *Service) UpdateCoupon(ctx context.Context, c model.Coupon) error {
	c = normalize(c)
	if c.ID == "" {
		return &model.ValidationError{Field: "id", Message: "is required"}
	}
	if err := c.Validate(); err != nil {
		return err
	}

	return s.db.Batch(ctx, func(t *storage.Txn) error {
		if err := t.Put(model.CollectionCoupons, c.ID, c); err != nil {
			return err
		}
		if err := ensureStore(t, c.Store); err != nil {
			return err
		}
		_, _, err := reconcileTxn(t)
		return err
	})
}

// UpdateCouponWithNewStore moves old to newStore. The replacement gets a fresh
// id; old's id is removed, and old's store entry is removed if no other coupon
// references it. The replacement is returned so callers can re-resolve it.
func (s *Service) UpdateCouponWithNewStore(ctx context.Context, old model.Coupon, newStore string) (model.Coupon, error) {
	newStore = strings.TrimSpace(newStore)
	if newStore == "" {
		return model.Coupon{}, &model.ValidationError{Field: "store", Message: "is required"}
	}

	moved := normalize(old).WithStore(s.newID(), newStore)
	if err := moved.Validate(); err != nil {
		return model.Coupon{}, err
	}

	err := s.db.Batch(ctx, func(t *storage.Txn) error {
		// The stored record, not the caller's copy, names the old store.
		prevStore := strings.TrimSpace(old.Store)
		var stored model.Coupon
		found, err := t.Get(model.CollectionCoupons, old.ID, &stored)
		if err != nil {
			return err
		}
		if found {
			prevStore = stored.Store
		}

		if err := t.Delete(model.CollectionCoupons, old.ID); err != nil {
			return err
		}
		if err := t.Add(model.CollectionCoupons, moved.ID, moved); err != nil {
			return err
		}
		if err := ensureStore(t, newStore); err != nil {
			return err
		}
		if prevStore == newStore {
			return nil
		}
		return removeStoreIfUnreferenced(t, prevStore)
	})
	if err != nil {
		return model.Coupon{}, err
	}

	logging.DebugContext(ctx, "coupon moved",
		logging.KeyCouponID, moved.ID,
		"old_id", old.ID,
		logging.KeyStore, newStore)
	return moved, nil
}

// DeleteCoupon removes a coupon and prunes orphaned store entries.
// Deleting an unknown id is not an error.
func (s *Service) DeleteCoupon(ctx context.Context, id string) error {
	return s.db.Batch(ctx, func(t *storage.Txn) error {
		if err := t.Delete(model.CollectionCoupons, id); err != nil {
			return err
		}
		_, _, err := reconcileTxn(t)
		return err
	})
}

// DeleteExpiredCoupons removes every expired coupon and prunes the store
// directory against the survivors. It returns the number removed.
func (s *Service) DeleteExpiredCoupons(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0

	err := s.db.Batch(ctx, func(t *storage.Txn) error {
		removed = 0
		coupons, err := storage.ListTxn[model.Coupon](t, model.CollectionCoupons)
		if err != nil {
			return err
		}

		remaining := make([]model.Coupon, 0, len(coupons))
		for _, c := range coupons {
			if !c.IsExpiredAt(now) {
				remaining = append(remaining, c)
				continue
			}
			if err := t.Delete(model.CollectionCoupons, c.ID); err != nil {
				return err
			}
			removed++
		}

		_, err = pruneStores(t, referencedStores(remaining))
		return err
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		logging.InfoContext(ctx, "expired coupons deleted", logging.KeyCount, removed)
	}
	return removed, nil
}

// HasExpiredCoupons reports whether any stored coupon is expired. A read
// failure is logged and reported as false.
func (s *Service) HasExpiredCoupons(ctx context.Context) bool {
	coupons, err := s.GetCoupons(ctx)
	if err != nil {
		logging.WarnContext(ctx, "failed to check for expired coupons", logging.KeyError, err)
		return false
	}
	now := s.now()
	for _, c := range coupons {
		if c.IsExpiredAt(now) {
			return true
		}
	}
	return false
}

// GetNotificationPreferences returns the saved preferences, or the defaults
// when none are saved or they cannot be read. Missing preferences are written
// back as defaults on first read.
func (s *Service) GetNotificationPreferences(ctx context.Context) model.NotificationPreferences {
	var p model.NotificationPreferences
	found, err := s.db.Get(ctx, model.CollectionPreferences, model.KeyNotificationPreferences, &p)
	if err != nil {
		logging.WarnContext(ctx, "failed to read notification preferences", logging.KeyError, err)
		return model.DefaultNotificationPreferences()
	}
	if !found {
		p = model.DefaultNotificationPreferences()
		if err := s.db.Add(ctx, model.CollectionPreferences, p.Key, p); err != nil {
			logging.DebugContext(ctx, "defaults not materialized", logging.KeyError, err)
		}
		return p
	}
	p.Key = model.KeyNotificationPreferences
	return p
}

// SetNotificationPreferences validates and saves p.
func (s *Service) SetNotificationPreferences(ctx context.Context, p model.NotificationPreferences) error {
	if at, err := parser.NormalizeTimeOfDay(p.NotificationTime); err == nil {
		p.NotificationTime = at
	}
	p.Key = model.KeyNotificationPreferences
	if err := p.Validate(); err != nil {
		return err
	}
	return s.db.Update(ctx, model.CollectionPreferences, p.Key, p)
}

// normalize trims the user-entered text fields.
func normalize(c model.Coupon) model.Coupon {
	c.Store = strings.TrimSpace(c.Store)
	c.Code = strings.TrimSpace(c.Code)
	c.Discount = strings.TrimSpace(c.Discount)
	c.ExpiryDate = strings.TrimSpace(c.ExpiryDate)
	return c
}
