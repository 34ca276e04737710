package storage

import (
	"context"
	"time"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/model"
)

// WebhookRepo stores notification targets in the webhooks collection.
type WebhookRepo struct {
	db *DB
}

// NewWebhookRepo creates a new webhook repository.
func NewWebhookRepo(db *DB) *WebhookRepo {
	return &WebhookRepo{db: db}
}

// Create adds a webhook; the name must be unused.
func (r *WebhookRepo) Create(ctx context.Context, webhook *model.Webhook) error {
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = time.Now()
	}
	return r.db.Add(ctx, model.CollectionWebhooks, webhook.Name, webhook)
}

// Get retrieves a webhook by name, or errors.ErrWebhookNotFound.
func (r *WebhookRepo) Get(ctx context.Context, name string) (*model.Webhook, error) {
	webhook := &model.Webhook{}
	found, err := r.db.Get(ctx, model.CollectionWebhooks, name, webhook)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.ErrWebhookNotFound
	}
	return webhook, nil
}

// List retrieves all webhooks ordered by name.
func (r *WebhookRepo) List(ctx context.Context) ([]*model.Webhook, error) {
	return GetAll[*model.Webhook](ctx, r.db, model.CollectionWebhooks)
}

// ListEnabled retrieves the webhooks that should receive notifications.
func (r *WebhookRepo) ListEnabled(ctx context.Context) ([]*model.Webhook, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var enabled []*model.Webhook
	for _, wh := range all {
		if wh.IsEnabled() {
			enabled = append(enabled, wh)
		}
	}
	return enabled, nil
}

// Delete removes a webhook by name.
func (r *WebhookRepo) Delete(ctx context.Context, name string) error {
	return r.db.Batch(ctx, func(t *Txn) error {
		exists, err := t.Exists(model.CollectionWebhooks, name)
		if err != nil {
			return err
		}
		if !exists {
			return errors.ErrWebhookNotFound
		}
		return t.Delete(model.CollectionWebhooks, name)
	})
}

// SetEnabled flips a webhook on or off.
func (r *WebhookRepo) SetEnabled(ctx context.Context, name string, enabled bool) error {
	return r.modify(ctx, name, func(w *model.Webhook) {
		w.Enabled = enabled
	})
}

// RecordDelivery stamps the last use and the last error, if any.
func (r *WebhookRepo) RecordDelivery(ctx context.Context, name string, deliveryErr error) error {
	return r.modify(ctx, name, func(w *model.Webhook) {
		w.LastUsed = time.Now()
		w.LastError = ""
		if deliveryErr != nil {
			w.LastError = deliveryErr.Error()
		}
	})
}

func (r *WebhookRepo) modify(ctx context.Context, name string, fn func(w *model.Webhook)) error {
	return r.db.Batch(ctx, func(t *Txn) error {
		var w model.Webhook
		found, err := t.Get(model.CollectionWebhooks, name, &w)
		if err != nil {
			return err
		}
		if !found {
			return errors.ErrWebhookNotFound
		}
		fn(&w)
		return t.Put(model.CollectionWebhooks, name, &w)
	})
}
