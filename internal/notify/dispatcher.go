package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/model"
)

// WebhookStore is the webhook persistence the dispatcher needs.
// *storage.WebhookRepo implements it.
type WebhookStore interface {
	ListEnabled(ctx context.Context) ([]*model.Webhook, error)
	Get(ctx context.Context, name string) (*model.Webhook, error)
	RecordDelivery(ctx context.Context, name string, deliveryErr error) error
}

// Dispatcher sends notifications to every enabled webhook. It implements Sink.
type Dispatcher struct {
	webhooks   WebhookStore
	httpClient *HTTPClient
	queue      *RetryQueue
	fallback   Sink
	metrics    *metrics.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient replaces the default client built from config.Global.
func WithHTTPClient(c *HTTPClient) DispatcherOption {
	return func(d *Dispatcher) { d.httpClient = c }
}

// WithRetryQueue hands retryable failures to q.
func WithRetryQueue(q *RetryQueue) DispatcherOption {
	return func(d *Dispatcher) { d.queue = q }
}

// WithFallback sets the sink used when no webhook is enabled.
func WithFallback(s Sink) DispatcherOption {
	return func(d *Dispatcher) { d.fallback = s }
}

// WithMetrics overrides metrics.Default.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(webhooks WebhookStore, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		webhooks: webhooks,
		metrics:  metrics.Default,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.httpClient == nil {
		d.httpClient = NewHTTPClient()
	}
	return d
}

// DispatchResult contains the result of dispatching to a single webhook.
type DispatchResult struct {
	WebhookName string
	Success     bool
	StatusCode  int
	Duration    time.Duration
	Queued      bool
	Error       error
}

// Send delivers n to every enabled webhook, or to the fallback sink when none
// is enabled. Per-webhook failures are joined into the returned error.
func (d *Dispatcher) Send(ctx context.Context, n *model.Notification) error {
	results, err := d.SendNotification(ctx, n)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		if d.fallback == nil {
			return nil
		}
		err := d.fallback.Send(ctx, n)
		d.metrics.RecordNotification("log", err)
		return err
	}

	var errs []error
	for _, r := range results {
		if r.Error != nil && !r.Queued {
			errs = append(errs, fmt.Errorf("%s: %w", r.WebhookName, r.Error))
		}
	}
	return stderrors.Join(errs...)
}

// SendNotification sends n to all enabled webhooks concurrently. A nil slice
// means no webhook is enabled.
func (d *Dispatcher) SendNotification(ctx context.Context, n *model.Notification) ([]DispatchResult, error) {
	webhooks, err := d.webhooks.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	if len(webhooks) == 0 {
		return nil, nil
	}

	var wg sync.WaitGroup
	results := make([]DispatchResult, len(webhooks))
	for i, wh := range webhooks {
		wg.Add(1)
		go func(idx int, wh *model.Webhook) {
			defer wg.Done()
			results[idx] = d.sendToWebhook(ctx, n, wh)
		}(i, wh)
	}
	wg.Wait()
	return results, nil
}

func (d *Dispatcher) sendToWebhook(ctx context.Context, n *model.Notification, wh *model.Webhook) DispatchResult {
	result := DispatchResult{WebhookName: wh.Name}

	formatter := formatterFor(wh)
	payload, err := formatter.Format(n)
	if err != nil {
		result.Error = fmt.Errorf("failed to format notification: %w", err)
		d.recordDelivery(ctx, wh.Name, result.Error)
		d.metrics.RecordNotification("webhook", result.Error)
		return result
	}

	sent := d.httpClient.Send(ctx, wh.URL, formatter.ContentType(), payload)
	result.StatusCode = sent.StatusCode
	result.Duration = sent.Duration
	result.Error = sent.Error
	result.Success = sent.Error == nil

	d.metrics.ObserveWebhook(sent.Duration)
	d.recordDelivery(ctx, wh.Name, sent.Error)

	if sent.Error != nil && d.queue != nil && sent.Retryable() && ctx.Err() == nil {
		d.queue.EnqueueWithError(uuid.NewString(), wh.Name, wh.URL, formatter.ContentType(),
			payload, len(d.queue.backoff), sent.Error)
		result.Queued = true
		return result
	}

	d.metrics.RecordNotification("webhook", sent.Error)
	if sent.Error != nil {
		logging.WarnContext(ctx, "webhook delivery failed",
			logging.KeyWebhook, wh.Name,
			logging.KeyStatus, sent.StatusCode,
			logging.KeyError, sent.Error)
	}
	return result
}

// recordDelivery stamps the webhook's last-used fields; failures are only logged.
func (d *Dispatcher) recordDelivery(ctx context.Context, name string, deliveryErr error) {
	if err := d.webhooks.RecordDelivery(ctx, name, deliveryErr); err != nil {
		logging.DebugContext(ctx, "failed to record webhook delivery",
			logging.KeyWebhook, name, logging.KeyError, err)
	}
}

// SendToSingle sends n to one webhook by name, enabled or not.
func (d *Dispatcher) SendToSingle(ctx context.Context, n *model.Notification, webhookName string) DispatchResult {
	wh, err := d.webhooks.Get(ctx, webhookName)
	if err != nil {
		return DispatchResult{
			WebhookName: webhookName,
			Error:       fmt.Errorf("webhook not found: %w", err),
		}
	}
	return d.sendToWebhook(ctx, n, wh)
}

// TestWebhook sends a test notification to a specific webhook.
func (d *Dispatcher) TestWebhook(ctx context.Context, webhookName string) DispatchResult {
	n := model.NewNotification(
		model.NotifyTest,
		"Couponvault Test",
		"This is a test notification from Couponvault. If you see this, your webhook is configured correctly!",
	).WithField("Webhook", webhookName).WithField("Time", time.Now().Format("3:04 PM"))

	return d.SendToSingle(ctx, n, webhookName)
}

// CountEnabledWebhooks returns the number of enabled webhooks, 0 on failure.
func (d *Dispatcher) CountEnabledWebhooks(ctx context.Context) int {
	webhooks, err := d.webhooks.ListEnabled(ctx)
	if err != nil {
		return 0
	}
	return len(webhooks)
}
