package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/metrics"
)

// QueuedNotification is a formatted webhook payload waiting for another attempt.
type QueuedNotification struct {
	ID          string          `json:"id"`
	WebhookName string          `json:"webhook_name"`
	URL         string          `json:"url"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
	CreatedAt   time.Time       `json:"created_at"`
	NextRetry   time.Time       `json:"next_retry"`
	Attempts    int             `json:"attempts"`
	MaxRetries  int             `json:"max_retries"`
	LastError   string          `json:"last_error,omitempty"`

	failure *errors.RecoverableError
}

// Failure returns the delivery failure with its retry budget.
func (n *QueuedNotification) Failure() *errors.RecoverableError {
	return n.failure
}

// RetryQueue re-sends failed webhook payloads on a backoff schedule.
// Queued payloads live in memory and are lost when the process exits.
type RetryQueue struct {
	mu       sync.RWMutex
	queue    []*QueuedNotification
	client   *HTTPClient
	metrics  *metrics.Metrics
	backoff  []time.Duration
	interval time.Duration

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	totalQueued int
	totalSent   int
	totalFailed int
}

// NewRetryQueue creates a queue using config.Global.RetryQueue.
func NewRetryQueue(client *HTTPClient, m *metrics.Metrics) *RetryQueue {
	return NewRetryQueueWith(client, m, config.Global.RetryQueue)
}

// NewRetryQueueWith creates a queue with an explicit schedule.
func NewRetryQueueWith(client *HTTPClient, m *metrics.Metrics, cfg config.RetryQueueConfig) *RetryQueue {
	if m == nil {
		m = metrics.Default
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	backoff := cfg.BackoffSchedule
	if len(backoff) == 0 {
		backoff = []time.Duration{cfg.CheckInterval}
	}
	return &RetryQueue{
		client:   client,
		metrics:  m,
		backoff:  backoff,
		interval: cfg.CheckInterval,
	}
}

// Start processes the queue in the background until ctx is done or Stop is called.
func (q *RetryQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.processLoop(ctx)
}

// Stop halts processing and waits for the loop to exit.
func (q *RetryQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	q.wg.Wait()
}

// Enqueue adds a payload for later delivery.
func (q *RetryQueue) Enqueue(id, webhookName, url, contentType string, body []byte, maxRetries int) {
	q.EnqueueWithError(id, webhookName, url, contentType, body, maxRetries, nil)
}

// EnqueueWithError adds a payload and remembers why the last attempt failed.
func (q *RetryQueue) EnqueueWithError(id, webhookName, url, contentType string, body []byte, maxRetries int, err error) {
	now := time.Now()
	n := &QueuedNotification{
		ID:          id,
		WebhookName: webhookName,
		URL:         url,
		ContentType: contentType,
		Body:        body,
		CreatedAt:   now,
		NextRetry:   now.Add(q.backoffFor(0)),
		MaxRetries:  maxRetries,
		failure:     errors.NewRecoverableError("webhook "+webhookName+" delivery failed", err, maxRetries),
	}
	if err != nil {
		n.LastError = err.Error()
	}

	q.mu.Lock()
	q.queue = append(q.queue, n)
	q.totalQueued++
	size := len(q.queue)
	q.mu.Unlock()

	q.metrics.SetRetryQueueSize(size)
	logging.Info("notification queued for retry",
		logging.KeyWebhook, webhookName,
		"queue_size", size,
		logging.KeyError, err)
}

func (q *RetryQueue) processLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.processQueue(ctx, time.Now())
		}
	}
}

// processQueue sends every payload due at now.
func (q *RetryQueue) processQueue(ctx context.Context, now time.Time) {
	q.mu.Lock()
	var ready, remaining []*QueuedNotification
	for _, n := range q.queue {
		if !n.NextRetry.After(now) {
			ready = append(ready, n)
		} else {
			remaining = append(remaining, n)
		}
	}
	q.queue = remaining
	q.mu.Unlock()

	for _, n := range ready {
		if ctx.Err() != nil {
			q.requeue(n)
			continue
		}
		q.processNotification(ctx, n)
	}

	q.metrics.SetRetryQueueSize(q.Pending())
}

func (q *RetryQueue) processNotification(ctx context.Context, n *QueuedNotification) {
	n.Attempts++
	logging.Debug("retrying notification",
		logging.KeyWebhook, n.WebhookName,
		"attempt", n.Attempts,
		"max_retries", n.MaxRetries)

	result := q.client.Send(ctx, n.URL, n.ContentType, n.Body)
	q.metrics.ObserveWebhook(result.Duration)

	if result.Error == nil {
		q.mu.Lock()
		q.totalSent++
		q.mu.Unlock()
		q.metrics.RecordNotification("retry", nil)

		logging.Info("queued notification sent",
			logging.KeyWebhook, n.WebhookName,
			"attempts", n.Attempts,
			logging.KeyDuration, result.Duration.Milliseconds())
		return
	}

	n.LastError = result.Error.Error()
	n.failure.Cause = result.Error
	n.failure.IncrementRetry()
	if !n.failure.CanRetry || !result.Retryable() {
		q.mu.Lock()
		q.totalFailed++
		q.mu.Unlock()
		q.metrics.RecordNotification("retry", n.failure)

		logging.Warn("notification dropped",
			logging.KeyWebhook, n.WebhookName,
			logging.KeyError, n.failure)
		return
	}

	n.NextRetry = time.Now().Add(q.backoffFor(n.Attempts))
	q.requeue(n)
	logging.Debug("notification re-queued",
		logging.KeyWebhook, n.WebhookName,
		"next_retry", n.NextRetry,
		"attempts", n.Attempts)
}

func (q *RetryQueue) requeue(n *QueuedNotification) {
	q.mu.Lock()
	q.queue = append(q.queue, n)
	q.mu.Unlock()
}

// backoffFor returns the wait before retry number attempt; the last entry repeats.
func (q *RetryQueue) backoffFor(attempt int) time.Duration {
	if attempt >= len(q.backoff) {
		return q.backoff[len(q.backoff)-1]
	}
	return q.backoff[attempt]
}

// QueueStats summarizes queue activity.
type QueueStats struct {
	QueueSize   int `json:"queue_size"`
	TotalQueued int `json:"total_queued"`
	TotalSent   int `json:"total_sent"`
	TotalFailed int `json:"total_failed"`
}

// Stats returns current queue statistics.
func (q *RetryQueue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return QueueStats{
		QueueSize:   len(q.queue),
		TotalQueued: q.totalQueued,
		TotalSent:   q.totalSent,
		TotalFailed: q.totalFailed,
	}
}

// Pending returns the number of queued payloads.
func (q *RetryQueue) Pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.queue)
}

// Clear drops every queued payload.
func (q *RetryQueue) Clear() {
	q.mu.Lock()
	q.queue = nil
	q.mu.Unlock()
	q.metrics.SetRetryQueueSize(0)
}
