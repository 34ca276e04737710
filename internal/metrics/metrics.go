// Package metrics holds the Prometheus collectors shared by the scheduler,
// the notification dispatcher and the HTTP proxy, plus a JSON snapshot used
// by `couponvault daemon status`.
package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "couponvault"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics tracks operational counters. The zero value is not usable; call New.
type Metrics struct {
	registry *prometheus.Registry

	expiryChecks      prometheus.Counter
	notifications     *prometheus.CounterVec
	webhookDuration   prometheus.Histogram
	retryQueueSize    prometheus.Gauge
	extractions       *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	couponsPurged     prometheus.Counter
	lastCheckUnixTime prometheus.Gauge

	// Snapshot state mirrors the counters for the status file.
	notificationsSent   atomic.Int64
	notificationsFailed atomic.Int64
	checksRun           atomic.Int64
	errorsTotal         atomic.Int64

	mu                 sync.RWMutex
	webhookLatencyMs   int64
	lastNotificationAt time.Time
	lastCheck          time.Time
	lastError          string
	lastErrorAt        time.Time
	errorsByCategory   map[string]int64
}

// New creates a Metrics with its own registry, including Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry:         prometheus.NewRegistry(),
		errorsByCategory: make(map[string]int64),

		expiryChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_checks_total",
			Help:      "Daily expiry checks run.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications delivered, by sink and outcome.",
		}, []string{"sink", "outcome"}),
		webhookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Webhook delivery latency including retries.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		retryQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retry_queue_size",
			Help:      "Webhook payloads waiting for another attempt.",
		}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Image extraction requests, by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		couponsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupons_purged_total",
			Help:      "Expired coupons deleted.",
		}),
		lastCheckUnixTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_expiry_check_timestamp_seconds",
			Help:      "Unix time of the last expiry check.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.expiryChecks,
		m.notifications,
		m.webhookDuration,
		m.retryQueueSize,
		m.extractions,
		m.httpRequests,
		m.httpDuration,
		m.couponsPurged,
		m.lastCheckUnixTime,
	)
	return m
}

// Default is the process-wide instance.
var Default = New()

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordCheck records one expiry check cycle.
func (m *Metrics) RecordCheck() {
	now := time.Now()
	m.expiryChecks.Inc()
	m.lastCheckUnixTime.Set(float64(now.Unix()))
	m.checksRun.Add(1)

	m.mu.Lock()
	m.lastCheck = now
	m.mu.Unlock()
}

// RecordNotification records a delivery through sink.
func (m *Metrics) RecordNotification(sink string, err error) {
	if err != nil {
		m.notifications.WithLabelValues(sink, OutcomeFailure).Inc()
		m.notificationsFailed.Add(1)
		m.RecordError("notification", err)
		return
	}
	m.notifications.WithLabelValues(sink, OutcomeSuccess).Inc()
	m.notificationsSent.Add(1)

	m.mu.Lock()
	m.lastNotificationAt = time.Now()
	m.mu.Unlock()
}

// ObserveWebhook records a webhook round trip.
func (m *Metrics) ObserveWebhook(latency time.Duration) {
	m.webhookDuration.Observe(latency.Seconds())

	m.mu.Lock()
	m.webhookLatencyMs = latency.Milliseconds()
	m.mu.Unlock()
}

// SetRetryQueueSize reports the retry queue length.
func (m *Metrics) SetRetryQueueSize(n int) {
	m.retryQueueSize.Set(float64(n))
}

// RecordExtraction records an image extraction attempt.
func (m *Metrics) RecordExtraction(err error) {
	if err != nil {
		m.extractions.WithLabelValues(OutcomeFailure).Inc()
		m.RecordError("extraction", err)
		return
	}
	m.extractions.WithLabelValues(OutcomeSuccess).Inc()
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// AddPurged counts coupons removed by the expired-coupon purge.
func (m *Metrics) AddPurged(n int) {
	if n > 0 {
		m.couponsPurged.Add(float64(n))
	}
}

// RecordError records an error under category.
func (m *Metrics) RecordError(category string, err error) {
	m.errorsTotal.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lastError = err.Error()
	}
	m.lastErrorAt = time.Now()
	if category != "" {
		m.errorsByCategory[category]++
	}
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	NotificationsSentTotal   int64            `json:"notifications_sent_total"`
	NotificationsFailedTotal int64            `json:"notifications_failed_total"`
	ChecksRunTotal           int64            `json:"checks_run_total"`
	ErrorsTotal              int64            `json:"errors_total"`
	WebhookLatencyMs         int64            `json:"webhook_latency_ms"`
	LastNotificationAt       *time.Time       `json:"last_notification_at,omitempty"`
	LastCheck                *time.Time       `json:"last_check,omitempty"`
	LastError                string           `json:"last_error,omitempty"`
	LastErrorAt              *time.Time       `json:"last_error_at,omitempty"`
	ErrorsByCategory         map[string]int64 `json:"errors_by_category,omitempty"`
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		NotificationsSentTotal:   m.notificationsSent.Load(),
		NotificationsFailedTotal: m.notificationsFailed.Load(),
		ChecksRunTotal:           m.checksRun.Load(),
		ErrorsTotal:              m.errorsTotal.Load(),
		WebhookLatencyMs:         m.webhookLatencyMs,
		LastError:                m.lastError,
		ErrorsByCategory:         make(map[string]int64, len(m.errorsByCategory)),
	}
	if !m.lastNotificationAt.IsZero() {
		t := m.lastNotificationAt
		snap.LastNotificationAt = &t
	}
	if !m.lastCheck.IsZero() {
		t := m.lastCheck
		snap.LastCheck = &t
	}
	if !m.lastErrorAt.IsZero() {
		t := m.lastErrorAt
		snap.LastErrorAt = &t
	}
	for k, v := range m.errorsByCategory {
		snap.ErrorsByCategory[k] = v
	}
	return snap
}

// JSON returns the snapshot as indented JSON.
func (m *Metrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m.Snapshot(), "", "  ")
}
