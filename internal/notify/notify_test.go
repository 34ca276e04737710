package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/storage"
)

func fastClient() *HTTPClient {
	return NewHTTPClientWith(config.HTTPConfig{
		Timeout:     2 * time.Second,
		MaxRetries:  3,
		RetryDelays: []time.Duration{0, time.Millisecond},
	})
}

func setupRepo(t *testing.T) *storage.WebhookRepo {
	t.Helper()
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewWebhookRepo(db)
}

func expiringNotification() *model.Notification {
	return model.NewNotification(model.NotifyExpiringSoon, "Coupon Expiring Soon",
		"Your 10% off coupon for Acme expires in 2 days!").
		WithCoupon("c1").
		WithField("Store", "Acme").
		WithField("Code", "SAVE10")
}

// =============================================================================
// Formatter Tests
// =============================================================================

func TestGetFormatter(t *testing.T) {
	tests := []struct {
		webhookType string
		expected    string
	}{
		{model.WebhookTypeDiscord, "*notify.DiscordFormatter"},
		{model.WebhookTypeSlack, "*notify.SlackFormatter"},
		{model.WebhookTypeTeams, "*notify.TeamsFormatter"},
		{model.WebhookTypeGeneric, "*notify.GenericFormatter"},
		{"unknown", "*notify.GenericFormatter"},
		{"", "*notify.GenericFormatter"},
	}

	for _, tt := range tests {
		t.Run(tt.webhookType, func(t *testing.T) {
			formatter := GetFormatter(tt.webhookType)
			assert.Equal(t, tt.expected, fmt.Sprintf("%T", formatter))
			assert.Equal(t, "application/json", formatter.ContentType())
		})
	}
}

func TestDiscordFormatter(t *testing.T) {
	payload, err := (&DiscordFormatter{}).Format(expiringNotification())
	require.NoError(t, err)

	var got discordPayload
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, "Coupon Expiring Soon", embed.Title)
	assert.Equal(t, model.ColorWarning, embed.Color)
	assert.Equal(t, "Couponvault", embed.Footer.Text)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "Code", embed.Fields[0].Name)
	assert.Equal(t, "Store", embed.Fields[1].Name)
}

func TestSlackFormatter(t *testing.T) {
	n := expiringNotification()
	n.Message = "Acme <b>deal</b> & more"

	payload, err := (&SlackFormatter{}).Format(n)
	require.NoError(t, err)

	var got slackPayload
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Len(t, got.Blocks, 4)
	assert.Equal(t, "Coupon Expiring Soon", got.Blocks[0].Text.Text)
	assert.Equal(t, "Acme &lt;b&gt;deal&lt;/b&gt; &amp; more", got.Blocks[1].Text.Text)
	assert.Len(t, got.Blocks[2].Fields, 2)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "#FEE75C", got.Attachments[0].Color)
}

func TestTeamsFormatter(t *testing.T) {
	payload, err := (&TeamsFormatter{}).Format(expiringNotification())
	require.NoError(t, err)

	var got teamsPayload
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "MessageCard", got.Type)
	assert.Equal(t, "FEE75C", got.ThemeColor)
	require.Len(t, got.Sections, 1)
	assert.Len(t, got.Sections[0].Facts, 2)
}

func TestGenericFormatter(t *testing.T) {
	t.Run("default_json", func(t *testing.T) {
		payload, err := NewGenericFormatter("").Format(expiringNotification())
		require.NoError(t, err)

		var got genericPayload
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, "expiring_soon", got.Type)
		assert.Equal(t, "c1", got.CouponID)
		assert.Equal(t, "SAVE10", got.Fields["Code"])
	})

	t.Run("template", func(t *testing.T) {
		f := NewGenericFormatter(`{"text": "{{.Title}}: {{.Message}} ({{.CouponID}})"}`)
		payload, err := f.Format(expiringNotification())
		require.NoError(t, err)
		assert.Equal(t,
			`{"text": "Coupon Expiring Soon: Your 10% off coupon for Acme expires in 2 days! (c1)"}`,
			string(payload))
	})

	t.Run("invalid_template", func(t *testing.T) {
		payload, err := NewGenericFormatter("{{ invalid").Format(expiringNotification())
		assert.Error(t, err)
		assert.Nil(t, payload)
		assert.Error(t, ValidateTemplate("{{ invalid"))
		assert.NoError(t, ValidateTemplate("{{.Title}}"))
	})
}

func TestSlackEscape(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"AT&T", "AT&amp;T"},
		{"a < b > c", "a &lt; b &gt; c"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, slackEscape(tt.input))
	}
}

// =============================================================================
// HTTPClient Tests
// =============================================================================

func TestHTTPClientSend(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotUA, gotCT string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotCT = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"ok":true}`, string(body))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		res := fastClient().Send(context.Background(), srv.URL, "application/json", []byte(`{"ok":true}`))
		require.NoError(t, res.Error)
		assert.Equal(t, http.StatusNoContent, res.StatusCode)
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, userAgent, gotUA)
		assert.Equal(t, "application/json", gotCT)
	})

	t.Run("retries_server_errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		res := fastClient().Send(context.Background(), srv.URL, "application/json", nil)
		require.NoError(t, res.Error)
		assert.Equal(t, 3, res.Attempts)
	})

	t.Run("does_not_retry_client_errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "bad payload", http.StatusBadRequest)
		}))
		defer srv.Close()

		res := fastClient().Send(context.Background(), srv.URL, "application/json", nil)
		require.Error(t, res.Error)
		assert.Contains(t, res.Error.Error(), "client error (HTTP 400)")
		assert.False(t, res.Retryable())
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("rate_limited_exhausts_attempts", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		res := fastClient().Send(context.Background(), srv.URL, "application/json", nil)
		require.Error(t, res.Error)
		assert.Equal(t, 3, res.Attempts)
		assert.True(t, res.Retryable())
	})

	t.Run("cancelled_during_backoff", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewHTTPClientWith(config.HTTPConfig{
			Timeout:     time.Second,
			MaxRetries:  3,
			RetryDelays: []time.Duration{0, time.Hour},
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		res := client.Send(ctx, srv.URL, "application/json", nil)
		assert.ErrorIs(t, res.Error, context.DeadlineExceeded)
		assert.Equal(t, 2, res.Attempts)
	})
}

func TestHTTPClientDelay(t *testing.T) {
	c := NewHTTPClientWith(config.HTTPConfig{MaxRetries: 3, RetryDelays: []time.Duration{0, 5 * time.Second}})
	assert.Equal(t, time.Duration(0), c.delay(0))
	assert.Equal(t, 5*time.Second, c.delay(1))
	assert.Equal(t, 5*time.Second, c.delay(7))

	c = NewHTTPClientWith(config.HTTPConfig{MaxRetries: 0})
	assert.Equal(t, 1, c.attempts)
	assert.Equal(t, time.Duration(0), c.delay(3))
}

// =============================================================================
// RetryQueue Tests
// =============================================================================

func testQueue(client *HTTPClient) *RetryQueue {
	return NewRetryQueueWith(client, metrics.New(), config.RetryQueueConfig{
		CheckInterval:   10 * time.Millisecond,
		BackoffSchedule: []time.Duration{0, time.Millisecond},
	})
}

func TestRetryQueueEnqueue(t *testing.T) {
	q := testQueue(fastClient())
	q.Enqueue("id-1", "hook", "http://localhost/test", "application/json", []byte(`{}`), 3)
	q.EnqueueWithError("id-2", "hook", "http://localhost/test", "application/json", []byte(`{}`), 3, fmt.Errorf("boom"))

	assert.Equal(t, 2, q.Pending())
	stats := q.Stats()
	assert.Equal(t, 2, stats.TotalQueued)
	assert.Zero(t, stats.TotalSent)

	q.Clear()
	assert.Zero(t, q.Pending())
}

func TestRetryQueueDelivers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := testQueue(fastClient())
	q.Enqueue("id-1", "hook", srv.URL, "application/json", []byte(`{}`), 3)
	q.processQueue(context.Background(), time.Now().Add(time.Second))

	assert.Zero(t, q.Pending())
	assert.Equal(t, 1, q.Stats().TotalSent)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryQueueGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	single := NewHTTPClientWith(config.HTTPConfig{Timeout: time.Second, MaxRetries: 1})
	q := testQueue(single)
	q.Enqueue("id-1", "hook", srv.URL, "application/json", []byte(`{}`), 2)

	q.processQueue(context.Background(), time.Now().Add(time.Second))
	require.Equal(t, 1, q.Pending())
	failure := q.queue[0].Failure()
	assert.True(t, failure.CanRetry)
	assert.Equal(t, 1, failure.RetryCount)
	assert.Contains(t, failure.Error(), "attempt 1/2")
	assert.True(t, errors.IsRecoverableError(failure))

	q.processQueue(context.Background(), time.Now().Add(time.Minute))
	assert.Zero(t, q.Pending())
	assert.Equal(t, 1, q.Stats().TotalFailed)
	assert.False(t, failure.CanRetry)
}

func TestRetryQueueStartStop(t *testing.T) {
	q := testQueue(fastClient())

	q.Start(context.Background())
	q.Start(context.Background())
	q.Stop()
	q.Stop()
}

func TestRetryQueueBackoff(t *testing.T) {
	q := NewRetryQueueWith(fastClient(), metrics.New(), config.DefaultRuntimeConfig().RetryQueue)
	assert.Equal(t, 5*time.Second, q.backoffFor(0))
	assert.Equal(t, 30*time.Second, q.backoffFor(1))
	assert.Equal(t, 15*time.Minute, q.backoffFor(4))
	assert.Equal(t, 15*time.Minute, q.backoffFor(100))
}

// =============================================================================
// Dispatcher Tests
// =============================================================================

func TestDispatcherFallsBackWithoutWebhooks(t *testing.T) {
	repo := setupRepo(t)

	var got *model.Notification
	d := NewDispatcher(repo,
		WithHTTPClient(fastClient()),
		WithMetrics(metrics.New()),
		WithFallback(SinkFunc(func(ctx context.Context, n *model.Notification) error {
			got = n
			return nil
		})))

	n := expiringNotification()
	require.NoError(t, d.Send(context.Background(), n))
	assert.Same(t, n, got)
	assert.Zero(t, d.CountEnabledWebhooks(context.Background()))
}

func TestDispatcherSendsToEnabledWebhooks(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, repo.Create(ctx, model.NewWebhook("one", model.WebhookTypeDiscord, srv.URL)))
	require.NoError(t, repo.Create(ctx, model.NewWebhook("two", model.WebhookTypeGeneric, srv.URL)))
	off := model.NewWebhook("off", model.WebhookTypeSlack, srv.URL)
	off.Enabled = false
	require.NoError(t, repo.Create(ctx, off))

	fallbackUsed := false
	d := NewDispatcher(repo,
		WithHTTPClient(fastClient()),
		WithMetrics(metrics.New()),
		WithFallback(SinkFunc(func(context.Context, *model.Notification) error {
			fallbackUsed = true
			return nil
		})))

	require.NoError(t, d.Send(ctx, expiringNotification()))
	assert.Equal(t, int32(2), hits.Load())
	assert.False(t, fallbackUsed)
	assert.Equal(t, 2, d.CountEnabledWebhooks(ctx))

	wh, err := repo.Get(ctx, "one")
	require.NoError(t, err)
	assert.False(t, wh.LastUsed.IsZero())
	assert.Empty(t, wh.LastError)
}

func TestDispatcherReportsFailures(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	require.NoError(t, repo.Create(ctx, model.NewWebhook("denied", model.WebhookTypeGeneric, srv.URL)))

	d := NewDispatcher(repo, WithHTTPClient(fastClient()), WithMetrics(metrics.New()))
	err := d.Send(ctx, expiringNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")

	wh, err := repo.Get(ctx, "denied")
	require.NoError(t, err)
	assert.Contains(t, wh.LastError, "HTTP 403")
}

func TestDispatcherQueuesRetryableFailures(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	require.NoError(t, repo.Create(ctx, model.NewWebhook("flaky", model.WebhookTypeGeneric, srv.URL)))

	client := NewHTTPClientWith(config.HTTPConfig{Timeout: time.Second, MaxRetries: 1})
	q := testQueue(client)
	d := NewDispatcher(repo, WithHTTPClient(client), WithRetryQueue(q), WithMetrics(metrics.New()))

	results, err := d.SendNotification(ctx, expiringNotification())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Queued)
	assert.Equal(t, 1, q.Pending())

	assert.NoError(t, d.Send(ctx, expiringNotification()))
}

func TestDispatcherSendToSingleNotFound(t *testing.T) {
	d := NewDispatcher(setupRepo(t), WithHTTPClient(fastClient()), WithMetrics(metrics.New()))

	result := d.TestWebhook(context.Background(), "nonexistent")
	assert.False(t, result.Success)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "webhook not found")
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, LogSink{}.Send(context.Background(), expiringNotification()))
}
