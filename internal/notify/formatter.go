// Package notify delivers expiry notifications: webhook payload formatters,
// a retrying HTTP client, a background retry queue and the Sink abstraction
// the scheduler sends through.
package notify

import (
	"context"
	"log/slog"
	"sort"

	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/model"
)

// brand is shown in payload footers.
const brand = "Couponvault"

// Sink receives notifications.
type Sink interface {
	Send(ctx context.Context, n *model.Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n *model.Notification) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, n *model.Notification) error {
	return f(ctx, n)
}

// LogSink writes notifications to the structured log. It is the fallback
// when no webhook is enabled.
type LogSink struct {
	Logger *slog.Logger // nil uses the context logger
}

// Send logs n at INFO level.
func (s LogSink) Send(ctx context.Context, n *model.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.LoggerFromContext(ctx)
	}
	logger.InfoContext(ctx, n.Title,
		"message", n.Message,
		"type", string(n.Type),
		logging.KeyCouponID, n.CouponID)
	return nil
}

// Formatter formats notifications for a specific webhook type.
type Formatter interface {
	// Format converts a notification into the webhook-specific payload.
	Format(n *model.Notification) ([]byte, error)

	// ContentType returns the HTTP Content-Type for the payload.
	ContentType() string
}

// GetFormatter returns the formatter for a webhook type; unknown types get
// the generic JSON payload.
func GetFormatter(webhookType string) Formatter {
	switch webhookType {
	case model.WebhookTypeDiscord:
		return &DiscordFormatter{}
	case model.WebhookTypeSlack:
		return &SlackFormatter{}
	case model.WebhookTypeTeams:
		return &TeamsFormatter{}
	default:
		return &GenericFormatter{}
	}
}

// formatterFor honors a generic webhook's custom template.
func formatterFor(wh *model.Webhook) Formatter {
	if wh.Type == model.WebhookTypeGeneric && wh.Template != "" {
		return NewGenericFormatter(wh.Template)
	}
	return GetFormatter(wh.Type)
}

func colorOf(n *model.Notification) int {
	if n.Color != 0 {
		return n.Color
	}
	return model.DefaultColorForType(n.Type)
}

// fieldKeys returns the notification's field names in a stable order.
func fieldKeys(n *model.Notification) []string {
	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
