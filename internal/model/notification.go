package model

import (
	"time"
)

// NotificationType defines the kind of notification.
type NotificationType string

// Notification types.
const (
	NotifyExpiringSoon NotificationType = "expiring_soon"
	NotifyExpired      NotificationType = "expired"
	NotifyTest         NotificationType = "test"
)

// Notification is a user-visible alert produced by the expiry check.
type Notification struct {
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	CouponID  string            `json:"coupon_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Color     int               `json:"color,omitempty"`
}

// NewNotification creates a notification stamped with the current time.
func NewNotification(t NotificationType, title, message string) *Notification {
	return &Notification{
		Type:      t,
		Title:     title,
		Message:   message,
		Fields:    make(map[string]string),
		Timestamp: time.Now(),
	}
}

// WithField adds a field to the notification.
func (n *Notification) WithField(key, value string) *Notification {
	if n.Fields == nil {
		n.Fields = make(map[string]string)
	}
	n.Fields[key] = value
	return n
}

// WithColor sets the embed color.
func (n *Notification) WithColor(color int) *Notification {
	n.Color = color
	return n
}

// WithCoupon records the coupon the notification is about.
func (n *Notification) WithCoupon(id string) *Notification {
	n.CouponID = id
	return n
}

// Notification colors (Discord-compatible hex values).
const (
	ColorSuccess = 0x57F287
	ColorWarning = 0xFEE75C
	ColorInfo    = 0x5865F2
	ColorError   = 0xED4245
)

// DefaultColorForType returns the default color for a notification type.
func DefaultColorForType(t NotificationType) int {
	switch t {
	case NotifyExpiringSoon:
		return ColorWarning
	case NotifyExpired:
		return ColorError
	case NotifyTest:
		return ColorSuccess
	default:
		return ColorInfo
	}
}

// TypeLabel returns a human-readable label for the notification type.
func (n *Notification) TypeLabel() string {
	switch n.Type {
	case NotifyExpiringSoon:
		return "Expiring Soon"
	case NotifyExpired:
		return "Expired"
	case NotifyTest:
		return "Test Notification"
	default:
		return "Notification"
	}
}
