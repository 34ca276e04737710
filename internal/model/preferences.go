package model

import (
	"fmt"
	"time"
)

// KeyNotificationPreferences is the fixed key of the preferences singleton.
const KeyNotificationPreferences = "notificationPreferences"

// Default notification preferences.
const (
	DefaultDaysBeforeExpiry = 3
	DefaultNotificationTime = "09:00"
	MaxDaysBeforeExpiry     = 365
)

// Store is a directory entry derived from the coupons that reference it.
type Store struct {
	Name string `json:"name"`
}

// NotificationPreferences configures the daily expiry check.
type NotificationPreferences struct {
	Key              string `json:"key" yaml:"-"`
	DaysBeforeExpiry int    `json:"daysBeforeExpiry" yaml:"daysBeforeExpiry"`
	NotificationTime string `json:"notificationTime" yaml:"notificationTime"`
}

// DefaultNotificationPreferences returns the preferences used before any are saved.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Key:              KeyNotificationPreferences,
		DaysBeforeExpiry: DefaultDaysBeforeExpiry,
		NotificationTime: DefaultNotificationTime,
	}
}

// Validate checks the lead days and the HH:MM time of day.
func (p *NotificationPreferences) Validate() error {
	if p.DaysBeforeExpiry < 0 || p.DaysBeforeExpiry > MaxDaysBeforeExpiry {
		return &ValidationError{
			Field:   "daysBeforeExpiry",
			Message: fmt.Sprintf("must be between 0 and %d", MaxDaysBeforeExpiry),
		}
	}
	if _, err := time.Parse("15:04", p.NotificationTime); err != nil {
		return &ValidationError{Field: "notificationTime", Message: "must be HH:MM (24h)"}
	}
	return nil
}
