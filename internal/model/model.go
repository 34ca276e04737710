// Package model defines the domain models for Couponvault.
package model

// Collection names in the local database.
const (
	CollectionCoupons     = "coupons"
	CollectionStores      = "stores"
	CollectionPreferences = "preferences"
	CollectionWebhooks    = "webhooks"
)

// Collections lists the collections provisioned on first open.
func Collections() []string {
	return []string{
		CollectionCoupons,
		CollectionStores,
		CollectionPreferences,
		CollectionWebhooks,
	}
}

// ValidationError reports a record that cannot be persisted as given.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
