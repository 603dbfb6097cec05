package billing

import "time"

// Entitlement statuses exposed to callers after normalizing the provider's
// subscription vocabulary. "canceled" with IsActive=true means the
// subscription will lapse at period end but is still paid for.
const (
	EntitlementActive   = "active"
	EntitlementTrialing = "trialing"
	EntitlementCanceled = "canceled"
	EntitlementInactive = "inactive"
)

// Entitlement is the normalized answer to "may this account use the
// dashboard right now".
type Entitlement struct {
	Status            string     `json:"status"`
	IsActive          bool       `json:"isActive"`
	EndDate           *time.Time `json:"endDate,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  *time.Time `json:"currentPeriodEnd,omitempty"`
	TrialEnd          *time.Time `json:"trialEnd,omitempty"`
}

// ProviderSubscription is the provider-agnostic snapshot of a customer's most
// recent subscription as returned by a live provider query.
type ProviderSubscription struct {
	ID                string
	PriceID           string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
	TrialEnd          *time.Time
}

// SubscriptionEvent is the normalized payload of a provider subscription
// webhook event, keyed by the provider's customer reference. OccurredAt is
// the provider-side event timestamp used for the stale-event guard.
type SubscriptionEvent struct {
	CustomerID        string
	SubscriptionID    string
	PriceID           string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
	OccurredAt        time.Time
}
