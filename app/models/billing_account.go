package models

import "time"

// Subscription status vocabulary mirrored from the billing provider.
const (
	SubscriptionStatusNone              = "none"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusActive            = "active"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusUnpaid            = "unpaid"
)

// BillingAccount is the local mirror of a user's billing-provider state,
// keyed one-to-one by user. ExternalCustomerID is set at most once (on first
// checkout) and never reassigned. All subscription fields are written only in
// response to provider webhook events; LastEventAt records the provider
// timestamp of the newest applied event so stale redeliveries can be dropped.
type BillingAccount struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UserID              uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	ExternalCustomerID  string     `gorm:"type:varchar(191);not null;default:'';index" json:"external_customer_id"`
	SubscriptionStatus  string     `gorm:"type:varchar(32);not null;default:'none';index" json:"subscription_status"`
	SubscriptionID      string     `gorm:"type:varchar(191);not null;default:''" json:"subscription_id"`
	SubscriptionPriceID string     `gorm:"type:varchar(191);not null;default:''" json:"subscription_price_id"`
	CurrentPeriodEnd    *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd   bool       `gorm:"default:false" json:"cancel_at_period_end"`
	LastEventAt         *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsLinked reports whether the account has been bound to a provider customer.
func (a *BillingAccount) IsLinked() bool {
	return a.ExternalCustomerID != ""
}
