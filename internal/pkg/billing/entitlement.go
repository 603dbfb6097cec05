package billing

import (
	"strings"

	"github.com/tablecarte/tablecarte/app/models"
)

// inactiveEntitlement is what unlinked accounts and lapsed subscriptions get.
func inactiveEntitlement() *Entitlement {
	return &Entitlement{Status: EntitlementInactive, IsActive: false}
}

// Normalize maps a provider subscription snapshot onto the entitlement model.
//
//	trialing                          -> trialing,  entitled
//	active + cancel_at_period_end     -> canceled,  entitled until period end
//	active                            -> active,    entitled
//	everything else (or nil)          -> inactive,  not entitled
func Normalize(sub *ProviderSubscription) *Entitlement {
	if sub == nil {
		return inactiveEntitlement()
	}

	ent := &Entitlement{
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		TrialEnd:          sub.TrialEnd,
	}

	switch strings.ToLower(strings.TrimSpace(sub.Status)) {
	case models.SubscriptionStatusTrialing:
		ent.Status = EntitlementTrialing
		ent.IsActive = true
		ent.EndDate = sub.TrialEnd
	case models.SubscriptionStatusActive:
		ent.IsActive = true
		ent.EndDate = sub.CurrentPeriodEnd
		if sub.CancelAtPeriodEnd {
			ent.Status = EntitlementCanceled
		} else {
			ent.Status = EntitlementActive
		}
	default:
		ent.Status = EntitlementInactive
		ent.IsActive = false
	}

	return ent
}

// isRelevantSubscriptionStatus reports whether a provider status belongs to
// the documented vocabulary. Unknown values are kept verbatim in the mirror
// but never entitle.
func isRelevantSubscriptionStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusTrialing,
		models.SubscriptionStatusActive,
		models.SubscriptionStatusCanceled,
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusIncomplete,
		models.SubscriptionStatusIncompleteExpired,
		models.SubscriptionStatusUnpaid:
		return true
	default:
		return false
	}
}
