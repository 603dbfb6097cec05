package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/tablecarte/tablecarte/app/models"
	"gorm.io/gorm"
)

var (
	// ErrStaleEvent marks a webhook event older than the mirror's last
	// applied event. Stale events are acknowledged but never applied.
	ErrStaleEvent = errors.New("billing: event older than last applied event")

	// ErrUnknownCustomer marks an event for a customer reference no local
	// account is linked to.
	ErrUnknownCustomer = errors.New("billing: no account linked to customer")

	// ErrCustomerConflict marks an attempt to bind a second customer id to
	// an account that is already linked.
	ErrCustomerConflict = errors.New("billing: account already linked to a different customer")
)

// Service maintains the local billing mirror. All subscription-state writes
// go through here and are driven exclusively by provider events.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// EnsureAccount creates the empty mirror row for a freshly registered user.
func (s *Service) EnsureAccount(ctx context.Context, userID uint) (*models.BillingAccount, error) {
	_ = ctx
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	return s.repo.EnsureAccount(userID)
}

// GetAccount returns the mirror row for a user, if any.
func (s *Service) GetAccount(ctx context.Context, userID uint) (*models.BillingAccount, error) {
	_ = ctx
	return s.repo.GetAccountByUserID(userID)
}

// LinkCustomer binds a provider customer reference to a user's mirror row.
// The linkage is set at most once: re-linking the same customer is a no-op,
// a different customer is a conflict.
func (s *Service) LinkCustomer(ctx context.Context, userID uint, customerID string) (*models.BillingAccount, error) {
	_ = ctx
	customerID = strings.TrimSpace(customerID)
	if userID == 0 || customerID == "" {
		return nil, errors.New("user_id and customer_id are required")
	}

	account, err := s.repo.EnsureAccount(userID)
	if err != nil {
		return nil, err
	}
	if account.ExternalCustomerID != "" {
		if account.ExternalCustomerID == customerID {
			return account, nil
		}
		return nil, ErrCustomerConflict
	}

	account.ExternalCustomerID = customerID
	if err := s.repo.SaveAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// ApplySubscriptionEvent overwrites the mirror's subscription fields with the
// event's self-contained state. The write is a pure upsert keyed by the
// provider customer reference, so redelivery is safe. Events older than the
// stored last-applied marker return ErrStaleEvent and leave the mirror
// untouched.
func (s *Service) ApplySubscriptionEvent(ctx context.Context, ev SubscriptionEvent) (*models.BillingAccount, error) {
	_ = ctx
	if strings.TrimSpace(ev.CustomerID) == "" {
		return nil, errors.New("customer_id is required")
	}

	account, err := s.repo.GetAccountByCustomerID(ev.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownCustomer
		}
		return nil, err
	}

	if account.LastEventAt != nil && ev.OccurredAt.Before(*account.LastEventAt) {
		return account, ErrStaleEvent
	}

	status := strings.ToLower(strings.TrimSpace(ev.Status))
	if status == "" {
		status = models.SubscriptionStatusNone
	} else if !isRelevantSubscriptionStatus(status) {
		// Unknown vocabulary is mirrored verbatim; it never entitles.
		log.Printf("billing: unknown subscription status %q for customer %s", status, ev.CustomerID)
	}

	account.SubscriptionStatus = status
	account.SubscriptionID = strings.TrimSpace(ev.SubscriptionID)
	account.SubscriptionPriceID = strings.TrimSpace(ev.PriceID)
	account.CurrentPeriodEnd = ev.CurrentPeriodEnd
	account.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	occurred := ev.OccurredAt
	account.LastEventAt = &occurred

	if err := s.repo.SaveAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// ApplySubscriptionDeleted marks the mirrored subscription as canceled and
// clears the period fields, per the provider's deletion semantics.
func (s *Service) ApplySubscriptionDeleted(ctx context.Context, customerID string, occurredAt time.Time) (*models.BillingAccount, error) {
	_ = ctx
	account, err := s.repo.GetAccountByCustomerID(strings.TrimSpace(customerID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownCustomer
		}
		return nil, err
	}

	if account.LastEventAt != nil && occurredAt.Before(*account.LastEventAt) {
		return account, ErrStaleEvent
	}

	account.SubscriptionStatus = models.SubscriptionStatusCanceled
	account.CancelAtPeriodEnd = false
	account.CurrentPeriodEnd = nil
	account.LastEventAt = &occurredAt

	if err := s.repo.SaveAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// RecordWebhookEvent persists webhook payloads idempotently. The bool result
// reports whether the event is new; redeliveries return false.
func (s *Service) RecordWebhookEvent(ctx context.Context, eventID, eventType, payloadJSON string) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(payloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(eventType),
		PayloadJSON:     payloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
