package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tablecarte/tablecarte/app/models"
)

// fakeBillingRepo is an in-memory Repository for service and reader tests.
type fakeBillingRepo struct {
	accounts map[uint]*models.BillingAccount
	events   map[string]*models.BillingWebhookEvent
	nextID   uint
	saveErr  error
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{
		accounts: map[uint]*models.BillingAccount{},
		events:   map[string]*models.BillingWebhookEvent{},
	}
}

func (f *fakeBillingRepo) GetAccountByUserID(userID uint) (*models.BillingAccount, error) {
	if a, ok := f.accounts[userID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) GetAccountByCustomerID(customerID string) (*models.BillingAccount, error) {
	if customerID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, a := range f.accounts {
		if a.ExternalCustomerID == customerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) EnsureAccount(userID uint) (*models.BillingAccount, error) {
	if a, ok := f.accounts[userID]; ok {
		cp := *a
		return &cp, nil
	}
	f.nextID++
	a := &models.BillingAccount{
		ID:                 f.nextID,
		UserID:             userID,
		SubscriptionStatus: models.SubscriptionStatusNone,
	}
	f.accounts[userID] = a
	cp := *a
	return &cp, nil
}

func (f *fakeBillingRepo) SaveAccount(account *models.BillingAccount) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *account
	f.accounts[account.UserID] = &cp
	return nil
}

func (f *fakeBillingRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	if stored, ok := f.events[event.ProviderEventID]; ok {
		cp := *stored
		return false, &cp, nil
	}
	f.nextID++
	event.ID = f.nextID
	cp := *event
	f.events[event.ProviderEventID] = &cp
	return true, event, nil
}

func (f *fakeBillingRepo) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	for _, e := range f.events {
		if e.ID == id {
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func linkedAccount(t *testing.T, svc *Service, userID uint, customerID string) {
	t.Helper()
	_, err := svc.EnsureAccount(context.Background(), userID)
	require.NoError(t, err)
	_, err = svc.LinkCustomer(context.Background(), userID, customerID)
	require.NoError(t, err)
}

func TestLinkCustomerIsSetOnce(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := NewService(repo)

	account, err := svc.LinkCustomer(context.Background(), 1, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", account.ExternalCustomerID)

	// Re-linking the same customer is a no-op
	account, err = svc.LinkCustomer(context.Background(), 1, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", account.ExternalCustomerID)

	// A different customer is a conflict and leaves the linkage untouched
	_, err = svc.LinkCustomer(context.Background(), 1, "cus_999")
	assert.ErrorIs(t, err, ErrCustomerConflict)

	stored, err := repo.GetAccountByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, "cus_123", stored.ExternalCustomerID)
}

func TestApplySubscriptionEventOverwritesMirror(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := NewService(repo)
	linkedAccount(t, svc, 1, "cus_123")

	periodEnd := time.Unix(1700000000, 0).UTC()
	ev := SubscriptionEvent{
		CustomerID:        "cus_123",
		SubscriptionID:    "sub_1",
		PriceID:           "price_basic",
		Status:            "active",
		CancelAtPeriodEnd: false,
		CurrentPeriodEnd:  &periodEnd,
		OccurredAt:        time.Unix(1699000000, 0).UTC(),
	}

	account, err := svc.ApplySubscriptionEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "active", account.SubscriptionStatus)
	assert.Equal(t, "sub_1", account.SubscriptionID)
	assert.Equal(t, "price_basic", account.SubscriptionPriceID)
	assert.Equal(t, periodEnd, *account.CurrentPeriodEnd)
	assert.False(t, account.CancelAtPeriodEnd)
	assert.Equal(t, ev.OccurredAt, *account.LastEventAt)
}

func TestApplySubscriptionEventIsIdempotent(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := NewService(repo)
	linkedAccount(t, svc, 1, "cus_123")

	periodEnd := time.Unix(1700000000, 0).UTC()
	ev := SubscriptionEvent{
		CustomerID:       "cus_123",
		SubscriptionID:   "sub_1",
		Status:           "active",
		CurrentPeriodEnd: &periodEnd,
		OccurredAt:       time.Unix(1699000000, 0).UTC(),
	}

	first, err := svc.ApplySubscriptionEvent(context.Background(), ev)
	require.NoError(t, err)

	// Redelivery of the same self-contained event lands on the same state
	second, err := svc.ApplySubscriptionEvent(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, first.SubscriptionStatus, second.SubscriptionStatus)
	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)
	assert.Equal(t, *first.CurrentPeriodEnd, *second.CurrentPeriodEnd)
	assert.Equal(t, *first.LastEventAt, *second.LastEventAt)
}

func TestApplySubscriptionEventDiscardsStale(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := NewService(repo)
	linkedAccount(t, svc, 1, "cus_123")

	newer := SubscriptionEvent{
		CustomerID: "cus_123",
		Status:     "canceled",
		OccurredAt: time.Unix(1700000000, 0).UTC(),
	}
	_, err := svc.ApplySubscriptionEvent(context.Background(), newer)
	require.NoError(t, err)

	older := SubscriptionEvent{
		CustomerID: "cus_123",
		Status:     "active",
		OccurredAt: time.Unix(1690000000, 0).UTC(),
	}
	_, err = svc.ApplySubscriptionEvent(context.Background(), older)
	assert.ErrorIs(t, err, ErrStaleEvent)

	stored, err := repo.GetAccountByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, "canceled", stored.SubscriptionStatus)
	assert.Equal(t, newer.OccurredAt, *stored.LastEventAt)
}

func TestApplySubscriptionEventUnknownCustomer(t *testing.T) {
	svc := NewService(newFakeBillingRepo())

	_, err := svc.ApplySubscriptionEvent(context.Background(), SubscriptionEvent{
		CustomerID: "cus_nobody",
		Status:     "active",
		OccurredAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrUnknownCustomer)
}

func TestApplySubscriptionDeletedClearsPeriodFields(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := NewService(repo)
	linkedAccount(t, svc, 1, "cus_123")

	periodEnd := time.Unix(1700000000, 0).UTC()
	_, err := svc.ApplySubscriptionEvent(context.Background(), SubscriptionEvent{
		CustomerID:        "cus_123",
		Status:            "active",
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  &periodEnd,
		OccurredAt:        time.Unix(1699000000, 0).UTC(),
	})
	require.NoError(t, err)

	account, err := svc.ApplySubscriptionDeleted(context.Background(), "cus_123", time.Unix(1700000001, 0).UTC())
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, account.SubscriptionStatus)
	assert.False(t, account.CancelAtPeriodEnd)
	assert.Nil(t, account.CurrentPeriodEnd)
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	svc := NewService(newFakeBillingRepo())

	isNew, first, err := svc.RecordWebhookEvent(context.Background(), "evt_1", "customer.subscription.updated", `{"id":"evt_1"}`)
	require.NoError(t, err)
	assert.True(t, isNew)
	require.NotNil(t, first)

	isNew, second, err := svc.RecordWebhookEvent(context.Background(), "evt_1", "customer.subscription.updated", `{"id":"evt_1"}`)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
}

func TestRecordWebhookEventHashesMissingID(t *testing.T) {
	svc := NewService(newFakeBillingRepo())

	isNew, event, err := svc.RecordWebhookEvent(context.Background(), "", "ping", `{"n":1}`)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Contains(t, event.ProviderEventID, "hash:")

	// Same payload resolves to the same synthetic id
	isNew, _, err = svc.RecordWebhookEvent(context.Background(), "", "ping", `{"n":1}`)
	require.NoError(t, err)
	assert.False(t, isNew)
}

// Walks the lifecycle of one customer through checkout, trial, activation,
// pending cancellation and deletion.
func TestSubscriptionLifecycle(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := NewService(repo)
	ctx := context.Background()

	linkedAccount(t, svc, 7, "cus_123")

	trialEnd := time.Unix(1700000000, 0).UTC()
	account, err := svc.ApplySubscriptionEvent(ctx, SubscriptionEvent{
		CustomerID:       "cus_123",
		SubscriptionID:   "sub_9",
		Status:           "trialing",
		CurrentPeriodEnd: &trialEnd,
		OccurredAt:       time.Unix(1698000000, 0).UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "trialing", account.SubscriptionStatus)

	periodEnd := time.Unix(1710000000, 0).UTC()
	account, err = svc.ApplySubscriptionEvent(ctx, SubscriptionEvent{
		CustomerID:       "cus_123",
		SubscriptionID:   "sub_9",
		Status:           "active",
		CurrentPeriodEnd: &periodEnd,
		OccurredAt:       time.Unix(1700000001, 0).UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "active", account.SubscriptionStatus)

	account, err = svc.ApplySubscriptionEvent(ctx, SubscriptionEvent{
		CustomerID:        "cus_123",
		SubscriptionID:    "sub_9",
		Status:            "active",
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  &periodEnd,
		OccurredAt:        time.Unix(1705000000, 0).UTC(),
	})
	require.NoError(t, err)
	assert.True(t, account.CancelAtPeriodEnd)

	account, err = svc.ApplySubscriptionDeleted(ctx, "cus_123", time.Unix(1710000001, 0).UTC())
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, account.SubscriptionStatus)
	assert.Nil(t, account.CurrentPeriodEnd)
}
