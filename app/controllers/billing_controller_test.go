package controllers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"

	"github.com/tablecarte/tablecarte/app/models"
	"github.com/tablecarte/tablecarte/internal/pkg/billing"
	"github.com/tablecarte/tablecarte/internal/pkg/usercontext"
)

const testWebhookSecret = "whsec_test_secret"

// In-memory billing.Repository so webhook handling runs without a database.
type memBillingRepo struct {
	accounts map[uint]*models.BillingAccount
	events   map[string]*models.BillingWebhookEvent
	nextID   uint
}

func newMemBillingRepo() *memBillingRepo {
	return &memBillingRepo{
		accounts: map[uint]*models.BillingAccount{},
		events:   map[string]*models.BillingWebhookEvent{},
	}
}

func (m *memBillingRepo) GetAccountByUserID(userID uint) (*models.BillingAccount, error) {
	if a, ok := m.accounts[userID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memBillingRepo) GetAccountByCustomerID(customerID string) (*models.BillingAccount, error) {
	if customerID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, a := range m.accounts {
		if a.ExternalCustomerID == customerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memBillingRepo) EnsureAccount(userID uint) (*models.BillingAccount, error) {
	if a, ok := m.accounts[userID]; ok {
		cp := *a
		return &cp, nil
	}
	m.nextID++
	a := &models.BillingAccount{
		ID:                 m.nextID,
		UserID:             userID,
		SubscriptionStatus: models.SubscriptionStatusNone,
	}
	m.accounts[userID] = a
	cp := *a
	return &cp, nil
}

func (m *memBillingRepo) SaveAccount(account *models.BillingAccount) error {
	cp := *account
	m.accounts[account.UserID] = &cp
	return nil
}

func (m *memBillingRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	if stored, ok := m.events[event.ProviderEventID]; ok {
		cp := *stored
		return false, &cp, nil
	}
	m.nextID++
	event.ID = m.nextID
	cp := *event
	m.events[event.ProviderEventID] = &cp
	return true, event, nil
}

func (m *memBillingRepo) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	for _, e := range m.events {
		if e.ID == id {
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type noopProvider struct{}

func (noopProvider) CreateCustomer(ctx context.Context, email, name string, userID uint) (string, error) {
	return "cus_fake", nil
}

func (noopProvider) LatestSubscription(ctx context.Context, customerID string) (*billing.ProviderSubscription, error) {
	return nil, nil
}

func (noopProvider) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (string, error) {
	return "https://checkout.example/session", nil
}

func (noopProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://portal.example/session", nil
}

// stubSubProvider answers live subscription queries with a fixed snapshot.
type stubSubProvider struct {
	noopProvider
	sub *billing.ProviderSubscription
	err error
}

func (p stubSubProvider) LatestSubscription(ctx context.Context, customerID string) (*billing.ProviderSubscription, error) {
	return p.sub, p.err
}

// newStatusTestApp serves the status endpoint as user 1 with the given
// provider behind the live reader.
func newStatusTestApp(repo billing.Repository, provider billing.ProviderClient) *fiber.App {
	svc := billing.NewService(repo)
	reader := billing.NewReader(repo, provider, nil)
	bc := NewBillingController(svc, reader, provider, nil, nil, testWebhookSecret, "price_basic", 30)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			UserID:     1,
			IsLoggedIn: true,
		})
		return c.Next()
	})
	app.Get("/user/billing/status", bc.HandleSubscriptionStatus)
	return app
}

func newWebhookTestApp(repo billing.Repository) *fiber.App {
	svc := billing.NewService(repo)
	reader := billing.NewReader(repo, noopProvider{}, nil)
	bc := NewBillingController(svc, reader, noopProvider{}, nil, nil, testWebhookSecret, "price_basic", 30)

	app := fiber.New()
	app.Post("/webhooks/stripe", bc.HandleWebhook)
	return app
}

// signatureHeader signs the payload the way the provider does. Signing one
// body and delivering another simulates tampering in transit.
func signatureHeader(payload string, secret string) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, []byte(payload), secret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func postWebhook(app *fiber.App, payload, header string) (int, error) {
	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	resp, err := app.Test(req)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

func subscriptionEventPayload(eventID, customerID, status string, created, periodEnd int64, cancelAtPeriodEnd bool) string {
	return fmt.Sprintf(`{
		"id": %q,
		"api_version": "2023-10-16",
		"type": "customer.subscription.updated",
		"created": %d,
		"data": {
			"object": {
				"id": "sub_1",
				"object": "subscription",
				"customer": %q,
				"status": %q,
				"cancel_at_period_end": %t,
				"current_period_end": %d,
				"items": {"data": [{"price": {"id": "price_basic"}}]}
			}
		}
	}`, eventID, created, customerID, status, cancelAtPeriodEnd, periodEnd)
}

func linkTestAccount(t *testing.T, repo *memBillingRepo, userID uint, customerID string) {
	t.Helper()
	account, err := repo.EnsureAccount(userID)
	require.NoError(t, err)
	account.ExternalCustomerID = customerID
	require.NoError(t, repo.SaveAccount(account))
}

func TestWebhookAppliesSubscriptionEvent(t *testing.T) {
	repo := newMemBillingRepo()
	linkTestAccount(t, repo, 1, "cus_123")
	app := newWebhookTestApp(repo)

	payload := subscriptionEventPayload("evt_1", "cus_123", "active", 1700000000, 1710000000, false)
	status, err := postWebhook(app, payload, signatureHeader(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)

	account, err := repo.GetAccountByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, "active", account.SubscriptionStatus)
	assert.Equal(t, "sub_1", account.SubscriptionID)
	assert.Equal(t, "price_basic", account.SubscriptionPriceID)
	require.NotNil(t, account.LastEventAt)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *account.LastEventAt)
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	repo := newMemBillingRepo()
	linkTestAccount(t, repo, 1, "cus_123")
	app := newWebhookTestApp(repo)

	signed := subscriptionEventPayload("evt_1", "cus_123", "active", 1700000000, 1710000000, false)
	tampered := subscriptionEventPayload("evt_1", "cus_123", "canceled", 1700000000, 1710000000, false)

	// Signature computed over the original body, different body delivered
	status, err := postWebhook(app, tampered, signatureHeader(signed, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, status)

	// No mutation happened
	account, err := repo.GetAccountByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusNone, account.SubscriptionStatus)
	assert.Nil(t, account.LastEventAt)
	assert.Empty(t, repo.events)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo)

	payload := subscriptionEventPayload("evt_1", "cus_123", "active", 1700000000, 1710000000, false)
	status, err := postWebhook(app, payload, "")
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestWebhookAcknowledgesDuplicates(t *testing.T) {
	repo := newMemBillingRepo()
	linkTestAccount(t, repo, 1, "cus_123")
	app := newWebhookTestApp(repo)

	payload := subscriptionEventPayload("evt_1", "cus_123", "active", 1700000000, 1710000000, false)
	for i := 0; i < 2; i++ {
		status, err := postWebhook(app, payload, signatureHeader(payload, testWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, status)
	}

	account, err := repo.GetAccountByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, "active", account.SubscriptionStatus)
	assert.Len(t, repo.events, 1)
}

func TestWebhookAcknowledgesUnknownCustomer(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo)

	payload := subscriptionEventPayload("evt_1", "cus_nobody", "active", 1700000000, 1710000000, false)
	status, err := postWebhook(app, payload, signatureHeader(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestWebhookDiscardsStaleEvent(t *testing.T) {
	repo := newMemBillingRepo()
	linkTestAccount(t, repo, 1, "cus_123")
	app := newWebhookTestApp(repo)

	newer := subscriptionEventPayload("evt_2", "cus_123", "canceled", 1700000200, 1710000000, false)
	status, err := postWebhook(app, newer, signatureHeader(newer, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)

	older := subscriptionEventPayload("evt_1", "cus_123", "active", 1700000100, 1710000000, false)
	status, err = postWebhook(app, older, signatureHeader(older, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)

	// The stale event was acknowledged but not applied
	account, err := repo.GetAccountByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, "canceled", account.SubscriptionStatus)
}

func TestWebhookIgnoresIrrelevantEventTypes(t *testing.T) {
	repo := newMemBillingRepo()
	linkTestAccount(t, repo, 1, "cus_123")
	app := newWebhookTestApp(repo)

	payload := `{"id":"evt_x","api_version":"2023-10-16","type":"invoice.finalized","created":1700000000,"data":{"object":{}}}`
	status, err := postWebhook(app, payload, signatureHeader(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)

	account, err := repo.GetAccountByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusNone, account.SubscriptionStatus)
}

func TestWebhookDeletedClearsPeriodFields(t *testing.T) {
	repo := newMemBillingRepo()
	linkTestAccount(t, repo, 1, "cus_123")
	app := newWebhookTestApp(repo)

	active := subscriptionEventPayload("evt_1", "cus_123", "active", 1700000000, 1710000000, true)
	status, err := postWebhook(app, active, signatureHeader(active, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)

	deleted := fmt.Sprintf(`{
		"id": "evt_2",
		"api_version": "2023-10-16",
		"type": "customer.subscription.deleted",
		"created": 1700000100,
		"data": {"object": {"id": "sub_1", "object": "subscription", "customer": %q, "status": "canceled"}}
	}`, "cus_123")
	status, err = postWebhook(app, deleted, signatureHeader(deleted, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)

	account, err := repo.GetAccountByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, account.SubscriptionStatus)
	assert.False(t, account.CancelAtPeriodEnd)
	assert.Nil(t, account.CurrentPeriodEnd)
}

func TestWebhookCheckoutCompletedLinksCustomer(t *testing.T) {
	repo := newMemBillingRepo()
	_, err := repo.EnsureAccount(7)
	require.NoError(t, err)
	app := newWebhookTestApp(repo)

	payload := `{
		"id": "evt_1",
		"api_version": "2023-10-16",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"customer": "cus_777",
			"metadata": {"user_id": "7"}
		}}
	}`
	status, err := postWebhook(app, payload, signatureHeader(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)

	account, err := repo.GetAccountByUserID(7)
	require.NoError(t, err)
	assert.Equal(t, "cus_777", account.ExternalCustomerID)
}

// A pending cancellation arrives by webhook, then a status read reports the
// subscription as canceled but still usable until the period end.
func TestPendingCancellationRoundTrip(t *testing.T) {
	repo := newMemBillingRepo()
	linkTestAccount(t, repo, 1, "cus_123")

	periodEnd := int64(1700000000)
	payload := subscriptionEventPayload("evt_1", "cus_123", "active", 1699990000, periodEnd, true)
	status, err := postWebhook(newWebhookTestApp(repo), payload, signatureHeader(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)

	account, err := repo.GetAccountByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, "active", account.SubscriptionStatus)
	assert.True(t, account.CancelAtPeriodEnd)
	require.NotNil(t, account.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(periodEnd, 0).UTC(), *account.CurrentPeriodEnd)

	end := time.Unix(periodEnd, 0).UTC()
	app := newStatusTestApp(repo, stubSubProvider{sub: &billing.ProviderSubscription{
		ID:                "sub_1",
		Status:            "active",
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  &end,
	}})

	resp, err := app.Test(httptest.NewRequest("GET", "/user/billing/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got struct {
		Status   string     `json:"status"`
		IsActive bool       `json:"isActive"`
		EndDate  *time.Time `json:"endDate"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, billing.EntitlementCanceled, got.Status)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "2023-11-14T22:13:20Z", got.EndDate.Format(time.RFC3339))
}

func TestSubscriptionStatusFailsWith500(t *testing.T) {
	repo := newMemBillingRepo()
	linkTestAccount(t, repo, 1, "cus_123")
	app := newStatusTestApp(repo, stubSubProvider{err: errors.New("provider down")})

	resp, err := app.Test(httptest.NewRequest("GET", "/user/billing/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestWebhookRejectionLogsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo)

	payload := subscriptionEventPayload("evt_1", "cus_123", "active", 1700000000, 1710000000, false)
	status, err := postWebhook(app, payload, "t=1,v1=deadbeef")
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, status)

	logged := buf.String()
	assert.Contains(t, logged, "signature verification failed")
	assert.Contains(t, logged, "t=1,v1=deadbeef")
	// Body prefix is logged, the tail is truncated away
	assert.Contains(t, logged, "evt_1")
	assert.NotContains(t, logged, "price_basic")
}
