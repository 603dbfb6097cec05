package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/sujit-baniya/flash"

	"github.com/tablecarte/tablecarte/app/repository"
	"github.com/tablecarte/tablecarte/internal/pkg/billing"
	"github.com/tablecarte/tablecarte/internal/pkg/constants"
	"github.com/tablecarte/tablecarte/internal/pkg/usercontext"
)

// BillingController handles the subscription lifecycle: checkout and portal
// redirects, the provider webhook, and the status endpoint. All collaborators
// are injected so tests can run against fakes without network access.
type BillingController struct {
	service       *billing.Service
	reader        billing.StatusReader
	provider      billing.ProviderClient
	cache         billing.StatusCache
	userRepo      repository.UserRepository
	webhookSecret string
	priceID       string
	trialDays     int64
}

// NewBillingController wires a billing controller. cache may be nil.
func NewBillingController(
	service *billing.Service,
	reader billing.StatusReader,
	provider billing.ProviderClient,
	cache billing.StatusCache,
	userRepo repository.UserRepository,
	webhookSecret, priceID string,
	trialDays int64,
) *BillingController {
	return &BillingController{
		service:       service,
		reader:        reader,
		provider:      provider,
		cache:         cache,
		userRepo:      userRepo,
		webhookSecret: webhookSecret,
		priceID:       priceID,
		trialDays:     trialDays,
	}
}

// HandleWebhook receives provider events. Response codes follow the provider's
// retry contract: 400 rejects a bad signature without touching state, 200
// acknowledges everything we never want redelivered (irrelevant types, stale
// or duplicate events, unknown customers), 500 asks for a retry after a
// persistence failure.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	sigHeader := c.Get("Stripe-Signature")

	event, err := webhook.ConstructEvent(payload, sigHeader, bc.webhookSecret)
	if err != nil {
		log.Printf("billing webhook: signature verification failed: %v (sig %q, body %q)",
			err, truncateForLog(sigHeader, 40), truncateForLog(string(payload), 80))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid signature",
		})
	}

	isNew, record, err := bc.service.RecordWebhookEvent(c.Context(), event.ID, string(event.Type), string(event.Data.Raw))
	if err != nil {
		log.Printf("billing webhook: could not record event %s: %v", event.ID, err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if !isNew {
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	}

	occurredAt := time.Unix(event.Created, 0).UTC()

	var processErr error
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		processErr = bc.applySubscriptionEvent(c, event, occurredAt)
	case "customer.subscription.deleted":
		processErr = bc.applySubscriptionDeleted(c, event, occurredAt)
	case "checkout.session.completed":
		processErr = bc.applyCheckoutCompleted(c, event)
	default:
		// Not a type we mirror; acknowledge so the provider stops retrying.
	}

	if processErr != nil {
		if isAcknowledgeable(processErr) {
			_ = bc.service.MarkWebhookProcessed(c.Context(), record.ID, processErr)
			return c.JSON(fiber.Map{"received": true})
		}
		log.Printf("billing webhook: processing %s (%s) failed: %v", event.ID, event.Type, processErr)
		_ = bc.service.MarkWebhookProcessed(c.Context(), record.ID, processErr)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if err := bc.service.MarkWebhookProcessed(c.Context(), record.ID, nil); err != nil {
		log.Printf("billing webhook: could not mark event %s processed: %v", event.ID, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

// Stale and unknown-customer events must be acknowledged, not retried.
func isAcknowledgeable(err error) bool {
	return errors.Is(err, billing.ErrStaleEvent) ||
		errors.Is(err, billing.ErrUnknownCustomer) ||
		errors.Is(err, billing.ErrCustomerConflict)
}

func (bc *BillingController) applySubscriptionEvent(c *fiber.Ctx, event stripe.Event, occurredAt time.Time) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription payload: %w", err)
	}
	if sub.Customer == nil {
		return fmt.Errorf("subscription event %s carries no customer", event.ID)
	}

	ev := billing.SubscriptionEvent{
		CustomerID:        sub.Customer.ID,
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		OccurredAt:        occurredAt,
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		ev.CurrentPeriodEnd = &t
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PriceID = sub.Items.Data[0].Price.ID
	}

	account, err := bc.service.ApplySubscriptionEvent(c.Context(), ev)
	if err != nil {
		return err
	}
	bc.invalidateStatus(c, account.UserID)
	return nil
}

func (bc *BillingController) applySubscriptionDeleted(c *fiber.Ctx, event stripe.Event, occurredAt time.Time) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription payload: %w", err)
	}
	if sub.Customer == nil {
		return fmt.Errorf("subscription event %s carries no customer", event.ID)
	}

	account, err := bc.service.ApplySubscriptionDeleted(c.Context(), sub.Customer.ID, occurredAt)
	if err != nil {
		return err
	}
	bc.invalidateStatus(c, account.UserID)
	return nil
}

// applyCheckoutCompleted binds the provider customer from a finished checkout
// back to the local account carried in the session metadata.
func (bc *BillingController) applyCheckoutCompleted(c *fiber.Ctx, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session payload: %w", err)
	}
	if sess.Customer == nil || sess.Customer.ID == "" {
		return fmt.Errorf("checkout session %s carries no customer", event.ID)
	}

	userID := parseUserIDMetadata(sess.Metadata)
	if userID == 0 {
		return fmt.Errorf("checkout session %s carries no %s metadata", event.ID, billing.MetadataUserIDKey)
	}

	if _, err := bc.service.LinkCustomer(c.Context(), userID, sess.Customer.ID); err != nil {
		return err
	}
	bc.invalidateStatus(c, userID)
	return nil
}

func (bc *BillingController) invalidateStatus(c *fiber.Ctx, userID uint) {
	if bc.cache != nil && userID != 0 {
		bc.cache.Invalidate(c.Context(), userID)
	}
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func parseUserIDMetadata(metadata map[string]string) uint {
	raw, ok := metadata[billing.MetadataUserIDKey]
	if !ok {
		return 0
	}
	var id uint
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
		return 0
	}
	return id
}

// HandleCheckout starts a subscription checkout for the logged-in merchant.
// The Origin header is required to build the redirect URLs.
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Redirect(constants.LoginPath, fiber.StatusSeeOther)
	}

	origin := c.Get("Origin")
	if origin == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing Origin header",
		})
	}

	user, err := bc.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Account could not be loaded"}).Redirect(constants.BillingPath)
	}

	account, err := bc.service.EnsureAccount(c.Context(), userCtx.UserID)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Billing account could not be prepared"}).Redirect(constants.BillingPath)
	}

	customerID := account.ExternalCustomerID
	if customerID == "" {
		customerID, err = bc.provider.CreateCustomer(c.Context(), user.Email, user.RestaurantName, user.ID)
		if err != nil {
			log.Printf("billing checkout: customer create failed for user %d: %v", user.ID, err)
			return flash.WithError(c, fiber.Map{"type": "error", "message": "Billing provider is unavailable, please try again"}).Redirect(constants.BillingPath)
		}
		if _, err := bc.service.LinkCustomer(c.Context(), user.ID, customerID); err != nil {
			return flash.WithError(c, fiber.Map{"type": "error", "message": "Billing account could not be linked"}).Redirect(constants.BillingPath)
		}
	}

	url, err := bc.provider.CreateCheckoutSession(c.Context(), billing.CheckoutParams{
		CustomerID: customerID,
		PriceID:    bc.priceID,
		UserID:     user.ID,
		SuccessURL: origin + constants.BillingPath + "?checkout=success",
		CancelURL:  origin + constants.BillingPath + "?checkout=cancelled",
		TrialDays:  bc.trialDays,
	})
	if err != nil {
		log.Printf("billing checkout: session create failed for user %d: %v", user.ID, err)
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Checkout could not be started, please try again"}).Redirect(constants.BillingPath)
	}

	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandlePortal redirects a linked merchant to the provider's billing portal.
func (bc *BillingController) HandlePortal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Redirect(constants.LoginPath, fiber.StatusSeeOther)
	}

	origin := c.Get("Origin")
	if origin == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing Origin header",
		})
	}

	account, err := bc.service.GetAccount(c.Context(), userCtx.UserID)
	if err != nil || account == nil || !account.IsLinked() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no billing account linked",
		})
	}

	url, err := bc.provider.CreatePortalSession(c.Context(), account.ExternalCustomerID, origin+constants.BillingPath)
	if err != nil {
		log.Printf("billing portal: session create failed for user %d: %v", userCtx.UserID, err)
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Billing portal is unavailable, please try again"}).Redirect(constants.BillingPath)
	}

	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandleSubscriptionStatus returns the live normalized entitlement as JSON.
func (bc *BillingController) HandleSubscriptionStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	ent, err := bc.reader.Read(c.Context(), userCtx.UserID)
	if err != nil {
		log.Printf("billing status: read failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "subscription status unavailable",
		})
	}
	return c.JSON(ent)
}

// HandleSubscriptionPage renders the subscription management page.
func (bc *BillingController) HandleSubscriptionPage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Redirect(constants.LoginPath, fiber.StatusSeeOther)
	}

	data := fiber.Map{
		"Title":    "Subscription",
		"Username": userCtx.Username,
		"Flash":    flash.Get(c),
		"CSRF":     c.Locals("csrf"),
	}

	ent, err := bc.reader.Read(c.Context(), userCtx.UserID)
	if err != nil {
		log.Printf("billing page: status read failed for user %d: %v", userCtx.UserID, err)
		data["StatusUnavailable"] = true
	} else {
		data["Status"] = ent.Status
		data["IsActive"] = ent.IsActive
		data["CancelAtPeriodEnd"] = ent.CancelAtPeriodEnd
		if ent.EndDate != nil {
			data["EndDate"] = ent.EndDate.Format("2006-01-02")
		}
	}

	account, err := bc.service.GetAccount(c.Context(), userCtx.UserID)
	data["IsLinked"] = err == nil && account != nil && account.IsLinked()

	return c.Render("billing/subscribe", data, "layouts/main")
}
