package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/internal/pkg/billing"
	"github.com/JanBecker/ClipFox/internal/pkg/database"
	"github.com/JanBecker/ClipFox/internal/pkg/env"
	"github.com/JanBecker/ClipFox/internal/pkg/session"
	"github.com/JanBecker/ClipFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HandleBillingWebhook ingests billing provider webhooks. Every delivery is
// recorded before any processing; duplicates of fully applied events are
// acknowledged without side effects, while retries of events that never
// finished processing run again.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetSecret("STRIPE_WEBHOOK_SECRET")

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	signatureValid := billing.VerifyWebhookSignature(rawBody, signature, secret)

	ev, parseErr := billing.ParseWebhookEvent(rawBody)
	eventID := ""
	eventType := ""
	if parseErr == nil {
		eventID = ev.EventID
		eventType = ev.Type
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        billing.ProviderStripe,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created && stored.ProcessedAt != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	// From here this delivery owns the event record: either freshly created
	// or a redelivery of an event that never finished processing.
	if !signatureValid {
		_ = svc.MarkEventProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if parseErr != nil {
		_ = svc.MarkEventProcessed(ctx, stored.ID, parseErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if !billing.IsHandledEventType(ev.Type) {
		_ = svc.MarkEventProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	_, handleErr := svc.HandleEvent(ctx, ev)
	if handleErr != nil && errors.Is(handleErr, gorm.ErrRecordNotFound) {
		_ = svc.MarkEventProcessed(ctx, stored.ID, errors.New("no local account for billing event"))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}
	_ = svc.MarkEventProcessed(ctx, stored.ID, handleErr)
	if handleErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

type checkoutRequest struct {
	PriceRef string `json:"price_ref"`
}

// HandleCreateCheckoutSession starts a subscription checkout and returns the
// provider-hosted URL to redirect the user to.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.PriceRef) == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "price_ref is required")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	customerID := ""
	if user, err := svc.GetUser(ctx, userCtx.UserID); err == nil {
		customerID = user.BillingCustomerID
	}

	client := billing.NewStripeClientFromEnv()
	sessionOut, err := client.CreateCheckoutSession(ctx, userCtx.UserID, req.PriceRef, customerID)
	if err != nil {
		if errors.Is(err, billing.ErrMisconfiguredIntegration) {
			return jsonError(c, fiber.StatusServiceUnavailable, "billing_unavailable", "Billing is not configured")
		}
		return internalError(c, "billing", err)
	}

	return c.JSON(fiber.Map{"checkout_url": sessionOut.URL, "session_id": sessionOut.ID})
}

// HandleCreatePortalSession opens the provider's self-service portal for the
// current user's billing customer.
func HandleCreatePortalSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	user, err := svc.GetUser(ctx, userCtx.UserID)
	if err != nil {
		return internalError(c, "billing", err)
	}
	if strings.TrimSpace(user.BillingCustomerID) == "" {
		return jsonError(c, fiber.StatusConflict, "no_billing_customer", "No billing customer linked yet")
	}

	client := billing.NewStripeClientFromEnv()
	portal, err := client.CreatePortalSession(ctx, user.BillingCustomerID)
	if err != nil {
		if errors.Is(err, billing.ErrMisconfiguredIntegration) {
			return jsonError(c, fiber.StatusServiceUnavailable, "billing_unavailable", "Billing is not configured")
		}
		return internalError(c, "billing", err)
	}

	return c.JSON(fiber.Map{"portal_url": portal.URL})
}

// HandleBillingResync re-evaluates the current user's effective plan and
// refreshes the session cache.
func HandleBillingResync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	effectivePlan, err := svc.GetEffectivePlan(ctx, userCtx.UserID)
	if err != nil {
		return internalError(c, "billing", err)
	}

	_ = session.SetSessionValue(c, usercontext.KeyPlan, effectivePlan)
	return c.JSON(fiber.Map{"effective_plan": effectivePlan})
}
