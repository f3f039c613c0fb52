package billing

import "time"

// Billing provider identifiers. Only one provider ships today; the event
// records and plan mappings are keyed by provider so a second one slots in
// without schema changes.
const ProviderStripe = "stripe"

// External webhook event types consumed by the reconciler.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.paid"
)

// NormalizedEvent is the provider-agnostic shape the reconciler applies.
// Exactly one of UserID / CustomerID is needed to locate the account.
type NormalizedEvent struct {
	Provider         string
	EventID          string
	Type             string
	UserID           uint // from checkout client_reference_id, 0 if absent
	CustomerID       string
	SubscriptionID   string
	PriceRef         string
	PlanHint         string // provider metadata plan name, fallback for unmapped refs
	Status           string
	CurrentPeriodEnd *time.Time
	RawPayloadJSON   string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
