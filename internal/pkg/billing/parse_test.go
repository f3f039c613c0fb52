package billing

import (
	"testing"
	"time"
)

func TestParseWebhookEventCheckout(t *testing.T) {
	payload := []byte(`{
		"id": "evt_checkout_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"customer": "cus_123",
			"subscription": "sub_456",
			"client_reference_id": "42",
			"status": "complete",
			"metadata": {"plan": "pro"}
		}}
	}`)

	ev, err := ParseWebhookEvent(payload)
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	if ev.EventID != "evt_checkout_1" || ev.Type != EventCheckoutCompleted {
		t.Fatalf("unexpected envelope: %+v", ev)
	}
	if ev.UserID != 42 {
		t.Fatalf("expected client_reference_id to map to user 42, got %d", ev.UserID)
	}
	if ev.CustomerID != "cus_123" || ev.SubscriptionID != "sub_456" {
		t.Fatalf("unexpected identifiers: %+v", ev)
	}
	if ev.PlanHint != "pro" {
		t.Fatalf("expected plan hint pro, got %q", ev.PlanHint)
	}
}

func TestParseWebhookEventInvoicePaid(t *testing.T) {
	periodEnd := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	payload := []byte(`{
		"id": "evt_inv_1",
		"type": "invoice.paid",
		"data": {"object": {
			"id": "in_1",
			"customer": "cus_123",
			"subscription": "sub_456",
			"lines": {"data": [{
				"price": {"id": "price_pro_monthly"},
				"period": {"end": ` + "1759276800" + `}
			}]}
		}}
	}`)

	ev, err := ParseWebhookEvent(payload)
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	if ev.SubscriptionID != "sub_456" {
		t.Fatalf("expected subscription from object.subscription, got %q", ev.SubscriptionID)
	}
	if ev.PriceRef != "price_pro_monthly" {
		t.Fatalf("expected price ref from first line, got %q", ev.PriceRef)
	}
	if ev.CurrentPeriodEnd == nil || !ev.CurrentPeriodEnd.Equal(periodEnd) {
		t.Fatalf("expected period end %s, got %v", periodEnd, ev.CurrentPeriodEnd)
	}
}

func TestParseWebhookEventSubscriptionUpdated(t *testing.T) {
	payload := []byte(`{
		"id": "evt_sub_1",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_456",
			"customer": "cus_123",
			"status": "past_due",
			"current_period_end": 1759276800,
			"items": {"data": [{"price": {"id": "price_ent_yearly"}}]}
		}}
	}`)

	ev, err := ParseWebhookEvent(payload)
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	if ev.SubscriptionID != "sub_456" {
		t.Fatalf("expected subscription id from object.id, got %q", ev.SubscriptionID)
	}
	if ev.PriceRef != "price_ent_yearly" {
		t.Fatalf("expected price ref from items, got %q", ev.PriceRef)
	}
	if ev.Status != "past_due" {
		t.Fatalf("expected status past_due, got %q", ev.Status)
	}
	if ev.CurrentPeriodEnd == nil {
		t.Fatalf("expected current period end to be set")
	}
}

func TestParseWebhookEventRejectsMissingFields(t *testing.T) {
	if _, err := ParseWebhookEvent([]byte(`{"type":"invoice.paid"}`)); err == nil {
		t.Fatalf("expected error for missing event id")
	}
	if _, err := ParseWebhookEvent([]byte(`{"id":"evt_1"}`)); err == nil {
		t.Fatalf("expected error for missing event type")
	}
	if _, err := ParseWebhookEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestIsHandledEventType(t *testing.T) {
	for _, et := range []string{EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted, EventInvoicePaid} {
		if !IsHandledEventType(et) {
			t.Fatalf("expected %q to be handled", et)
		}
	}
	for _, et := range []string{"charge.refunded", "customer.created", ""} {
		if IsHandledEventType(et) {
			t.Fatalf("expected %q to be unhandled", et)
		}
	}
}
