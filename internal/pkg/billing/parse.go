package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWebhookEvent normalizes a raw provider webhook envelope. The envelope
// carries the event id and type at the top level and the affected object
// under data.object; which object fields matter depends on the event type.
func ParseWebhookEvent(payload []byte) (*NormalizedEvent, error) {
	type rawObject struct {
		ID                string            `json:"id"`
		Customer          string            `json:"customer"`
		Subscription      string            `json:"subscription"`
		ClientReferenceID string            `json:"client_reference_id"`
		Status            string            `json:"status"`
		CurrentPeriodEnd  int64             `json:"current_period_end"`
		Metadata          map[string]string `json:"metadata"`
		Items             struct {
			Data []struct {
				Price struct {
					ID string `json:"id"`
				} `json:"price"`
			} `json:"data"`
		} `json:"items"`
		Lines struct {
			Data []struct {
				Price struct {
					ID string `json:"id"`
				} `json:"price"`
				Period struct {
					End int64 `json:"end"`
				} `json:"period"`
			} `json:"data"`
		} `json:"lines"`
	}
	type rawEnvelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object rawObject `json:"object"`
		} `json:"data"`
	}

	var raw rawEnvelope
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("webhook payload missing event id")
	}
	if strings.TrimSpace(raw.Type) == "" {
		return nil, errors.New("webhook payload missing event type")
	}

	obj := raw.Data.Object
	out := &NormalizedEvent{
		Provider:       ProviderStripe,
		EventID:        strings.TrimSpace(raw.ID),
		Type:           strings.TrimSpace(raw.Type),
		CustomerID:     strings.TrimSpace(obj.Customer),
		Status:         strings.ToLower(strings.TrimSpace(obj.Status)),
		RawPayloadJSON: string(payload),
	}

	if ref := strings.TrimSpace(obj.ClientReferenceID); ref != "" {
		if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
			out.UserID = uint(id)
		}
	}
	if plan, ok := obj.Metadata["plan"]; ok {
		out.PlanHint = strings.ToLower(strings.TrimSpace(plan))
	}

	switch out.Type {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		out.SubscriptionID = strings.TrimSpace(obj.ID)
		if len(obj.Items.Data) > 0 {
			out.PriceRef = strings.TrimSpace(obj.Items.Data[0].Price.ID)
		}
		if obj.CurrentPeriodEnd > 0 {
			t := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
			out.CurrentPeriodEnd = &t
		}
	case EventInvoicePaid:
		out.SubscriptionID = strings.TrimSpace(obj.Subscription)
		if len(obj.Lines.Data) > 0 {
			line := obj.Lines.Data[0]
			out.PriceRef = strings.TrimSpace(line.Price.ID)
			if line.Period.End > 0 {
				t := time.Unix(line.Period.End, 0).UTC()
				out.CurrentPeriodEnd = &t
			}
		}
		if out.CurrentPeriodEnd == nil && obj.CurrentPeriodEnd > 0 {
			t := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
			out.CurrentPeriodEnd = &t
		}
	case EventCheckoutCompleted:
		out.SubscriptionID = strings.TrimSpace(obj.Subscription)
		if obj.CurrentPeriodEnd > 0 {
			t := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
			out.CurrentPeriodEnd = &t
		}
	}

	return out, nil
}

// IsHandledEventType reports whether the reconciler applies this event type.
// Everything else is recorded and acknowledged without side effects.
func IsHandledEventType(eventType string) bool {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted, EventInvoicePaid:
		return true
	default:
		return false
	}
}
