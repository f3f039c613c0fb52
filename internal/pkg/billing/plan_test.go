package billing

import (
	"testing"

	"github.com/JanBecker/ClipFox/app/models"
)

func TestNormalizeSubscriptionStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "complete", want: models.SubscriptionStatusActive},
		{in: "paid", want: models.SubscriptionStatusActive},
		{in: "Trialing", want: models.SubscriptionStatusTrialing},
		{in: "canceled", want: models.SubscriptionStatusCanceled},
		{in: "cancelled", want: models.SubscriptionStatusCanceled},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "unpaid", want: models.SubscriptionStatusPastDue},
		{in: "incomplete", want: "incomplete"},
		{in: "  PAUSED ", want: "paused"},
	}

	for _, tt := range tests {
		if got := normalizeSubscriptionStatus(tt.in); got != tt.want {
			t.Fatalf("normalizeSubscriptionStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
