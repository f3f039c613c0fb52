package entitlements

import (
	"testing"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
)

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{in: "free", want: PlanFree},
		{in: "pro", want: PlanPro},
		{in: "enterprise", want: PlanEnterprise},
		{in: "ENTERPRISE", want: PlanEnterprise},
		{in: "invalid", want: PlanFree},
		{in: "", want: PlanFree},
	}

	for _, tt := range tests {
		if got := NormalizePlan(tt.in); got != tt.want {
			t.Fatalf("NormalizePlan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlanRank(t *testing.T) {
	if PlanRank(PlanFree) >= PlanRank(PlanPro) {
		t.Fatalf("expected pro to outrank free")
	}
	if PlanRank(PlanPro) >= PlanRank(PlanEnterprise) {
		t.Fatalf("expected enterprise to outrank pro")
	}
}

func TestIsEntitlingStatus(t *testing.T) {
	for _, status := range []string{"active", "trialing"} {
		if !IsEntitlingStatus(status) {
			t.Fatalf("expected status %q to be entitling", status)
		}
	}
	for _, status := range []string{"canceled", "past_due", "", "incomplete"} {
		if IsEntitlingStatus(status) {
			t.Fatalf("expected status %q to be non-entitling", status)
		}
	}
}

func TestEffectivePlan_OverrideWins(t *testing.T) {
	now := time.Now()
	u := &models.User{
		PlanOverride:       "pro",
		SubscriptionStatus: models.SubscriptionStatusActive,
		SubscriptionPlan:   "enterprise",
	}
	if got := EffectivePlan(u, now); got != PlanPro {
		t.Fatalf("expected active override to win, got %q", got)
	}
}

func TestEffectivePlan_ExpiredOverrideFallsThrough(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Hour)
	u := &models.User{
		PlanOverride:          "pro",
		PlanOverrideExpiresAt: &expired,
		SubscriptionStatus:    models.SubscriptionStatusActive,
		SubscriptionPlan:      "enterprise",
	}
	if got := EffectivePlan(u, now); got != PlanEnterprise {
		t.Fatalf("expected expired override to fall through to subscription, got %q", got)
	}
}

func TestEffectivePlan_NonEntitlingStatusFallsToFree(t *testing.T) {
	now := time.Now()
	u := &models.User{
		SubscriptionStatus: models.SubscriptionStatusCanceled,
		SubscriptionPlan:   "pro",
	}
	if got := EffectivePlan(u, now); got != PlanFree {
		t.Fatalf("expected canceled subscription to fall to free, got %q", got)
	}
}

func TestEffectivePlan_OverrideSurvivesCancellation(t *testing.T) {
	now := time.Now()
	u := &models.User{
		PlanOverride:       "enterprise",
		SubscriptionStatus: models.SubscriptionStatusCanceled,
		SubscriptionPlan:   "pro",
	}
	if got := EffectivePlan(u, now); got != PlanEnterprise {
		t.Fatalf("expected override to survive cancellation, got %q", got)
	}
}

func TestActivationCredits(t *testing.T) {
	tests := []struct {
		plan Plan
		want int64
	}{
		{plan: PlanFree, want: 0},
		{plan: PlanPro, want: 500},
		{plan: PlanEnterprise, want: 2000},
	}
	for _, tt := range tests {
		if got := ActivationCredits(tt.plan); got != tt.want {
			t.Fatalf("ActivationCredits(%q) = %d, want %d", tt.plan, got, tt.want)
		}
	}
}
