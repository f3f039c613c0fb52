package entitlements

import (
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// NormalizePlan maps arbitrary input to a known plan, defaulting to free.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	case string(PlanEnterprise):
		return PlanEnterprise
	default:
		return PlanFree
	}
}

// IsKnownPlan reports whether the input names a plan exactly (no defaulting).
func IsKnownPlan(plan string) bool {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanFree), string(PlanPro), string(PlanEnterprise):
		return true
	default:
		return false
	}
}

func PlanRank(plan Plan) int {
	switch plan {
	case PlanEnterprise:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// IsEntitlingStatus reports whether a subscription status grants the plan it
// refers to. Past-due subscriptions do not entitle; cancellation is handled
// purely by this falling to false.
func IsEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}

// EffectivePlan resolves the single plan actually enforced for a user:
//  1. an unexpired admin override wins, always - admin intent must not be
//     clobbered by stale provider data;
//  2. otherwise an entitling subscription status yields the last-known
//     subscription plan;
//  3. otherwise free.
//
// The result is recomputed on every write path and lazily at read time; the
// cached users.effective_plan column is rewritten to match, never trusted.
func EffectivePlan(u *models.User, now time.Time) Plan {
	if u.HasActivePlanOverride(now) {
		return NormalizePlan(u.PlanOverride)
	}
	if IsEntitlingStatus(u.SubscriptionStatus) {
		return NormalizePlan(u.SubscriptionPlan)
	}
	return PlanFree
}

// ActivationCredits is the one-time grant applied when a plan checkout
// completes.
func ActivationCredits(plan Plan) int64 {
	switch plan {
	case PlanEnterprise:
		return 2000
	case PlanPro:
		return 500
	default:
		return 0
	}
}

// RenewalCredits is the grant applied once per billing period on invoice
// payment. Same table as activation for now; kept separate so the amounts can
// diverge without touching the reconciler.
func RenewalCredits(plan Plan) int64 {
	return ActivationCredits(plan)
}
