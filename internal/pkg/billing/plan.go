package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// resolveEventPlan maps a provider price reference to an internal plan via
// the plan mapping table, falling back to the event's plan hint when the ref
// is unmapped. Unresolvable events land on free rather than failing: a
// mapping gap must not make a webhook permanently unprocessable.
func (s *Service) resolveEventPlan(ctx context.Context, ev *NormalizedEvent) (string, error) {
	if ref := strings.TrimSpace(ev.PriceRef); ref != "" {
		m, err := s.repo.FindActivePlanMapping(ctx, ev.Provider, ref)
		if err == nil {
			return string(entitlements.NormalizePlan(m.InternalPlan)), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
	}
	if entitlements.IsKnownPlan(ev.PlanHint) {
		return string(entitlements.NormalizePlan(ev.PlanHint)), nil
	}
	return string(entitlements.PlanFree), nil
}

// normalizeSubscriptionStatus maps provider status strings onto the statuses
// the precedence function understands. Unknown values pass through lowercased
// so they are stored faithfully; they simply do not entitle.
func normalizeSubscriptionStatus(status string) string {
	st := strings.ToLower(strings.TrimSpace(status))
	switch st {
	case "active", "complete", "paid":
		return models.SubscriptionStatusActive
	case "trialing":
		return models.SubscriptionStatusTrialing
	case "canceled", "cancelled":
		return models.SubscriptionStatusCanceled
	case "past_due", "unpaid":
		return models.SubscriptionStatusPastDue
	default:
		return st
	}
}
