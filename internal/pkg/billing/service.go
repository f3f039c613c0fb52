package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/internal/pkg/entitlements"
	"github.com/JanBecker/ClipFox/internal/pkg/ledger"
	"gorm.io/gorm"
)

// Service reconciles billing provider events into entitlement state: the
// user's subscription snapshot, the cached effective plan, the credit ledger
// and the audit trail.
type Service struct {
	repo    Repository
	credits *ledger.Service
}

// NewService creates a billing service from injected dependencies.
func NewService(repo Repository, credits *ledger.Service) *Service {
	return &Service{repo: repo, credits: credits}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), ledger.NewServiceFromDB(db))
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool reports whether this delivery created the record; callers must treat
// an existing record with a non-null ProcessedAt as an applied duplicate.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.ExternalEventRecord, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.ExternalEventRecord{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateEventIfNotExists(ctx, event)
}

// MarkEventProcessed finalizes an event record. An empty processing error
// stamps ProcessedAt; a non-empty one leaves the event retryable.
func (s *Service) MarkEventProcessed(ctx context.Context, eventRecordID uint, processingErr error) error {
	if eventRecordID == 0 {
		return errors.New("event record id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkEventProcessed(ctx, eventRecordID, errMsg)
}

// HandleEvent applies one admitted external event to entitlement state and
// returns the resulting effective plan. Callers run it only for events whose
// dedup record they own (freshly created, or stored earlier but never
// processed). Any error leaves the event retryable.
func (s *Service) HandleEvent(ctx context.Context, ev *NormalizedEvent) (string, error) {
	if ev == nil || strings.TrimSpace(ev.EventID) == "" {
		return "", errors.New("event id is required")
	}

	user, err := s.locateUser(ctx, ev)
	if err != nil {
		return "", err
	}

	prevPlan := user.EffectivePlan
	prevStatus := user.SubscriptionStatus

	var auditType string
	switch strings.ToLower(strings.TrimSpace(ev.Type)) {
	case EventCheckoutCompleted:
		auditType = models.AuditEventCheckoutCompleted
		err = s.applyCheckoutCompleted(ctx, user, ev)
	case EventSubscriptionUpdated:
		auditType = models.AuditEventSubscriptionUpdated
		err = s.applySubscriptionUpdated(ctx, user, ev)
	case EventSubscriptionDeleted:
		auditType = models.AuditEventSubscriptionDeleted
		s.applySubscriptionDeleted(user)
	case EventInvoicePaid:
		auditType = models.AuditEventInvoicePaid
		err = s.applyInvoicePaid(ctx, user, ev)
	default:
		return "", fmt.Errorf("unsupported event type %q", ev.Type)
	}
	if err != nil {
		return "", err
	}

	// Precedence sync: recompute from the fields just written. Role, plan
	// override and external identity are untouched by the apply steps above.
	effective := string(entitlements.EffectivePlan(user, time.Now()))
	user.EffectivePlan = effective
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return "", err
	}

	if err := s.appendAudit(ctx, user, auditType, prevPlan, prevStatus, ev); err != nil {
		return "", err
	}
	return effective, nil
}

func (s *Service) locateUser(ctx context.Context, ev *NormalizedEvent) (*models.User, error) {
	if ev.UserID != 0 {
		return s.repo.GetUserByID(ctx, ev.UserID)
	}
	if cid := strings.TrimSpace(ev.CustomerID); cid != "" {
		return s.repo.GetUserByCustomerID(ctx, cid)
	}
	return nil, errors.New("event carries neither user reference nor customer id")
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, user *models.User, ev *NormalizedEvent) error {
	plan, err := s.resolveEventPlan(ctx, ev)
	if err != nil {
		return err
	}

	user.BillingCustomerID = strings.TrimSpace(ev.CustomerID)
	user.BillingSubscriptionID = strings.TrimSpace(ev.SubscriptionID)
	user.SubscriptionPlan = plan
	user.SubscriptionStatus = models.SubscriptionStatusActive
	if st := normalizeSubscriptionStatus(ev.Status); st != "" {
		user.SubscriptionStatus = st
	}
	user.CurrentPeriodEnd = ev.CurrentPeriodEnd

	amount := entitlements.ActivationCredits(entitlements.NormalizePlan(plan))
	if amount > 0 {
		reason := fmt.Sprintf("%s activation", plan)
		// Keyed to the event id: a retry after a later write failed must
		// not grant again.
		if err := s.credits.GrantOnce(ctx, user.ID, amount, reason, ev.EventID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) applySubscriptionUpdated(ctx context.Context, user *models.User, ev *NormalizedEvent) error {
	if sid := strings.TrimSpace(ev.SubscriptionID); sid != "" {
		user.BillingSubscriptionID = sid
	}
	if cid := strings.TrimSpace(ev.CustomerID); cid != "" {
		user.BillingCustomerID = cid
	}
	if ev.PriceRef != "" || ev.PlanHint != "" {
		plan, err := s.resolveEventPlan(ctx, ev)
		if err != nil {
			return err
		}
		user.SubscriptionPlan = plan
	}
	if ev.Status != "" {
		user.SubscriptionStatus = normalizeSubscriptionStatus(ev.Status)
	}
	if ev.CurrentPeriodEnd != nil {
		user.CurrentPeriodEnd = ev.CurrentPeriodEnd
	}
	return nil
}

// applySubscriptionDeleted only rewrites the status. The plan falls back
// toward free through the precedence function; an active manual override
// keeps winning untouched.
func (s *Service) applySubscriptionDeleted(user *models.User) {
	user.SubscriptionStatus = models.SubscriptionStatusCanceled
}

func (s *Service) applyInvoicePaid(ctx context.Context, user *models.User, ev *NormalizedEvent) error {
	// Renewal dedup: the provider may re-deliver the same billing period
	// under a fresh event id, which the id gate cannot catch. Credits are
	// granted only when the period end actually advances.
	samePeriod := ev.CurrentPeriodEnd != nil &&
		user.CurrentPeriodEnd != nil &&
		user.CurrentPeriodEnd.Equal(*ev.CurrentPeriodEnd)

	plan := user.SubscriptionPlan
	if plan == "" || ev.PriceRef != "" {
		resolved, err := s.resolveEventPlan(ctx, ev)
		if err != nil {
			return err
		}
		if resolved != string(entitlements.PlanFree) || plan == "" {
			plan = resolved
		}
		user.SubscriptionPlan = plan
	}

	if ev.CurrentPeriodEnd != nil {
		user.CurrentPeriodEnd = ev.CurrentPeriodEnd
	}
	if user.SubscriptionStatus == "" || user.SubscriptionStatus == models.SubscriptionStatusPastDue {
		user.SubscriptionStatus = models.SubscriptionStatusActive
	}

	if samePeriod {
		return nil
	}
	amount := entitlements.RenewalCredits(entitlements.NormalizePlan(plan))
	if amount > 0 {
		reason := fmt.Sprintf("%s renewal", plan)
		// Same-event retries are deduplicated by the event id even though the
		// failed attempt never persisted the advanced period end.
		if err := s.credits.GrantOnce(ctx, user.ID, amount, reason, ev.EventID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) appendAudit(ctx context.Context, user *models.User, eventType, prevPlan, prevStatus string, ev *NormalizedEvent) error {
	meta, _ := json.Marshal(map[string]string{
		"provider":  ev.Provider,
		"price_ref": ev.PriceRef,
	})
	return s.repo.CreateAuditEntry(ctx, &models.SubscriptionAuditLogEntry{
		UserID:                 user.ID,
		EventType:              eventType,
		PreviousPlan:           prevPlan,
		NewPlan:                user.EffectivePlan,
		PreviousStatus:         prevStatus,
		NewStatus:              user.SubscriptionStatus,
		ProviderEventID:        ev.EventID,
		ProviderSubscriptionID: user.BillingSubscriptionID,
		MetadataJSON:           string(meta),
	})
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// SetPlanOverride pins a user to a plan regardless of billing state,
// optionally time-limited. Unknown plans and past expiries are rejected
// outright, never clamped.
func (s *Service) SetPlanOverride(ctx context.Context, userID uint, plan string, expiresAt *time.Time, reason string) (string, error) {
	if !entitlements.IsKnownPlan(plan) {
		return "", fmt.Errorf("unknown plan %q", plan)
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return "", fmt.Errorf("plan override expiry %s is in the past", expiresAt.Format(time.RFC3339))
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	prevPlan := user.EffectivePlan
	prevStatus := user.SubscriptionStatus

	user.PlanOverride = string(entitlements.NormalizePlan(plan))
	user.PlanOverrideExpiresAt = expiresAt
	user.PlanOverrideReason = strings.TrimSpace(reason)
	user.EffectivePlan = string(entitlements.EffectivePlan(user, time.Now()))
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return "", err
	}

	meta, _ := json.Marshal(map[string]string{"reason": user.PlanOverrideReason})
	if err := s.repo.CreateAuditEntry(ctx, &models.SubscriptionAuditLogEntry{
		UserID:         user.ID,
		EventType:      models.AuditEventPlanOverrideSet,
		PreviousPlan:   prevPlan,
		NewPlan:        user.EffectivePlan,
		PreviousStatus: prevStatus,
		NewStatus:      user.SubscriptionStatus,
		MetadataJSON:   string(meta),
	}); err != nil {
		return "", err
	}
	return user.EffectivePlan, nil
}

// ClearPlanOverride removes an admin override; the effective plan falls back
// to whatever the billing snapshot implies.
func (s *Service) ClearPlanOverride(ctx context.Context, userID uint) (string, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	prevPlan := user.EffectivePlan
	prevStatus := user.SubscriptionStatus

	user.PlanOverride = ""
	user.PlanOverrideExpiresAt = nil
	user.PlanOverrideReason = ""
	user.EffectivePlan = string(entitlements.EffectivePlan(user, time.Now()))
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return "", err
	}

	if err := s.repo.CreateAuditEntry(ctx, &models.SubscriptionAuditLogEntry{
		UserID:         user.ID,
		EventType:      models.AuditEventPlanOverrideCleared,
		PreviousPlan:   prevPlan,
		NewPlan:        user.EffectivePlan,
		PreviousStatus: prevStatus,
		NewStatus:      user.SubscriptionStatus,
	}); err != nil {
		return "", err
	}
	return user.EffectivePlan, nil
}

// GetEffectivePlan lazily re-evaluates the precedence function at read time
// and repairs the cached column when it drifted (e.g. an override expired
// since the last write).
func (s *Service) GetEffectivePlan(ctx context.Context, userID uint) (string, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	effective := string(entitlements.EffectivePlan(user, time.Now()))
	if user.EffectivePlan != effective {
		user.EffectivePlan = effective
		if err := s.repo.SaveUser(ctx, user); err != nil {
			return "", err
		}
	}
	return effective, nil
}
