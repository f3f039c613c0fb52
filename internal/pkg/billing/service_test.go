package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/internal/pkg/ledger"
	"gorm.io/gorm"
)

type fakeRepository struct {
	mu       sync.Mutex
	events   map[string]*models.ExternalEventRecord
	users    map[uint]*models.User
	mappings map[string]string
	audits   []models.SubscriptionAuditLogEntry
	nextID   uint

	// saveUserFailures makes the next N SaveUser calls fail.
	saveUserFailures int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		events:   make(map[string]*models.ExternalEventRecord),
		users:    make(map[uint]*models.User),
		mappings: make(map[string]string),
	}
}

func (f *fakeRepository) CreateEventIfNotExists(_ context.Context, event *models.ExternalEventRecord) (bool, *models.ExternalEventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := event.Provider + "|" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	f.nextID++
	event.ID = f.nextID
	cp := *event
	f.events[key] = &cp
	out := cp
	return true, &out, nil
}

func (f *fakeRepository) MarkEventProcessed(_ context.Context, id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID != id {
			continue
		}
		ev.ProcessingError = processingError
		if processingError == "" {
			now := time.Now()
			ev.ProcessedAt = &now
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepository) GetUserByCustomerID(_ context.Context, customerID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.BillingCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) SaveUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveUserFailures > 0 {
		f.saveUserFailures--
		return errors.New("save user: connection reset")
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeRepository) FindActivePlanMapping(_ context.Context, provider, priceRef string) (*models.PlanMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan, ok := f.mappings[provider+"|"+priceRef]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.PlanMapping{Provider: provider, ProviderPriceRef: priceRef, InternalPlan: plan, IsActive: true}, nil
}

func (f *fakeRepository) CreateAuditEntry(_ context.Context, entry *models.SubscriptionAuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, *entry)
	return nil
}

type fakeLedgerRepository struct {
	mu      sync.Mutex
	entries []models.CreditLedgerEntry
}

func (f *fakeLedgerRepository) CreateEntry(_ context.Context, entry *models.CreditLedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedgerRepository) SumDeltas(_ context.Context, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, e := range f.entries {
		if e.UserID == userID {
			total += e.Delta
		}
	}
	return total, nil
}

func (f *fakeLedgerRepository) HasEntryWithLink(_ context.Context, userID uint, linkedID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.UserID == userID && e.LinkedID == linkedID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerRepository) ListEntries(_ context.Context, userID uint, _ int) ([]models.CreditLedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CreditLedgerEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestService() (*Service, *fakeRepository, *fakeLedgerRepository) {
	repo := newFakeRepository()
	ledgerRepo := &fakeLedgerRepository{}
	return NewService(repo, ledger.NewService(ledgerRepo)), repo, ledgerRepo
}

func seedUser(repo *fakeRepository, u models.User) *models.User {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	cp := u
	repo.users[u.ID] = &cp
	return &cp
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := WebhookEventInput{
		Provider:        "Stripe",
		ProviderEventID: "evt_1",
		EventType:       EventInvoicePaid,
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	}

	created, first, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("RecordWebhookEvent: %v", err)
	}
	if !created {
		t.Fatalf("expected first delivery to create the record")
	}
	if first.Provider != "stripe" {
		t.Fatalf("expected provider to be normalized, got %q", first.Provider)
	}

	created, second, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("RecordWebhookEvent replay: %v", err)
	}
	if created {
		t.Fatalf("expected replay to not create a record")
	}
	if second.ID != first.ID {
		t.Fatalf("expected replay to return the stored record")
	}
}

func TestRecordWebhookEventHashFallbackID(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := WebhookEventInput{
		Provider:    "stripe",
		EventType:   EventInvoicePaid,
		PayloadJSON: `{"type":"invoice.paid","amount":100}`,
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("RecordWebhookEvent: %v", err)
	}
	if !created || !strings.HasPrefix(stored.ProviderEventID, "hash:") {
		t.Fatalf("expected payload hash fallback id, got %q", stored.ProviderEventID)
	}

	// Same payload again hits the same synthetic id.
	created, _, err = svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("RecordWebhookEvent replay: %v", err)
	}
	if created {
		t.Fatalf("expected identical payload to deduplicate")
	}
}

func TestHandleEventCheckoutCompleted(t *testing.T) {
	svc, repo, ledgerRepo := newTestService()
	ctx := context.Background()
	repo.mappings["stripe|price_pro_monthly"] = "pro"
	seedUser(repo, models.User{ID: 42, EffectivePlan: "free"})

	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC()
	effective, err := svc.HandleEvent(ctx, &NormalizedEvent{
		Provider:         ProviderStripe,
		EventID:          "evt_checkout_1",
		Type:             EventCheckoutCompleted,
		UserID:           42,
		CustomerID:       "cus_123",
		SubscriptionID:   "sub_456",
		PriceRef:         "price_pro_monthly",
		Status:           "complete",
		CurrentPeriodEnd: &periodEnd,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if effective != "pro" {
		t.Fatalf("expected effective plan pro, got %q", effective)
	}

	user, _ := repo.GetUserByID(ctx, 42)
	if user.BillingCustomerID != "cus_123" || user.BillingSubscriptionID != "sub_456" {
		t.Fatalf("expected billing ids to be stored, got %+v", user)
	}
	if user.SubscriptionStatus != models.SubscriptionStatusActive {
		t.Fatalf("expected status active, got %q", user.SubscriptionStatus)
	}
	if user.EffectivePlan != "pro" {
		t.Fatalf("expected cached effective plan pro, got %q", user.EffectivePlan)
	}

	balance, _ := ledgerRepo.SumDeltas(ctx, 42)
	if balance != 500 {
		t.Fatalf("expected 500 activation credits, got %d", balance)
	}
	entries, _ := ledgerRepo.ListEntries(ctx, 42, 10)
	if len(entries) != 1 || entries[0].LinkedID != "evt_checkout_1" {
		t.Fatalf("expected one grant linked to the event, got %+v", entries)
	}

	if len(repo.audits) != 1 || repo.audits[0].EventType != models.AuditEventCheckoutCompleted {
		t.Fatalf("expected one checkout audit entry, got %+v", repo.audits)
	}
	if repo.audits[0].PreviousPlan != "free" || repo.audits[0].NewPlan != "pro" {
		t.Fatalf("expected audit to capture free -> pro, got %+v", repo.audits[0])
	}
}

func TestHandleEventInvoicePaidRenewalDedup(t *testing.T) {
	svc, repo, ledgerRepo := newTestService()
	ctx := context.Background()

	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	seedUser(repo, models.User{
		ID:                 42,
		BillingCustomerID:  "cus_123",
		SubscriptionStatus: models.SubscriptionStatusActive,
		SubscriptionPlan:   "pro",
		CurrentPeriodEnd:   &periodEnd,
		EffectivePlan:      "pro",
	})

	// Redelivered billing period under a fresh event id: no grant.
	if _, err := svc.HandleEvent(ctx, &NormalizedEvent{
		Provider:         ProviderStripe,
		EventID:          "evt_inv_dup",
		Type:             EventInvoicePaid,
		CustomerID:       "cus_123",
		CurrentPeriodEnd: &periodEnd,
	}); err != nil {
		t.Fatalf("HandleEvent same period: %v", err)
	}
	if balance, _ := ledgerRepo.SumDeltas(ctx, 42); balance != 0 {
		t.Fatalf("expected no credits for same billing period, got %d", balance)
	}

	// Advanced period end: renewal credits flow.
	nextPeriod := periodEnd.Add(30 * 24 * time.Hour)
	if _, err := svc.HandleEvent(ctx, &NormalizedEvent{
		Provider:         ProviderStripe,
		EventID:          "evt_inv_next",
		Type:             EventInvoicePaid,
		CustomerID:       "cus_123",
		CurrentPeriodEnd: &nextPeriod,
	}); err != nil {
		t.Fatalf("HandleEvent next period: %v", err)
	}
	if balance, _ := ledgerRepo.SumDeltas(ctx, 42); balance != 500 {
		t.Fatalf("expected 500 renewal credits, got %d", balance)
	}

	user, _ := repo.GetUserByID(ctx, 42)
	if user.CurrentPeriodEnd == nil || !user.CurrentPeriodEnd.Equal(nextPeriod) {
		t.Fatalf("expected stored period end to advance, got %v", user.CurrentPeriodEnd)
	}
}

func TestHandleEventSubscriptionDeletedKeepsOverride(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seedUser(repo, models.User{
		ID:                 42,
		BillingCustomerID:  "cus_123",
		SubscriptionStatus: models.SubscriptionStatusActive,
		SubscriptionPlan:   "pro",
		PlanOverride:       "enterprise",
		EffectivePlan:      "enterprise",
	})

	effective, err := svc.HandleEvent(ctx, &NormalizedEvent{
		Provider:   ProviderStripe,
		EventID:    "evt_del_1",
		Type:       EventSubscriptionDeleted,
		CustomerID: "cus_123",
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if effective != "enterprise" {
		t.Fatalf("expected override to survive cancellation, got %q", effective)
	}

	user, _ := repo.GetUserByID(ctx, 42)
	if user.SubscriptionStatus != models.SubscriptionStatusCanceled {
		t.Fatalf("expected status canceled, got %q", user.SubscriptionStatus)
	}
	if user.SubscriptionPlan != "pro" {
		t.Fatalf("expected stored plan to remain for history, got %q", user.SubscriptionPlan)
	}
}

func TestHandleEventSubscriptionDeletedFallsBackToFree(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seedUser(repo, models.User{
		ID:                 42,
		BillingCustomerID:  "cus_123",
		SubscriptionStatus: models.SubscriptionStatusActive,
		SubscriptionPlan:   "pro",
		EffectivePlan:      "pro",
	})

	effective, err := svc.HandleEvent(ctx, &NormalizedEvent{
		Provider:   ProviderStripe,
		EventID:    "evt_del_2",
		Type:       EventSubscriptionDeleted,
		CustomerID: "cus_123",
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if effective != "free" {
		t.Fatalf("expected fallback to free, got %q", effective)
	}
}

func TestHandleEventUnmappedPriceFallsBackToFree(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	seedUser(repo, models.User{ID: 42, EffectivePlan: "free"})

	effective, err := svc.HandleEvent(ctx, &NormalizedEvent{
		Provider:   ProviderStripe,
		EventID:    "evt_gap_1",
		Type:       EventCheckoutCompleted,
		UserID:     42,
		CustomerID: "cus_123",
		PriceRef:   "price_unmapped",
	})
	if err != nil {
		t.Fatalf("HandleEvent must not fail on a mapping gap: %v", err)
	}
	if effective != "free" {
		t.Fatalf("expected free for unmapped price, got %q", effective)
	}
}

func TestHandleEventUnknownUser(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.HandleEvent(context.Background(), &NormalizedEvent{
		Provider:   ProviderStripe,
		EventID:    "evt_orphan",
		Type:       EventInvoicePaid,
		CustomerID: "cus_unknown",
	}); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found for unknown customer, got %v", err)
	}
}

func TestMarkEventProcessedRetrySemantics(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, stored, err := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_retry",
		EventType:       EventInvoicePaid,
		PayloadJSON:     `{}`,
	})
	if err != nil {
		t.Fatalf("RecordWebhookEvent: %v", err)
	}

	if err := svc.MarkEventProcessed(ctx, stored.ID, fmt.Errorf("user lookup failed")); err != nil {
		t.Fatalf("MarkEventProcessed(err): %v", err)
	}
	_, after, _ := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_retry",
		EventType:       EventInvoicePaid,
		PayloadJSON:     `{}`,
	})
	if after.ProcessedAt != nil {
		t.Fatalf("expected failed event to stay unprocessed for retry")
	}
	if after.ProcessingError == "" {
		t.Fatalf("expected processing error to be recorded")
	}

	if err := svc.MarkEventProcessed(ctx, stored.ID, nil); err != nil {
		t.Fatalf("MarkEventProcessed(nil): %v", err)
	}
	_, final, _ := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_retry",
		EventType:       EventInvoicePaid,
		PayloadJSON:     `{}`,
	})
	if final.ProcessedAt == nil {
		t.Fatalf("expected successful processing to stamp ProcessedAt")
	}
}

func TestHandleEventRetryAfterPartialFailureGrantsOnce(t *testing.T) {
	svc, repo, ledgerRepo := newTestService()
	ctx := context.Background()
	repo.mappings["stripe|price_pro_monthly"] = "pro"
	seedUser(repo, models.User{ID: 42, EffectivePlan: "free"})

	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC()
	ev := &NormalizedEvent{
		Provider:         ProviderStripe,
		EventID:          "evt_crash_1",
		Type:             EventCheckoutCompleted,
		UserID:           42,
		CustomerID:       "cus_123",
		SubscriptionID:   "sub_456",
		PriceRef:         "price_pro_monthly",
		CurrentPeriodEnd: &periodEnd,
	}

	// First attempt grants the credits, then dies on the user write. The
	// event record stays unprocessed, so the next delivery re-runs it.
	repo.saveUserFailures = 1
	if _, err := svc.HandleEvent(ctx, ev); err == nil {
		t.Fatalf("expected first attempt to fail on the user write")
	}

	effective, err := svc.HandleEvent(ctx, ev)
	if err != nil {
		t.Fatalf("HandleEvent retry: %v", err)
	}
	if effective != "pro" {
		t.Fatalf("expected retry to land on pro, got %q", effective)
	}

	entries, _ := ledgerRepo.ListEntries(ctx, 42, 10)
	if len(entries) != 1 {
		t.Fatalf("one applied event must yield exactly one grant, got %d entries", len(entries))
	}
	if balance, _ := ledgerRepo.SumDeltas(ctx, 42); balance != 500 {
		t.Fatalf("expected 500 credits after fail-then-retry, got %d", balance)
	}

	user, _ := repo.GetUserByID(ctx, 42)
	if user.EffectivePlan != "pro" || user.BillingSubscriptionID != "sub_456" {
		t.Fatalf("expected retry to complete the user update, got %+v", user)
	}
	if len(repo.audits) != 1 {
		t.Fatalf("expected a single audit entry after retry, got %d", len(repo.audits))
	}
}

func TestInvoicePaidRetryAfterPartialFailureGrantsOnce(t *testing.T) {
	svc, repo, ledgerRepo := newTestService()
	ctx := context.Background()

	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	seedUser(repo, models.User{
		ID:                 42,
		BillingCustomerID:  "cus_123",
		SubscriptionStatus: models.SubscriptionStatusActive,
		SubscriptionPlan:   "pro",
		CurrentPeriodEnd:   &periodEnd,
		EffectivePlan:      "pro",
	})

	// The failed attempt never persisted the advanced period end, so the
	// period dedup cannot catch the retry; the event id dedup must.
	nextPeriod := periodEnd.Add(30 * 24 * time.Hour)
	ev := &NormalizedEvent{
		Provider:         ProviderStripe,
		EventID:          "evt_inv_crash",
		Type:             EventInvoicePaid,
		CustomerID:       "cus_123",
		CurrentPeriodEnd: &nextPeriod,
	}

	repo.saveUserFailures = 1
	if _, err := svc.HandleEvent(ctx, ev); err == nil {
		t.Fatalf("expected first attempt to fail on the user write")
	}
	if _, err := svc.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("HandleEvent retry: %v", err)
	}

	if balance, _ := ledgerRepo.SumDeltas(ctx, 42); balance != 500 {
		t.Fatalf("expected exactly one renewal grant, got balance %d", balance)
	}
	user, _ := repo.GetUserByID(ctx, 42)
	if user.CurrentPeriodEnd == nil || !user.CurrentPeriodEnd.Equal(nextPeriod) {
		t.Fatalf("expected retry to persist the advanced period end, got %v", user.CurrentPeriodEnd)
	}
}

func TestSetAndClearPlanOverride(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	seedUser(repo, models.User{ID: 7, EffectivePlan: "free"})

	if _, err := svc.SetPlanOverride(ctx, 7, "platinum", nil, "typo"); err == nil {
		t.Fatalf("expected unknown plan to be rejected")
	}
	past := time.Now().Add(-time.Hour)
	if _, err := svc.SetPlanOverride(ctx, 7, "pro", &past, "expired"); err == nil {
		t.Fatalf("expected past expiry to be rejected")
	}

	future := time.Now().Add(48 * time.Hour)
	effective, err := svc.SetPlanOverride(ctx, 7, "Enterprise", &future, "partner deal")
	if err != nil {
		t.Fatalf("SetPlanOverride: %v", err)
	}
	if effective != "enterprise" {
		t.Fatalf("expected effective enterprise, got %q", effective)
	}

	effective, err = svc.ClearPlanOverride(ctx, 7)
	if err != nil {
		t.Fatalf("ClearPlanOverride: %v", err)
	}
	if effective != "free" {
		t.Fatalf("expected fallback to free after clear, got %q", effective)
	}

	if len(repo.audits) != 2 {
		t.Fatalf("expected set+clear audit entries, got %d", len(repo.audits))
	}
	if repo.audits[0].EventType != models.AuditEventPlanOverrideSet ||
		repo.audits[1].EventType != models.AuditEventPlanOverrideCleared {
		t.Fatalf("unexpected audit types: %+v", repo.audits)
	}
}

func TestGetEffectivePlanRepairsStaleCache(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	expired := time.Now().Add(-time.Minute)
	seedUser(repo, models.User{
		ID:                    7,
		PlanOverride:          "enterprise",
		PlanOverrideExpiresAt: &expired,
		EffectivePlan:         "enterprise",
	})

	effective, err := svc.GetEffectivePlan(ctx, 7)
	if err != nil {
		t.Fatalf("GetEffectivePlan: %v", err)
	}
	if effective != "free" {
		t.Fatalf("expected expired override to yield free, got %q", effective)
	}
	user, _ := repo.GetUserByID(ctx, 7)
	if user.EffectivePlan != "free" {
		t.Fatalf("expected cached plan to be repaired, got %q", user.EffectivePlan)
	}
}
