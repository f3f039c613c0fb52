package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/internal/pkg/policy"
	"gorm.io/gorm"
)

type fakeRepository struct {
	mu           sync.Mutex
	accounts     map[uint]*models.SocialAccount
	snapshots    []models.MetricsSnapshot
	listDueCalls int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{accounts: make(map[uint]*models.SocialAccount)}
}

func (f *fakeRepository) put(a models.SocialAccount) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := a
	f.accounts[a.ID] = &cp
}

func (f *fakeRepository) ListDue(_ context.Context, now time.Time, limit int) ([]models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listDueCalls++
	var due []models.SocialAccount
	for _, a := range f.accounts {
		if a.RefreshMode != models.RefreshModeScheduled || a.Status == models.SocialStatusPaused {
			continue
		}
		if a.NextRefreshAt != nil && !a.NextRefreshAt.After(now) {
			due = append(due, *a)
		}
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (f *fakeRepository) GetAccount(_ context.Context, id uint) (*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepository) SaveAccount(_ context.Context, account *models.SocialAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *account
	f.accounts[account.ID] = &cp
	return nil
}

func (f *fakeRepository) CreateSnapshot(_ context.Context, snapshot *models.MetricsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, *snapshot)
	return nil
}

type fakeFetcher struct {
	fetch func(ctx context.Context, account *models.SocialAccount) (*Metrics, error)
}

func (f *fakeFetcher) FetchMetrics(ctx context.Context, account *models.SocialAccount) (*Metrics, error) {
	return f.fetch(ctx, account)
}

type fakePolicySource struct {
	resolved *policy.ResolvedPolicy
	err      error
}

func (f *fakePolicySource) Resolve(context.Context, string, *uint) (*policy.ResolvedPolicy, error) {
	return f.resolved, f.err
}

func pastDue() *time.Time {
	t := time.Now().Add(-time.Minute)
	return &t
}

func TestRunCycleOnceSuccessResetsFailureState(t *testing.T) {
	repo := newFakeRepository()
	repo.put(models.SocialAccount{
		ID:                   1,
		Platform:             "tiktok",
		ExternalAccountID:    "ext-1",
		RefreshMode:          models.RefreshModeScheduled,
		RefreshIntervalHours: 6,
		NextRefreshAt:        pastDue(),
		RefreshFailCount:     3,
		RefreshError:         "timeout",
		Status:               models.SocialStatusActive,
	})
	s := NewScheduler(repo, &fakeFetcher{
		fetch: func(context.Context, *models.SocialAccount) (*Metrics, error) {
			return &Metrics{FollowerCount: 1200, PostCount: 34, EngagementRate: 2.5, IsVerified: true}, nil
		},
	})

	n, err := s.RunCycleOnce(context.Background())
	if err != nil {
		t.Fatalf("RunCycleOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 attempted account, got %d", n)
	}

	a, _ := repo.GetAccount(context.Background(), 1)
	if a.RefreshFailCount != 0 || a.RefreshError != "" {
		t.Fatalf("expected failure state reset, got count=%d err=%q", a.RefreshFailCount, a.RefreshError)
	}
	if a.FollowerCount != 1200 || a.RefreshCount != 1 {
		t.Fatalf("expected denormalized metrics update, got %+v", a)
	}
	if a.NextRefreshAt == nil || time.Until(*a.NextRefreshAt) < 5*time.Hour {
		t.Fatalf("expected next refresh ~6h out, got %v", a.NextRefreshAt)
	}
	if len(repo.snapshots) != 1 || repo.snapshots[0].SocialAccountID != 1 {
		t.Fatalf("expected one snapshot, got %+v", repo.snapshots)
	}
}

func TestRunCycleOnceFailureBackoffAndThreshold(t *testing.T) {
	repo := newFakeRepository()
	repo.put(models.SocialAccount{
		ID:                1,
		Platform:          "instagram",
		ExternalAccountID: "ext-1",
		RefreshMode:       models.RefreshModeScheduled,
		NextRefreshAt:     pastDue(),
		RefreshFailCount:  models.RefreshFailThreshold - 1,
		Status:            models.SocialStatusActive,
	})
	s := NewScheduler(repo, &fakeFetcher{
		fetch: func(context.Context, *models.SocialAccount) (*Metrics, error) {
			return nil, errors.New("upstream 503")
		},
	})

	if _, err := s.RunCycleOnce(context.Background()); err != nil {
		t.Fatalf("RunCycleOnce: %v", err)
	}

	a, _ := repo.GetAccount(context.Background(), 1)
	if a.RefreshFailCount != models.RefreshFailThreshold {
		t.Fatalf("expected fail count %d, got %d", models.RefreshFailThreshold, a.RefreshFailCount)
	}
	if a.Status != models.SocialStatusError {
		t.Fatalf("expected status error at threshold, got %q", a.Status)
	}
	if a.RefreshError != "upstream 503" {
		t.Fatalf("expected refresh error recorded, got %q", a.RefreshError)
	}
	wantBackoff := time.Duration(BackoffHours(models.RefreshFailThreshold)) * time.Hour
	if a.NextRefreshAt == nil || time.Until(*a.NextRefreshAt) < wantBackoff-time.Minute {
		t.Fatalf("expected backoff of %v, got next at %v", wantBackoff, a.NextRefreshAt)
	}
	if len(repo.snapshots) != 0 {
		t.Fatalf("expected no snapshot on failure")
	}
}

func TestRunCycleOnceIsolatesFailures(t *testing.T) {
	repo := newFakeRepository()
	repo.put(models.SocialAccount{
		ID: 1, Platform: "tiktok", ExternalAccountID: "bad",
		RefreshMode: models.RefreshModeScheduled, NextRefreshAt: pastDue(),
	})
	repo.put(models.SocialAccount{
		ID: 2, Platform: "tiktok", ExternalAccountID: "good",
		RefreshMode: models.RefreshModeScheduled, NextRefreshAt: pastDue(),
	})
	s := NewScheduler(repo, &fakeFetcher{
		fetch: func(_ context.Context, account *models.SocialAccount) (*Metrics, error) {
			if account.ExternalAccountID == "bad" {
				return nil, fmt.Errorf("boom")
			}
			return &Metrics{FollowerCount: 10}, nil
		},
	})

	n, err := s.RunCycleOnce(context.Background())
	if err != nil {
		t.Fatalf("RunCycleOnce: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected both accounts attempted, got %d", n)
	}
	if len(repo.snapshots) != 1 || repo.snapshots[0].SocialAccountID != 2 {
		t.Fatalf("expected snapshot only for the healthy account, got %+v", repo.snapshots)
	}
}

func TestRunCycleOnceSkipsWhenCycleActive(t *testing.T) {
	repo := newFakeRepository()
	repo.put(models.SocialAccount{
		ID: 1, Platform: "tiktok", ExternalAccountID: "ext-1",
		RefreshMode: models.RefreshModeScheduled, NextRefreshAt: pastDue(),
	})
	s := NewScheduler(repo, &fakeFetcher{
		fetch: func(context.Context, *models.SocialAccount) (*Metrics, error) {
			return &Metrics{}, nil
		},
	})

	s.cycleActive = 1
	n, err := s.RunCycleOnce(context.Background())
	if err != nil {
		t.Fatalf("RunCycleOnce: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected overlapping cycle to be skipped, got %d attempts", n)
	}
}

func TestStartRunsImmediateCycle(t *testing.T) {
	repo := newFakeRepository()
	repo.put(models.SocialAccount{
		ID: 1, Platform: "tiktok", ExternalAccountID: "ext-1",
		RefreshMode: models.RefreshModeScheduled, NextRefreshAt: pastDue(),
		Status: models.SocialStatusActive,
	})
	s := NewScheduler(repo, &fakeFetcher{
		fetch: func(context.Context, *models.SocialAccount) (*Metrics, error) {
			return &Metrics{FollowerCount: 10}, nil
		},
	})

	s.Start()
	defer s.Stop()

	// The first batch must not wait for the first tick.
	deadline := time.Now().Add(2 * time.Second)
	for {
		a, _ := repo.GetAccount(context.Background(), 1)
		if a.FollowerCount == 10 {
			break
		}
		if time.Now().After(deadline) {
			repo.mu.Lock()
			calls := repo.listDueCalls
			repo.mu.Unlock()
			t.Fatalf("expected a refresh cycle before the first tick (ListDue calls: %d)", calls)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetRefreshModePlanGate(t *testing.T) {
	repo := newFakeRepository()
	repo.put(models.SocialAccount{
		ID: 1, Platform: "tiktok", ExternalAccountID: "ext-1",
		RefreshMode: models.RefreshModeManual,
	})
	s := NewScheduler(repo, &fakeFetcher{})

	denied := &fakePolicySource{resolved: &policy.ResolvedPolicy{Plan: "free", AllowScheduledRefresh: false}}
	if _, err := s.SetRefreshMode(context.Background(), denied, 1, models.RefreshModeScheduled, "free"); !errors.Is(err, ErrScheduledRefreshNotAllowed) {
		t.Fatalf("expected ErrScheduledRefreshNotAllowed, got %v", err)
	}

	allowed := &fakePolicySource{resolved: &policy.ResolvedPolicy{
		Plan: "pro", AllowScheduledRefresh: true, DefaultRefreshIntervalHours: 12,
	}}
	account, err := s.SetRefreshMode(context.Background(), allowed, 1, models.RefreshModeScheduled, "pro")
	if err != nil {
		t.Fatalf("SetRefreshMode: %v", err)
	}
	if account.RefreshMode != models.RefreshModeScheduled {
		t.Fatalf("expected scheduled mode, got %q", account.RefreshMode)
	}
	if account.NextRefreshAt == nil {
		t.Fatalf("expected immediate due time for newly scheduled account")
	}
	if account.RefreshIntervalHours != 12 {
		t.Fatalf("expected policy default interval 12, got %d", account.RefreshIntervalHours)
	}

	account, err = s.SetRefreshMode(context.Background(), allowed, 1, models.RefreshModeManual, "pro")
	if err != nil {
		t.Fatalf("SetRefreshMode back to manual: %v", err)
	}
	if account.NextRefreshAt != nil {
		t.Fatalf("expected NextRefreshAt cleared on manual mode")
	}
}

func TestSetRefreshModeRejectsInvalidMode(t *testing.T) {
	s := NewScheduler(newFakeRepository(), &fakeFetcher{})
	if _, err := s.SetRefreshMode(context.Background(), &fakePolicySource{}, 1, "hourly", "pro"); err == nil {
		t.Fatalf("expected invalid mode to be rejected")
	}
}

func TestManualRefreshKeepsManualInvariant(t *testing.T) {
	repo := newFakeRepository()
	repo.put(models.SocialAccount{
		ID: 1, Platform: "tiktok", ExternalAccountID: "ext-1",
		RefreshMode: models.RefreshModeManual,
	})
	s := NewScheduler(repo, &fakeFetcher{
		fetch: func(context.Context, *models.SocialAccount) (*Metrics, error) {
			return &Metrics{FollowerCount: 77}, nil
		},
	})

	account, err := s.ManualRefresh(context.Background(), 1)
	if err != nil {
		t.Fatalf("ManualRefresh: %v", err)
	}
	if account.FollowerCount != 77 || account.RefreshCount != 1 {
		t.Fatalf("expected metrics applied, got %+v", account)
	}
	if account.NextRefreshAt != nil {
		t.Fatalf("manual account must keep NextRefreshAt null")
	}

	stored, _ := repo.GetAccount(context.Background(), 1)
	if stored.NextRefreshAt != nil {
		t.Fatalf("persisted manual account must keep NextRefreshAt null")
	}
}

func TestManualRefreshRejectsPaused(t *testing.T) {
	repo := newFakeRepository()
	repo.put(models.SocialAccount{
		ID: 1, Platform: "tiktok", ExternalAccountID: "ext-1",
		RefreshMode: models.RefreshModeManual, Status: models.SocialStatusPaused,
	})
	s := NewScheduler(repo, &fakeFetcher{})

	if _, err := s.ManualRefresh(context.Background(), 1); err == nil {
		t.Fatalf("expected paused account to be rejected")
	}
}
