package refresher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/internal/pkg/metrics/counter"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Scheduler periodically refreshes metrics for social accounts in scheduled
// mode. One scheduler per process; callers own its lifecycle and stop it on
// shutdown.
type Scheduler struct {
	repo    Repository
	fetcher MetricsFetcher

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// cycleActive guards against overlapping cycles when a slow upstream
	// makes one cycle outlast the tick interval.
	cycleActive int32
}

// NewScheduler creates a scheduler from injected dependencies.
func NewScheduler(repo Repository, fetcher MetricsFetcher) *Scheduler {
	return &Scheduler{repo: repo, fetcher: fetcher}
}

// NewSchedulerFromDB creates a scheduler with the gateway fetcher.
func NewSchedulerFromDB(db *gorm.DB) *Scheduler {
	return NewScheduler(NewRepository(db), NewHTTPMetricsFetcherFromEnv())
}

// Start launches the refresh worker. Idempotent; a running scheduler stays
// running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	intervalMin := 5
	if settings := models.GetAppSettings(); settings != nil {
		intervalMin = settings.GetRefreshWorkerInterval()
	}

	// Recreate stop channel each start cycle so the scheduler can be restarted.
	s.stopCh = make(chan struct{})
	s.ticker = time.NewTicker(time.Duration(intervalMin) * time.Minute)
	s.running = true

	s.wg.Add(1)
	go s.refreshWorker(s.stopCh)

	log.Infof("[Refresher] Started scheduler (interval: %d minutes)", intervalMin)
}

// Stop signals the worker and waits for it to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.ticker.Stop()
	close(s.stopCh)
	s.stopCh = nil
	s.running = false

	s.wg.Wait()
	log.Info("[Refresher] Scheduler stopped")
}

// IsRunning reports whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) refreshWorker(stopCh <-chan struct{}) {
	defer s.wg.Done()

	// First batch runs right away; waiting a full interval after boot would
	// leave already-due accounts sitting there.
	s.runGatedCycle()

	for {
		select {
		case <-stopCh:
			log.Info("[Refresher] Refresh worker stopping")
			return
		case <-s.ticker.C:
			// Drain buffered usage counters alongside the refresh cycle.
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[Refresher] Counter flush error: %v", err)
			}
			s.runGatedCycle()
		}
	}
}

// runGatedCycle runs one cycle unless scheduled refresh is disabled.
func (s *Scheduler) runGatedCycle() {
	if settings := models.GetAppSettings(); settings != nil && !settings.IsScheduledRefreshEnabled() {
		return
	}
	if n, err := s.RunCycleOnce(context.Background()); err != nil {
		log.Errorf("[Refresher] Cycle error: %v", err)
	} else if n > 0 {
		log.Debugf("[Refresher] Cycle refreshed %d accounts", n)
	}
}

// RunCycleOnce processes one batch of due accounts and returns how many were
// attempted. A failure on one account never blocks the rest of the batch. A
// second concurrent call is a no-op.
func (s *Scheduler) RunCycleOnce(ctx context.Context) (int, error) {
	if !atomic.CompareAndSwapInt32(&s.cycleActive, 0, 1) {
		log.Debug("[Refresher] Previous cycle still running, skipping")
		return 0, nil
	}
	defer atomic.StoreInt32(&s.cycleActive, 0)

	batchSize := 100
	if settings := models.GetAppSettings(); settings != nil {
		batchSize = settings.GetRefreshBatchSize()
	}

	due, err := s.repo.ListDue(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for i := range due {
		select {
		case <-ctx.Done():
			return attempted, ctx.Err()
		default:
		}
		attempted++
		if err := s.processAccount(ctx, &due[i]); err != nil {
			log.Errorf("[Refresher] Account %d (%s/%s) refresh failed: %v",
				due[i].ID, due[i].Platform, due[i].Handle, err)
		}
	}
	return attempted, nil
}

// processAccount performs one refresh attempt and persists the outcome. The
// returned error reports a fetch failure already recorded on the account;
// persistence errors are returned as-is.
func (s *Scheduler) processAccount(ctx context.Context, account *models.SocialAccount) error {
	timeoutSec := 15
	if settings := models.GetAppSettings(); settings != nil {
		timeoutSec = settings.GetRefreshFetchTimeout()
	}
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	now := time.Now()
	account.LastRefreshAttemptAt = &now

	metrics, fetchErr := s.fetcher.FetchMetrics(fetchCtx, account)
	if fetchErr != nil {
		s.applyFailure(account, now, fetchErr)
		if err := s.repo.SaveAccount(ctx, account); err != nil {
			return err
		}
		return fetchErr
	}

	if err := s.applySuccess(ctx, account, metrics, now); err != nil {
		return err
	}
	return s.repo.SaveAccount(ctx, account)
}

// applySuccess stores the snapshot, updates the denormalized metrics and
// resets the failure state.
func (s *Scheduler) applySuccess(ctx context.Context, account *models.SocialAccount, metrics *Metrics, now time.Time) error {
	if err := s.repo.CreateSnapshot(ctx, &models.MetricsSnapshot{
		SocialAccountID: account.ID,
		FollowerCount:   metrics.FollowerCount,
		PostCount:       metrics.PostCount,
		EngagementRate:  metrics.EngagementRate,
		IsVerified:      metrics.IsVerified,
	}); err != nil {
		return err
	}

	account.FollowerCount = metrics.FollowerCount
	account.PostCount = metrics.PostCount
	account.EngagementRate = metrics.EngagementRate
	account.IsVerified = metrics.IsVerified
	account.RefreshCount++

	account.RefreshFailCount = 0
	account.RefreshError = ""
	if account.Status == models.SocialStatusError {
		account.Status = models.SocialStatusActive
	}

	// NextRefreshAt stays null for manual-mode accounts.
	if account.RefreshMode == models.RefreshModeScheduled {
		interval := account.RefreshIntervalHours
		if interval <= 0 {
			interval = 24
		}
		next := now.Add(time.Duration(interval) * time.Hour)
		account.NextRefreshAt = &next
	}
	return nil
}

// applyFailure bumps the failure count, schedules the backoff retry and flips
// the status to error once the threshold is reached.
func (s *Scheduler) applyFailure(account *models.SocialAccount, now time.Time, fetchErr error) {
	account.RefreshFailCount++
	account.RefreshError = fetchErr.Error()
	if account.RefreshFailCount >= models.RefreshFailThreshold {
		account.Status = models.SocialStatusError
	}

	if account.RefreshMode == models.RefreshModeScheduled {
		next := now.Add(time.Duration(BackoffHours(account.RefreshFailCount)) * time.Hour)
		account.NextRefreshAt = &next
	}
}
