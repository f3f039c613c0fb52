package refresher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/internal/pkg/policy"
)

// ErrScheduledRefreshNotAllowed signals that the account owner's plan does
// not include scheduled refresh. Controllers surface it as upgrade_required.
var ErrScheduledRefreshNotAllowed = errors.New("scheduled refresh is not included in the current plan")

// PolicySource resolves the effective feature policy for a plan, optionally
// cascaded through a workspace. Satisfied by policy.Resolver.
type PolicySource interface {
	Resolve(ctx context.Context, plan string, workspaceID *uint) (*policy.ResolvedPolicy, error)
}

// SetRefreshMode switches an account between manual and scheduled refresh,
// enforcing the plan gate on the way in. effectivePlan is the owner's
// resolved plan at call time.
func (s *Scheduler) SetRefreshMode(ctx context.Context, policies PolicySource, accountID uint, mode, effectivePlan string) (*models.SocialAccount, error) {
	if mode != models.RefreshModeManual && mode != models.RefreshModeScheduled {
		return nil, fmt.Errorf("invalid refresh mode %q", mode)
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.RefreshMode == mode {
		return account, nil
	}

	if mode == models.RefreshModeScheduled {
		resolved, err := policies.Resolve(ctx, effectivePlan, account.WorkspaceID)
		if err != nil {
			return nil, err
		}
		if !resolved.AllowScheduledRefresh {
			return nil, ErrScheduledRefreshNotAllowed
		}

		account.RefreshMode = models.RefreshModeScheduled
		if account.RefreshIntervalHours <= 0 {
			account.RefreshIntervalHours = resolved.DefaultRefreshIntervalHours
		}
		// Due immediately; the next cycle picks it up.
		now := time.Now()
		account.NextRefreshAt = &now
	} else {
		account.RefreshMode = models.RefreshModeManual
		account.NextRefreshAt = nil
	}

	if err := s.repo.SaveAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ManualRefresh performs one immediate refresh attempt for an account,
// regardless of its refresh mode. The fetch outcome (including backoff
// bookkeeping for scheduled accounts) is persisted exactly as in a cycle.
func (s *Scheduler) ManualRefresh(ctx context.Context, accountID uint) (*models.SocialAccount, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status == models.SocialStatusPaused {
		return nil, fmt.Errorf("account %d is paused", accountID)
	}

	if err := s.processAccount(ctx, account); err != nil {
		return account, err
	}
	return account, nil
}
