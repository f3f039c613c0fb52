package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JanBecker/ClipFox/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// ErrUnknownPlan signals a missing plan_policies row. This is fatal
// misconfiguration, not a business condition, and is never absorbed.
var ErrUnknownPlan = errors.New("unknown plan")

// Feature keys checked via IsFeatureAllowed.
const (
	FeatureScheduledRefresh = "scheduled_refresh"
	FeatureOAuth            = "oauth"
)

// ResolvedPolicy is the effective feature policy after cascading workspace
// overrides over plan defaults, field by field.
type ResolvedPolicy struct {
	Plan                        string `json:"plan"`
	AccountsLimit               int    `json:"accounts_limit"`
	AllowScheduledRefresh       bool   `json:"allow_scheduled_refresh"`
	AllowOAuth                  bool   `json:"allow_oauth"`
	DefaultRefreshIntervalHours int    `json:"default_refresh_interval_hours"`
}

// Resolver resolves plan policies with optional workspace overrides. Results
// are pure functions of stored state and therefore cacheable; the cache is
// best-effort and may be nil.
type Resolver struct {
	repo  Repository
	cache Cache
}

// NewResolver creates a resolver. Pass a nil cache to disable caching.
func NewResolver(repo Repository, cache Cache) *Resolver {
	return &Resolver{repo: repo, cache: cache}
}

// NewResolverFromDB creates a redis-cached resolver from a GORM DB handle.
func NewResolverFromDB(db *gorm.DB) *Resolver {
	return NewResolver(NewRepository(db), NewRedisCache())
}

// Resolve loads the PlanPolicy for plan and, when workspaceID is non-nil,
// applies that workspace's override with per-field COALESCE semantics.
func (r *Resolver) Resolve(ctx context.Context, plan string, workspaceID *uint) (*ResolvedPolicy, error) {
	key := strings.ToLower(strings.TrimSpace(plan))
	if key == "" {
		return nil, fmt.Errorf("%w: empty plan", ErrUnknownPlan)
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, key, workspaceID); ok {
			return cached, nil
		}
	}

	pp, err := r.repo.GetPlanPolicy(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, key)
		}
		return nil, err
	}

	resolved := &ResolvedPolicy{
		Plan:                        pp.Plan,
		AccountsLimit:               pp.AccountsLimit,
		AllowScheduledRefresh:       pp.AllowScheduledRefresh,
		AllowOAuth:                  pp.AllowOAuth,
		DefaultRefreshIntervalHours: pp.DefaultRefreshIntervalHours,
	}

	if workspaceID != nil {
		ov, err := r.repo.GetWorkspaceOverride(ctx, *workspaceID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if ov != nil {
			if ov.AccountsLimit != nil {
				resolved.AccountsLimit = *ov.AccountsLimit
			}
			if ov.AllowScheduledRefresh != nil {
				resolved.AllowScheduledRefresh = *ov.AllowScheduledRefresh
			}
			if ov.AllowOAuth != nil {
				resolved.AllowOAuth = *ov.AllowOAuth
			}
			if ov.DefaultRefreshIntervalHours != nil {
				resolved.DefaultRefreshIntervalHours = *ov.DefaultRefreshIntervalHours
			}
		}
	}

	if r.cache != nil {
		r.cache.Set(ctx, key, workspaceID, resolved)
	}
	return resolved, nil
}

// IsFeatureAllowed is a thin projection over Resolve.
func (r *Resolver) IsFeatureAllowed(ctx context.Context, feature, plan string, workspaceID *uint) (bool, error) {
	resolved, err := r.Resolve(ctx, plan, workspaceID)
	if err != nil {
		return false, err
	}
	switch feature {
	case FeatureScheduledRefresh:
		return resolved.AllowScheduledRefresh, nil
	case FeatureOAuth:
		return resolved.AllowOAuth, nil
	default:
		return false, fmt.Errorf("unknown feature %q", feature)
	}
}

// UpdatePlanPolicy applies a typed patch to a plan's policy row. Invalid
// values are rejected with explicit errors, never clamped.
func (r *Resolver) UpdatePlanPolicy(ctx context.Context, plan string, patch PlanPolicyPatch) error {
	key := strings.ToLower(strings.TrimSpace(plan))
	if !entitlements.IsKnownPlan(key) {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := r.repo.UpdatePlanPolicy(ctx, key, patch); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Invalidate(ctx, key)
	}
	return nil
}

// UpsertWorkspaceOverride applies a typed patch to a workspace's override
// row, creating it when absent. Nil fields are left inherited.
func (r *Resolver) UpsertWorkspaceOverride(ctx context.Context, workspaceID uint, patch PlanPolicyPatch) error {
	if workspaceID == 0 {
		return errors.New("workspace_id is required")
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := r.repo.UpsertWorkspaceOverride(ctx, workspaceID, patch); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.InvalidateWorkspace(ctx, workspaceID)
	}
	return nil
}
