package policy

import (
	"context"
	"errors"

	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the policy resolver.
type Repository interface {
	GetPlanPolicy(ctx context.Context, plan string) (*models.PlanPolicy, error)
	GetWorkspaceOverride(ctx context.Context, workspaceID uint) (*models.WorkspacePolicyOverride, error)
	UpdatePlanPolicy(ctx context.Context, plan string, patch PlanPolicyPatch) error
	UpsertWorkspaceOverride(ctx context.Context, workspaceID uint, patch PlanPolicyPatch) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a policy repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetPlanPolicy(ctx context.Context, plan string) (*models.PlanPolicy, error) {
	var pp models.PlanPolicy
	if err := r.db.WithContext(ctx).Where("plan = ?", plan).First(&pp).Error; err != nil {
		return nil, err
	}
	return &pp, nil
}

func (r *gormRepository) GetWorkspaceOverride(ctx context.Context, workspaceID uint) (*models.WorkspacePolicyOverride, error) {
	var ov models.WorkspacePolicyOverride
	if err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&ov).Error; err != nil {
		return nil, err
	}
	return &ov, nil
}

func (r *gormRepository) UpdatePlanPolicy(ctx context.Context, plan string, patch PlanPolicyPatch) error {
	updates := patchToUpdates(patch)
	tx := r.db.WithContext(ctx).
		Model(&models.PlanPolicy{}).
		Where("plan = ?", plan).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) UpsertWorkspaceOverride(ctx context.Context, workspaceID uint, patch PlanPolicyPatch) error {
	var ov models.WorkspacePolicyOverride
	err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&ov).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		ov = models.WorkspacePolicyOverride{WorkspaceID: workspaceID}
		applyPatch(&ov, patch)
		return r.db.WithContext(ctx).Create(&ov).Error
	}
	applyPatch(&ov, patch)
	return r.db.WithContext(ctx).Save(&ov).Error
}

func patchToUpdates(patch PlanPolicyPatch) map[string]interface{} {
	updates := map[string]interface{}{}
	if patch.AccountsLimit != nil {
		updates["accounts_limit"] = *patch.AccountsLimit
	}
	if patch.AllowScheduledRefresh != nil {
		updates["allow_scheduled_refresh"] = *patch.AllowScheduledRefresh
	}
	if patch.AllowOAuth != nil {
		updates["allow_oauth"] = *patch.AllowOAuth
	}
	if patch.DefaultRefreshIntervalHours != nil {
		updates["default_refresh_interval_hours"] = *patch.DefaultRefreshIntervalHours
	}
	return updates
}

func applyPatch(ov *models.WorkspacePolicyOverride, patch PlanPolicyPatch) {
	if patch.AccountsLimit != nil {
		ov.AccountsLimit = patch.AccountsLimit
	}
	if patch.AllowScheduledRefresh != nil {
		ov.AllowScheduledRefresh = patch.AllowScheduledRefresh
	}
	if patch.AllowOAuth != nil {
		ov.AllowOAuth = patch.AllowOAuth
	}
	if patch.DefaultRefreshIntervalHours != nil {
		ov.DefaultRefreshIntervalHours = patch.DefaultRefreshIntervalHours
	}
}
