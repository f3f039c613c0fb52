package refresher

import (
	"context"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the refresh scheduler.
type Repository interface {
	// ListDue returns scheduled accounts whose NextRefreshAt is at or before
	// now, oldest due first, capped at limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.SocialAccount, error)
	GetAccount(ctx context.Context, id uint) (*models.SocialAccount, error)
	SaveAccount(ctx context.Context, account *models.SocialAccount) error
	CreateSnapshot(ctx context.Context, snapshot *models.MetricsSnapshot) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a refresher repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.SocialAccount, error) {
	if limit <= 0 {
		limit = 100
	}
	var accounts []models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("refresh_mode = ?", models.RefreshModeScheduled).
		Where("status <> ?", models.SocialStatusPaused).
		Where("next_refresh_at IS NOT NULL AND next_refresh_at <= ?", now).
		Order("next_refresh_at ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}

func (r *gormRepository) GetAccount(ctx context.Context, id uint) (*models.SocialAccount, error) {
	var a models.SocialAccount
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *gormRepository) SaveAccount(ctx context.Context, account *models.SocialAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *gormRepository) CreateSnapshot(ctx context.Context, snapshot *models.MetricsSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}
