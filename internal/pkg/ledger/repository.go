package ledger

import (
	"context"

	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the ledger service. The interface
// is deliberately insert-and-sum only; there is no way to update or delete an
// entry once written.
type Repository interface {
	CreateEntry(ctx context.Context, entry *models.CreditLedgerEntry) error
	SumDeltas(ctx context.Context, userID uint) (int64, error)
	ListEntries(ctx context.Context, userID uint, limit int) ([]models.CreditLedgerEntry, error)
	HasEntryWithLink(ctx context.Context, userID uint, linkedID string) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateEntry(ctx context.Context, entry *models.CreditLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormRepository) SumDeltas(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditLedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&total).Error
	return total, err
}

func (r *gormRepository) HasEntryWithLink(ctx context.Context, userID uint, linkedID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditLedgerEntry{}).
		Where("user_id = ? AND linked_id = ?", userID, linkedID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) ListEntries(ctx context.Context, userID uint, limit int) ([]models.CreditLedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.CreditLedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
