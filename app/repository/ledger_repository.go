package repository

import (
	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// ledgerRepository implements the read-only LedgerRepository interface
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger read repository instance
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Balance returns SUM(delta) over the user's ledger entries
func (r *ledgerRepository) Balance(userID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.CreditLedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&total).Error
	return total, err
}

// ListEntries returns the newest ledger entries for a user
func (r *ledgerRepository) ListEntries(userID uint, limit int) ([]models.CreditLedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.CreditLedgerEntry
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
