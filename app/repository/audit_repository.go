package repository

import (
	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// auditRepository implements the read-only AuditRepository interface
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit read repository instance
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// ListByUserID returns the newest audit entries for a user
func (r *auditRepository) ListByUserID(userID uint, limit int) ([]models.SubscriptionAuditLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.SubscriptionAuditLogEntry
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
