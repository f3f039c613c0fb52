package repository

import (
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// socialAccountRepository implements the SocialAccountRepository interface
type socialAccountRepository struct {
	db *gorm.DB
}

// NewSocialAccountRepository creates a new social account repository instance
func NewSocialAccountRepository(db *gorm.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

// Create creates a new social account in the database
func (r *socialAccountRepository) Create(account *models.SocialAccount) error {
	return r.db.Create(account).Error
}

// GetByID retrieves a social account by its ID
func (r *socialAccountRepository) GetByID(id uint) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByUserID retrieves all social accounts owned by a user
func (r *socialAccountRepository) GetByUserID(userID uint) ([]models.SocialAccount, error) {
	var accounts []models.SocialAccount
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

// GetByPlatformExternalID retrieves a social account by its platform identity
func (r *socialAccountRepository) GetByPlatformExternalID(platform, externalID string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.Where("platform = ? AND external_account_id = ?",
		strings.ToLower(strings.TrimSpace(platform)), strings.TrimSpace(externalID)).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Update updates an existing social account in the database
func (r *socialAccountRepository) Update(account *models.SocialAccount) error {
	return r.db.Save(account).Error
}

// Delete soft deletes a social account by its ID
func (r *socialAccountRepository) Delete(id uint) error {
	return r.db.Delete(&models.SocialAccount{}, id).Error
}

// Count returns the total number of social accounts
func (r *socialAccountRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.SocialAccount{}).Count(&count).Error
	return count, err
}

// CountByUserID returns the number of social accounts owned by a user
func (r *socialAccountRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.SocialAccount{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// ListSnapshots returns the metrics history for an account, newest first
func (r *socialAccountRepository) ListSnapshots(accountID uint, since time.Time, limit int) ([]models.MetricsSnapshot, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var snapshots []models.MetricsSnapshot
	err := r.db.Where("social_account_id = ? AND captured_at >= ?", accountID, since).
		Order("captured_at DESC").
		Limit(limit).
		Find(&snapshots).Error
	return snapshots, err
}
