package billing

import (
	"context"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the webhook reconciler.
type Repository interface {
	CreateEventIfNotExists(ctx context.Context, event *models.ExternalEventRecord) (bool, *models.ExternalEventRecord, error)
	MarkEventProcessed(ctx context.Context, id uint, processingError string) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByCustomerID(ctx context.Context, customerID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	FindActivePlanMapping(ctx context.Context, provider, priceRef string) (*models.PlanMapping, error)
	CreateAuditEntry(ctx context.Context, entry *models.SubscriptionAuditLogEntry) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateEventIfNotExists inserts the dedup record, relying on the unique
// (provider, provider_event_id) index to absorb concurrent duplicates. The
// returned bool reports whether this call created the row.
func (r *gormRepository) CreateEventIfNotExists(ctx context.Context, event *models.ExternalEventRecord) (bool, *models.ExternalEventRecord, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.ExternalEventRecord
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// MarkEventProcessed stamps ProcessedAt only on success. A failed event keeps
// ProcessedAt null (with the error stored) so a redelivery can retry it.
func (r *gormRepository) MarkEventProcessed(ctx context.Context, id uint, processingError string) error {
	updates := map[string]interface{}{
		"processing_error": processingError,
	}
	if processingError == "" {
		now := time.Now()
		updates["processed_at"] = &now
	}
	return r.db.WithContext(ctx).
		Model(&models.ExternalEventRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) GetUserByCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).
		Where("billing_customer_id = ?", customerID).
		First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) SaveUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *gormRepository) FindActivePlanMapping(ctx context.Context, provider, priceRef string) (*models.PlanMapping, error) {
	var m models.PlanMapping
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_price_ref = ? AND is_active = ?", provider, priceRef, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) CreateAuditEntry(ctx context.Context, entry *models.SubscriptionAuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
