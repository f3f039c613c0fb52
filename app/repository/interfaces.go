package repository

import (
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByAuthProviderID(authProviderID string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByBillingCustomerID(customerID string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
	GetWithStats(offset, limit int) ([]UserWithStats, error)
}

// SocialAccountRepository defines the interface for social account operations
type SocialAccountRepository interface {
	Create(account *models.SocialAccount) error
	GetByID(id uint) (*models.SocialAccount, error)
	GetByUserID(userID uint) ([]models.SocialAccount, error)
	GetByPlatformExternalID(platform, externalID string) (*models.SocialAccount, error)
	Update(account *models.SocialAccount) error
	Delete(id uint) error
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
	ListSnapshots(accountID uint, since time.Time, limit int) ([]models.MetricsSnapshot, error)
}

// WorkspaceRepository defines the interface for workspace operations
type WorkspaceRepository interface {
	Create(workspace *models.Workspace) error
	GetByID(id uint) (*models.Workspace, error)
	GetByOwnerID(ownerID uint) ([]models.Workspace, error)
	Update(workspace *models.Workspace) error
	Delete(id uint) error
}

// LedgerRepository defines read access to the credit ledger for views and
// admin tooling. Writes go through the ledger service only.
type LedgerRepository interface {
	Balance(userID uint) (int64, error)
	ListEntries(userID uint, limit int) ([]models.CreditLedgerEntry, error)
}

// AuditRepository defines read access to the subscription audit trail.
type AuditRepository interface {
	ListByUserID(userID uint, limit int) ([]models.SubscriptionAuditLogEntry, error)
}

// SettingRepository defines the interface for application settings
type SettingRepository interface {
	GetValue(key string) (string, error)
	SetValue(key, value string) error
	Reload() error
}

// CacheRepository defines the interface for cache inspection operations
type CacheRepository interface {
	GetAllKeys() ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// UserWithStats represents a user with additional statistics
type UserWithStats struct {
	User          models.User
	AccountCount  int64
	CreditBalance int64
}

// Repositories struct holds all repository instances
type Repositories struct {
	User          UserRepository
	SocialAccount SocialAccountRepository
	Workspace     WorkspaceRepository
	Ledger        LedgerRepository
	Audit         AuditRepository
	Setting       SettingRepository
	Cache         CacheRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		SocialAccount: NewSocialAccountRepository(db),
		Workspace:     NewWorkspaceRepository(db),
		Ledger:        NewLedgerRepository(db),
		Audit:         NewAuditRepository(db),
		Setting:       NewSettingRepository(db),
		Cache:         NewCacheRepository(),
	}
}
