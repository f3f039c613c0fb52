package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetSocialAccountRepository returns the social account repository instance
func (f *Factory) GetSocialAccountRepository() SocialAccountRepository {
	return f.GetRepositories().SocialAccount
}

// GetWorkspaceRepository returns the workspace repository instance
func (f *Factory) GetWorkspaceRepository() WorkspaceRepository {
	return f.GetRepositories().Workspace
}

// GetLedgerRepository returns the ledger read repository instance
func (f *Factory) GetLedgerRepository() LedgerRepository {
	return f.GetRepositories().Ledger
}

// GetAuditRepository returns the audit read repository instance
func (f *Factory) GetAuditRepository() AuditRepository {
	return f.GetRepositories().Audit
}

// GetSettingRepository returns the setting repository instance
func (f *Factory) GetSettingRepository() SettingRepository {
	return f.GetRepositories().Setting
}

// GetCacheRepository returns the cache repository instance
func (f *Factory) GetCacheRepository() CacheRepository {
	return f.GetRepositories().Cache
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
