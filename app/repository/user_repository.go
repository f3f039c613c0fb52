package repository

import (
	"strings"

	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAuthProviderID retrieves a user by their external auth identity
func (r *userRepository) GetByAuthProviderID(authProviderID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("auth_provider_id = ?", strings.TrimSpace(authProviderID)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByBillingCustomerID retrieves a user by their billing customer reference
func (r *userRepository) GetByBillingCustomerID(customerID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("billing_customer_id = ?", strings.TrimSpace(customerID)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash resolves an active API key hash to its user.
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("api_key_hash = ? AND api_key_hash <> '' AND api_key_revoked_at IS NULL", trimmed).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// Delete soft deletes a user by their ID
func (r *userRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, id).Error
}

// List retrieves a paginated list of users
func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// Search searches for users by name or email
func (r *userRepository) Search(query string) ([]models.User, error) {
	var users []models.User
	searchPattern := "%" + strings.TrimSpace(query) + "%"
	err := r.db.Where("name LIKE ? OR email LIKE ?", searchPattern, searchPattern).Find(&users).Error
	return users, err
}

// GetWithStats retrieves users with their account count and credit balance
func (r *userRepository) GetWithStats(offset, limit int) ([]UserWithStats, error) {
	users, err := r.List(offset, limit)
	if err != nil {
		return nil, err
	}

	result := make([]UserWithStats, 0, len(users))
	for _, user := range users {
		var accountCount int64
		if err := r.db.Model(&models.SocialAccount{}).
			Where("user_id = ?", user.ID).
			Count(&accountCount).Error; err != nil {
			return nil, err
		}

		var balance int64
		if err := r.db.Model(&models.CreditLedgerEntry{}).
			Where("user_id = ?", user.ID).
			Select("COALESCE(SUM(delta), 0)").
			Scan(&balance).Error; err != nil {
			return nil, err
		}

		result = append(result, UserWithStats{
			User:          user,
			AccountCount:  accountCount,
			CreditBalance: balance,
		})
	}
	return result, nil
}
