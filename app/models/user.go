package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	ROLE_SUPERADMIN = "superadmin"

	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
)

// User is the account anchor. Identity comes from the external auth
// collaborator; the billing fields mirror the last-known provider state and
// are written only by the webhook reconciler. EffectivePlan is a cache of the
// precedence function, never a source of truth.
type User struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	AuthProviderID string `gorm:"type:varchar(191);uniqueIndex" json:"auth_provider_id" validate:"required,min=1,max=191"`
	Name           string `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	Email          string `gorm:"type:varchar(200);index" json:"email" validate:"omitempty,email,max=200"`
	Role           string `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin superadmin"`
	Status         string `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`

	// Admin plan override; wins over billing state while unexpired.
	PlanOverride          string     `gorm:"type:varchar(50);default:''" json:"plan_override,omitempty"`
	PlanOverrideExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"plan_override_expires_at,omitempty"`
	PlanOverrideReason    string     `gorm:"type:text" json:"plan_override_reason,omitempty"`

	// Last-known billing provider snapshot.
	BillingCustomerID     string     `gorm:"type:varchar(191);default:'';index" json:"billing_customer_id"`
	BillingSubscriptionID string     `gorm:"type:varchar(191);default:'';index" json:"billing_subscription_id"`
	SubscriptionStatus    string     `gorm:"type:varchar(32);default:''" json:"subscription_status"`
	SubscriptionPlan      string     `gorm:"type:varchar(50);default:''" json:"subscription_plan"`
	CurrentPeriodEnd      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`

	EffectivePlan string `gorm:"type:varchar(50);default:'free';index" json:"effective_plan"`

	APIKeyHash       string     `gorm:"type:char(64);default:''" json:"-"`
	APIKeyPrefix     string     `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time `json:"api_key_created_at"`
	APIKeyLastUsedAt *time.Time `json:"api_key_last_used_at"`
	APIKeyRevokedAt  *time.Time `json:"-"`
	APIRequestCount  int64      `gorm:"not null;default:0" json:"api_request_count"`

	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// HasActivePlanOverride reports whether the admin override wins the
// precedence resolution at the given instant.
func (u *User) HasActivePlanOverride(now time.Time) bool {
	if u.PlanOverride == "" {
		return false
	}
	return u.PlanOverrideExpiresAt == nil || u.PlanOverrideExpiresAt.After(now)
}

// GetOrCreateUserByAuthID upserts the account row on first authenticated
// contact. Accounts are soft-retained, never hard-deleted.
func GetOrCreateUserByAuthID(db *gorm.DB, authProviderID, email string) (*User, error) {
	authID := strings.TrimSpace(authProviderID)
	if authID == "" {
		return nil, fmt.Errorf("auth provider id is required")
	}

	var u User
	if err := db.Where("auth_provider_id = ?", authID).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			u = User{
				AuthProviderID: authID,
				Email:          strings.TrimSpace(email),
				Role:           ROLE_USER,
				Status:         STATUS_ACTIVE,
				EffectivePlan:  "free",
			}
			if err := db.Create(&u).Error; err != nil {
				return nil, err
			}
			return &u, nil
		}
		return nil, err
	}
	return &u, nil
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "cfx_"

// HasActiveAPIKey reports whether the user has an active API key configured
func (u *User) HasActiveAPIKey() bool {
	return u != nil && u.APIKeyHash != "" && u.APIKeyRevokedAt == nil
}

// IssueAPIKey generates a new API key, sets the metadata on the struct, and
// returns the raw secret. Callers must persist the struct afterwards.
func (u *User) IssueAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	rawKey := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(b))

	now := time.Now()
	u.APIKeyHash = HashAPIKey(rawKey)
	u.APIKeyPrefix = rawKey[:min(len(rawKey), 16)]
	u.APIKeyCreatedAt = &now
	u.APIKeyRevokedAt = nil
	u.APIKeyLastUsedAt = nil
	return rawKey, nil
}

// RevokeAPIKey clears the stored API key metadata without deleting the record.
func (u *User) RevokeAPIKey() {
	u.APIKeyHash = ""
	u.APIKeyPrefix = ""
	now := time.Now()
	u.APIKeyRevokedAt = &now
	u.APIKeyLastUsedAt = nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
