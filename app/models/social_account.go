package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RefreshModeManual    = "manual"
	RefreshModeScheduled = "scheduled"

	SocialStatusActive = "active"
	SocialStatusError  = "error"
	SocialStatusPaused = "paused"
)

// RefreshFailThreshold is the consecutive-failure count at which a social
// account's user-visible status flips to error. Transient failures below the
// threshold only push the next attempt out via backoff.
const RefreshFailThreshold = 5

// SocialAccount is a monitored external profile whose metrics are refreshed
// either on explicit user action (manual) or by the background scheduler.
// Invariant: NextRefreshAt is null iff RefreshMode is manual.
type SocialAccount struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	UserID            uint   `gorm:"not null;index" json:"user_id"`
	WorkspaceID       *uint  `gorm:"default:null;index" json:"workspace_id,omitempty"`
	Platform          string `gorm:"type:varchar(32);not null;index:ux_social_accounts_platform_ext,unique,priority:1" json:"platform"`
	ExternalAccountID string `gorm:"type:varchar(191);not null;index:ux_social_accounts_platform_ext,unique,priority:2" json:"external_account_id"`
	Handle            string `gorm:"type:varchar(191);not null" json:"handle"`

	RefreshMode          string     `gorm:"type:varchar(16);not null;default:'manual'" json:"refresh_mode"`
	RefreshIntervalHours int        `gorm:"not null;default:24" json:"refresh_interval_hours"`
	NextRefreshAt        *time.Time `gorm:"type:timestamp;default:null;index" json:"next_refresh_at,omitempty"`
	LastRefreshAttemptAt *time.Time `gorm:"type:timestamp;default:null" json:"last_refresh_attempt_at,omitempty"`
	RefreshFailCount     int        `gorm:"not null;default:0" json:"refresh_fail_count"`
	RefreshError         string     `gorm:"type:text" json:"refresh_error"`
	Status               string     `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`

	// Last-known metrics, denormalized from the newest snapshot.
	FollowerCount  int     `gorm:"not null;default:0" json:"follower_count"`
	PostCount      int     `gorm:"not null;default:0" json:"post_count"`
	EngagementRate float64 `gorm:"not null;default:0" json:"engagement_rate"`
	IsVerified     bool    `gorm:"not null;default:false" json:"is_verified"`
	RefreshCount   int64   `gorm:"not null;default:0" json:"refresh_count"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
