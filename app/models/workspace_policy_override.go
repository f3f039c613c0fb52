package models

import "time"

// WorkspacePolicyOverride overrides PlanPolicy fields for one workspace.
// A nil field means "inherit the plan default"; the cascade is applied
// field-by-field, never all-or-nothing.
type WorkspacePolicyOverride struct {
	ID                          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID                 uint      `gorm:"not null;uniqueIndex" json:"workspace_id"`
	AccountsLimit               *int      `gorm:"default:null" json:"accounts_limit,omitempty"`
	AllowScheduledRefresh       *bool     `gorm:"default:null" json:"allow_scheduled_refresh,omitempty"`
	AllowOAuth                  *bool     `gorm:"default:null" json:"allow_oauth,omitempty"`
	DefaultRefreshIntervalHours *int      `gorm:"default:null" json:"default_refresh_interval_hours,omitempty"`
	CreatedAt                   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
