package models

import "time"

// PlanPolicy is the per-plan static feature policy. Mutated only by admins,
// read on every gating decision.
type PlanPolicy struct {
	ID                          uint      `gorm:"primaryKey" json:"id"`
	Plan                        string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"plan"`
	AccountsLimit               int       `gorm:"not null;default:1" json:"accounts_limit"`
	AllowScheduledRefresh       bool      `gorm:"not null;default:false" json:"allow_scheduled_refresh"`
	AllowOAuth                  bool      `gorm:"not null;default:false" json:"allow_oauth"`
	DefaultRefreshIntervalHours int       `gorm:"not null;default:24" json:"default_refresh_interval_hours"`
	CreatedAt                   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
