package models

import "time"

// MetricsSnapshot is one fetched metrics observation for a social account.
// Append-only time series keyed by account id and capture time.
type MetricsSnapshot struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SocialAccountID uint      `gorm:"not null;index:idx_metrics_snapshots_account_captured,priority:1" json:"social_account_id"`
	FollowerCount   int       `gorm:"not null;default:0" json:"follower_count"`
	PostCount       int       `gorm:"not null;default:0" json:"post_count"`
	EngagementRate  float64   `gorm:"not null;default:0" json:"engagement_rate"`
	IsVerified      bool      `gorm:"not null;default:false" json:"is_verified"`
	CapturedAt      time.Time `gorm:"autoCreateTime;index:idx_metrics_snapshots_account_captured,priority:2" json:"captured_at"`
}
