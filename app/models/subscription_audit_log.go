package models

import "time"

const (
	AuditEventCheckoutCompleted   = "checkout_completed"
	AuditEventSubscriptionUpdated = "subscription_updated"
	AuditEventSubscriptionDeleted = "subscription_deleted"
	AuditEventInvoicePaid         = "invoice_paid"
	AuditEventPlanOverrideSet     = "plan_override_set"
	AuditEventPlanOverrideCleared = "plan_override_cleared"
)

// SubscriptionAuditLogEntry records one applied entitlement transition.
// Entries are append-only and never mutated.
type SubscriptionAuditLogEntry struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	UserID                 uint      `gorm:"not null;index" json:"user_id"`
	EventType              string    `gorm:"type:varchar(50);not null;index" json:"event_type"`
	PreviousPlan           string    `gorm:"type:varchar(50);not null;default:''" json:"previous_plan"`
	NewPlan                string    `gorm:"type:varchar(50);not null;default:''" json:"new_plan"`
	PreviousStatus         string    `gorm:"type:varchar(32);not null;default:''" json:"previous_status"`
	NewStatus              string    `gorm:"type:varchar(32);not null;default:''" json:"new_status"`
	ProviderEventID        string    `gorm:"type:varchar(191);default:'';index" json:"provider_event_id"`
	ProviderSubscriptionID string    `gorm:"type:varchar(191);default:''" json:"provider_subscription_id"`
	MetadataJSON           string    `gorm:"type:longtext" json:"metadata_json"`
	CreatedAt              time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
