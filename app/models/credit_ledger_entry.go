package models

import "time"

// CreditLedgerEntry is an immutable signed delta against a user's credit
// balance. Rows are insert-only; the balance is always SUM(delta) over a
// user's entries, so no mutable balance column exists anywhere.
type CreditLedgerEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Delta     int64     `gorm:"not null" json:"delta"`
	Reason    string    `gorm:"type:varchar(191);not null" json:"reason"`
	LinkedID  string    `gorm:"type:varchar(191);not null;default:'';index" json:"linked_id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
