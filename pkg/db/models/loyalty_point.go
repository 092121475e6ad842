package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyPoint is the per-user running balance. The balance equals the sum
// of the user's point transactions; it is only mutated alongside a ledger
// insert in the same transaction.
type LoyaltyPoint struct {
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance        int64     `gorm:"column:balance;not null;default:0"`
	LifetimeEarned int64     `gorm:"column:lifetime_earned;not null;default:0"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
