package models

import (
	"time"

	"github.com/google/uuid"
)

// VariantStock tracks on-hand and reserved counts per (variant, warehouse).
// quantity >= reserved is enforced by the stock ledger's conditional updates,
// not by a storage constraint.
type VariantStock struct {
	VariantID   uuid.UUID `gorm:"column:variant_id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID `gorm:"column:warehouse_id;type:uuid;primaryKey"`
	Quantity    int       `gorm:"column:quantity;not null;default:0"`
	Reserved    int       `gorm:"column:reserved;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Available is the sellable count: on hand minus reserved, floored at zero.
func (s VariantStock) Available() int {
	available := s.Quantity - s.Reserved
	if available < 0 {
		return 0
	}
	return available
}
