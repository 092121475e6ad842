package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// InventoryTransaction is the append-only audit trail of stock mutations.
// QuantityAfter captures the on-hand count after the mutation applied.
type InventoryTransaction struct {
	ID            uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	VariantID     uuid.UUID                      `gorm:"column:variant_id;type:uuid;not null;index"`
	WarehouseID   uuid.UUID                      `gorm:"column:warehouse_id;type:uuid;not null;index"`
	Type          enums.InventoryTransactionType `gorm:"column:type;type:text;not null"`
	Delta         int                            `gorm:"column:delta;not null"`
	QuantityAfter int                            `gorm:"column:quantity_after;not null"`
	OrderID       *uuid.UUID                     `gorm:"column:order_id;type:uuid;index"`
	Reason        *string                        `gorm:"column:reason"`
	ActorUserID   *uuid.UUID                     `gorm:"column:actor_user_id;type:uuid"`
	CreatedAt     time.Time                      `gorm:"column:created_at;autoCreateTime"`
}

func (t *InventoryTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
