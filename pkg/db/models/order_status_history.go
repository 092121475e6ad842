package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// OrderStatusHistory is the append-only transition log. A nil ActorUserID
// marks the system actor (the auto-completion sweeper). Rows are never
// mutated or deleted.
type OrderStatusHistory struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	OldStatus   enums.OrderStatus `gorm:"column:old_status;type:text;not null"`
	NewStatus   enums.OrderStatus `gorm:"column:new_status;type:text;not null"`
	ActorUserID *uuid.UUID        `gorm:"column:actor_user_id;type:uuid"`
	Comment     *string           `gorm:"column:comment"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
