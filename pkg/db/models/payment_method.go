package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// PaymentMethod is a configured way to settle an order.
type PaymentMethod struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Code      string                  `gorm:"column:code;uniqueIndex;not null"`
	Name      string                  `gorm:"column:name;not null"`
	Kind      enums.PaymentMethodKind `gorm:"column:kind;type:text;not null"`
	IsActive  bool                    `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentMethod) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
