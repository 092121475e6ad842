package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// Order is the aggregate root of the fulfillment lifecycle. Status moves only
// along the allowed graph; DeliveredAt is set exactly once, on the transition
// into delivered; TotalAmount is immutable after payment confirmation.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string               `gorm:"column:order_number;uniqueIndex;not null"`
	UserID          uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Status          enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending';index"`
	TotalAmount     decimal.Decimal      `gorm:"column:total_amount;type:numeric(19,4);not null"`
	Currency        enums.Currency       `gorm:"column:currency;type:text;not null;default:'VND'"`
	PaymentMethodID *uuid.UUID           `gorm:"column:payment_method_id;type:uuid"`
	ShippingAddress *string              `gorm:"column:shipping_address"`
	Note            *string              `gorm:"column:note"`
	PlacedAt        time.Time            `gorm:"column:placed_at;not null"`
	DeliveredAt     *time.Time           `gorm:"column:delivered_at"`
	CompletedAt     *time.Time           `gorm:"column:completed_at"`
	CancelledAt     *time.Time           `gorm:"column:cancelled_at"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History         []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is a reserved line of an order.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID   uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	WarehouseID uuid.UUID       `gorm:"column:warehouse_id;type:uuid;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(19,4);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(19,4);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
