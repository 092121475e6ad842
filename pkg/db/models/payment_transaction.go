package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// PaymentTransaction tracks one settlement attempt against the gateway.
// TransactionCode is generated before any gateway call so that a retry after
// a timeout can never create a duplicate intent. Amount is immutable after
// creation; PaidAt is set once, on confirmation.
type PaymentTransaction struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TransactionCode string              `gorm:"column:transaction_code;uniqueIndex;not null"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentMethodID uuid.UUID           `gorm:"column:payment_method_id;type:uuid;not null"`
	GatewayTxnID    *string             `gorm:"column:gateway_txn_id"`
	Status          enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(19,4);not null"`
	CheckoutURL     string              `gorm:"column:checkout_url;not null;default:''"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	GatewayMetadata []byte              `gorm:"column:gateway_metadata;type:jsonb"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
