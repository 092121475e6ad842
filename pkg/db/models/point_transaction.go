package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// PointTransaction is one append-only entry in the loyalty ledger. Earning
// entries reference the originating order; the (order_id, kind) unique index
// is what makes purchase accrual idempotent.
type PointTransaction struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID      *uuid.UUID                 `gorm:"column:order_id;type:uuid;uniqueIndex:idx_point_txn_order_kind"`
	Kind         enums.PointTransactionKind `gorm:"column:kind;type:text;not null;uniqueIndex:idx_point_txn_order_kind"`
	Points       int64                      `gorm:"column:points;not null"`
	BalanceAfter int64                      `gorm:"column:balance_after;not null"`
	Note         *string                    `gorm:"column:note"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (t *PointTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
