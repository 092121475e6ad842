package stock

import "github.com/google/uuid"

// Line identifies a quantity of one variant at one warehouse.
type Line struct {
	VariantID   uuid.UUID
	WarehouseID uuid.UUID
	Qty         int
}

// AdjustInput captures a manual stock correction.
type AdjustInput struct {
	VariantID   uuid.UUID
	WarehouseID uuid.UUID
	Delta       int
	Reason      string
	ActorUserID uuid.UUID
}

// TransferInput moves on-hand stock between two warehouses.
type TransferInput struct {
	VariantID     uuid.UUID
	FromWarehouse uuid.UUID
	ToWarehouse   uuid.UUID
	Qty           int
	Reason        string
	ActorUserID   uuid.UUID
}

// ThresholdBreach reports a stock row whose availability sits below the
// variant's low-stock threshold.
type ThresholdBreach struct {
	VariantID   uuid.UUID `gorm:"column:variant_id"`
	WarehouseID uuid.UUID `gorm:"column:warehouse_id"`
	Available   int       `gorm:"column:available"`
	Threshold   int       `gorm:"column:threshold"`
}
