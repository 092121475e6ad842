package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// StockAlert is raised when a variant's availability crosses below its
// threshold. At most one open alert exists per (variant, warehouse).
type StockAlert struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	VariantID   uuid.UUID              `gorm:"column:variant_id;type:uuid;not null;index"`
	WarehouseID uuid.UUID              `gorm:"column:warehouse_id;type:uuid;not null;index"`
	Available   int                    `gorm:"column:available;not null"`
	Threshold   int                    `gorm:"column:threshold;not null"`
	Status      enums.StockAlertStatus `gorm:"column:status;type:text;not null;default:'open'"`
	ResolvedAt  *time.Time             `gorm:"column:resolved_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *StockAlert) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
