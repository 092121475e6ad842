package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/db/models"
)

// Repository exposes the persistence operations the stock ledger needs.
// The conditional mutations return false when the guard clause rejected the
// update, which the service maps to insufficient-stock errors.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindStock(ctx context.Context, variantID, warehouseID uuid.UUID) (*models.VariantStock, error)
	EnsureStockRow(ctx context.Context, variantID, warehouseID uuid.UUID) error
	ReserveStock(ctx context.Context, variantID, warehouseID uuid.UUID, qty int) (bool, error)
	ReleaseStock(ctx context.Context, variantID, warehouseID uuid.UUID, qty int) (bool, error)
	CommitSaleStock(ctx context.Context, variantID, warehouseID uuid.UUID, qty int) (bool, error)
	AdjustQuantity(ctx context.Context, variantID, warehouseID uuid.UUID, delta int) (bool, error)
	AddQuantity(ctx context.Context, variantID, warehouseID uuid.UUID, qty int) error

	FindVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
	CreateTransaction(ctx context.Context, txn *models.InventoryTransaction) error
	ListTransactions(ctx context.Context, variantID, warehouseID uuid.UUID, limit int) ([]models.InventoryTransaction, error)

	FindOpenAlert(ctx context.Context, variantID, warehouseID uuid.UUID) (*models.StockAlert, error)
	CreateAlert(ctx context.Context, alert *models.StockAlert) error
	ResolveAlert(ctx context.Context, alertID uuid.UUID) error
	ListOpenAlerts(ctx context.Context) ([]models.StockAlert, error)
	ListBelowThreshold(ctx context.Context, defaultThreshold int) ([]ThresholdBreach, error)
}
