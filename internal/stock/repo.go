package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindStock(ctx context.Context, variantID, warehouseID uuid.UUID) (*models.VariantStock, error) {
	var row models.VariantStock
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND warehouse_id = ?", variantID, warehouseID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) EnsureStockRow(ctx context.Context, variantID, warehouseID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.VariantStock{VariantID: variantID, WarehouseID: warehouseID}).Error
}

// ReserveStock moves qty from available to reserved. The guard clause keeps
// reserved from exceeding on-hand quantity under concurrent writers.
func (r *repository) ReserveStock(ctx context.Context, variantID, warehouseID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE variant_stocks
		SET reserved = reserved + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ? AND warehouse_id = ? AND quantity - reserved >= ?
	`, qty, variantID, warehouseID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseStock hands a reservation back. An over-release floors reserved at
// zero instead of going negative; the only failure is a missing stock row.
func (r *repository) ReleaseStock(ctx context.Context, variantID, warehouseID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE variant_stocks
		SET reserved = CASE WHEN reserved > ? THEN reserved - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ? AND warehouse_id = ?
	`, qty, qty, variantID, warehouseID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CommitSaleStock burns a prior reservation: both on-hand and reserved drop.
func (r *repository) CommitSaleStock(ctx context.Context, variantID, warehouseID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE variant_stocks
		SET quantity = quantity - ?,
			reserved = reserved - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ? AND warehouse_id = ? AND reserved >= ? AND quantity >= ?
	`, qty, qty, variantID, warehouseID, qty, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AdjustQuantity applies a signed correction to on-hand stock. Quantity may
// not drop below the reserved count or below zero.
func (r *repository) AdjustQuantity(ctx context.Context, variantID, warehouseID uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE variant_stocks
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ? AND warehouse_id = ?
			AND quantity + ? >= reserved
			AND quantity + ? >= 0
	`, delta, variantID, warehouseID, delta, delta)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AddQuantity(ctx context.Context, variantID, warehouseID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE variant_stocks
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ? AND warehouse_id = ?
	`, qty, variantID, warehouseID).Error
}

func (r *repository) FindVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).Where("id = ?", variantID).First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, variantID, warehouseID uuid.UUID, limit int) ([]models.InventoryTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []models.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND warehouse_id = ?", variantID, warehouseID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) FindOpenAlert(ctx context.Context, variantID, warehouseID uuid.UUID) (*models.StockAlert, error) {
	var alert models.StockAlert
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND warehouse_id = ? AND status = ?", variantID, warehouseID, enums.StockAlertStatusOpen).
		First(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *repository) CreateAlert(ctx context.Context, alert *models.StockAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *repository) ResolveAlert(ctx context.Context, alertID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.StockAlert{}).
		Where("id = ?", alertID).
		Updates(map[string]any{
			"status":      enums.StockAlertStatusResolved,
			"resolved_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *repository) ListOpenAlerts(ctx context.Context) ([]models.StockAlert, error) {
	var alerts []models.StockAlert
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.StockAlertStatusOpen).
		Order("created_at ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *repository) ListBelowThreshold(ctx context.Context, defaultThreshold int) ([]ThresholdBreach, error) {
	// a variant with threshold 0 has no threshold of its own and inherits
	// the platform default
	var breaches []ThresholdBreach
	err := r.db.WithContext(ctx).Raw(`
		SELECT vs.variant_id AS variant_id,
			vs.warehouse_id AS warehouse_id,
			vs.quantity - vs.reserved AS available,
			CASE WHEN pv.low_stock_threshold > 0 THEN pv.low_stock_threshold ELSE ? END AS threshold
		FROM variant_stocks vs
		JOIN product_variants pv ON pv.id = vs.variant_id
		WHERE vs.quantity - vs.reserved <
			CASE WHEN pv.low_stock_threshold > 0 THEN pv.low_stock_threshold ELSE ? END
	`, defaultThreshold, defaultThreshold).Scan(&breaches).Error
	if err != nil {
		return nil, err
	}
	return breaches, nil
}
