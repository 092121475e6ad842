package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ThresholdSource resolves the runtime-overridable default low-stock
// threshold, applied to variants that carry no threshold of their own.
// Implemented by the settings service.
type ThresholdSource interface {
	GetInt(ctx context.Context, key string, def int) int
}

// lowStockThresholdKey mirrors settings.KeyLowStockThreshold without
// importing the settings package here.
const lowStockThresholdKey = "low_stock_threshold"

// Service is the stock ledger. Reserve, Release and CommitSale accept an
// optional caller transaction so order state changes and their stock effects
// commit or roll back together.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []Line) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []Line) error
	CommitSale(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []Line) error
	Adjust(ctx context.Context, input AdjustInput) error
	Transfer(ctx context.Context, input TransferInput) error
	GetStock(ctx context.Context, variantID, warehouseID uuid.UUID) (*models.VariantStock, error)
	History(ctx context.Context, variantID, warehouseID uuid.UUID, limit int) ([]models.InventoryTransaction, error)
	OpenAlerts(ctx context.Context) ([]models.StockAlert, error)
	ScanThresholds(ctx context.Context) (int, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	thresholds ThresholdSource
	logg       *logger.Logger
}

// NewService builds the stock ledger service. thresholds may be nil, in
// which case only per-variant thresholds apply.
func NewService(repo Repository, tx txRunner, thresholds ThresholdSource, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, thresholds: thresholds, logg: logg}, nil
}

// defaultThreshold is the platform-wide fallback for variants without their
// own low_stock_threshold.
func (s *service) defaultThreshold(ctx context.Context) int {
	if s.thresholds == nil {
		return 0
	}
	return s.thresholds.GetInt(ctx, lowStockThresholdKey, 0)
}

func (s *service) effectiveThreshold(ctx context.Context, variantThreshold int) int {
	if variantThreshold > 0 {
		return variantThreshold
	}
	return s.defaultThreshold(ctx)
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []Line) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	return s.runIn(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, line := range lines {
			ok, err := repo.ReserveStock(ctx, line.VariantID, line.WarehouseID, line.Qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
					WithDetails(map[string]any{
						"variant_id":   line.VariantID,
						"warehouse_id": line.WarehouseID,
						"requested":    line.Qty,
					})
			}
			if err := s.audit(ctx, repo, line, enums.InventoryTransactionTypeReserve, -line.Qty, &orderID, nil, nil); err != nil {
				return err
			}
			if err := s.refreshAlert(ctx, repo, line.VariantID, line.WarehouseID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []Line) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	return s.runIn(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, line := range lines {
			ok, err := repo.ReleaseStock(ctx, line.VariantID, line.WarehouseID, line.Qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "stock row not found").
					WithDetails(map[string]any{
						"variant_id":   line.VariantID,
						"warehouse_id": line.WarehouseID,
					})
			}
			if err := s.audit(ctx, repo, line, enums.InventoryTransactionTypeRelease, line.Qty, &orderID, nil, nil); err != nil {
				return err
			}
			if err := s.refreshAlert(ctx, repo, line.VariantID, line.WarehouseID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) CommitSale(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []Line) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	return s.runIn(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, line := range lines {
			ok, err := repo.CommitSaleStock(ctx, line.VariantID, line.WarehouseID, line.Qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit sale")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "sale exceeds reserved quantity").
					WithDetails(map[string]any{
						"variant_id":   line.VariantID,
						"warehouse_id": line.WarehouseID,
						"requested":    line.Qty,
					})
			}
			if err := s.audit(ctx, repo, line, enums.InventoryTransactionTypeSale, -line.Qty, &orderID, nil, nil); err != nil {
				return err
			}
			if err := s.refreshAlert(ctx, repo, line.VariantID, line.WarehouseID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) error {
	if input.Delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "adjustment delta must be non-zero")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.Delta > 0 {
			if err := repo.EnsureStockRow(ctx, input.VariantID, input.WarehouseID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure stock row")
			}
		}
		ok, err := repo.AdjustQuantity(ctx, input.VariantID, input.WarehouseID, input.Delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "adjustment would drop quantity below reserved").
				WithDetails(map[string]any{
					"variant_id":   input.VariantID,
					"warehouse_id": input.WarehouseID,
					"delta":        input.Delta,
				})
		}
		line := Line{VariantID: input.VariantID, WarehouseID: input.WarehouseID, Qty: input.Delta}
		var actor *uuid.UUID
		if input.ActorUserID != uuid.Nil {
			actor = &input.ActorUserID
		}
		if err := s.audit(ctx, repo, line, enums.InventoryTransactionTypeAdjustment, input.Delta, nil, reasonPtr(input.Reason), actor); err != nil {
			return err
		}
		return s.refreshAlert(ctx, repo, input.VariantID, input.WarehouseID)
	})
}

func (s *service) Transfer(ctx context.Context, input TransferInput) error {
	if input.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer quantity must be positive")
	}
	if input.FromWarehouse == input.ToWarehouse {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer warehouses must differ")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.AdjustQuantity(ctx, input.VariantID, input.FromWarehouse, -input.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transfer out")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock at source warehouse").
				WithDetails(map[string]any{
					"variant_id":   input.VariantID,
					"warehouse_id": input.FromWarehouse,
					"requested":    input.Qty,
				})
		}
		if err := repo.EnsureStockRow(ctx, input.VariantID, input.ToWarehouse); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure destination stock row")
		}
		if err := repo.AddQuantity(ctx, input.VariantID, input.ToWarehouse, input.Qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transfer in")
		}

		var actor *uuid.UUID
		if input.ActorUserID != uuid.Nil {
			actor = &input.ActorUserID
		}
		reason := reasonPtr(input.Reason)
		out := Line{VariantID: input.VariantID, WarehouseID: input.FromWarehouse, Qty: input.Qty}
		if err := s.audit(ctx, repo, out, enums.InventoryTransactionTypeTransferOut, -input.Qty, nil, reason, actor); err != nil {
			return err
		}
		in := Line{VariantID: input.VariantID, WarehouseID: input.ToWarehouse, Qty: input.Qty}
		if err := s.audit(ctx, repo, in, enums.InventoryTransactionTypeTransferIn, input.Qty, nil, reason, actor); err != nil {
			return err
		}

		if err := s.refreshAlert(ctx, repo, input.VariantID, input.FromWarehouse); err != nil {
			return err
		}
		return s.refreshAlert(ctx, repo, input.VariantID, input.ToWarehouse)
	})
}

func (s *service) GetStock(ctx context.Context, variantID, warehouseID uuid.UUID) (*models.VariantStock, error) {
	row, err := s.repo.FindStock(ctx, variantID, warehouseID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock row not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	return row, nil
}

func (s *service) History(ctx context.Context, variantID, warehouseID uuid.UUID, limit int) ([]models.InventoryTransaction, error) {
	txns, err := s.repo.ListTransactions(ctx, variantID, warehouseID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory transactions")
	}
	return txns, nil
}

func (s *service) OpenAlerts(ctx context.Context) ([]models.StockAlert, error) {
	alerts, err := s.repo.ListOpenAlerts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open alerts")
	}
	return alerts, nil
}

// ScanThresholds raises open alerts for every stock row below its variant's
// threshold and returns how many new alerts were created.
func (s *service) ScanThresholds(ctx context.Context) (int, error) {
	breaches, err := s.repo.ListBelowThreshold(ctx, s.defaultThreshold(ctx))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan thresholds")
	}

	raised := 0
	for _, breach := range breaches {
		_, err := s.repo.FindOpenAlert(ctx, breach.VariantID, breach.WarehouseID)
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return raised, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find open alert")
		}
		alert := &models.StockAlert{
			VariantID:   breach.VariantID,
			WarehouseID: breach.WarehouseID,
			Available:   breach.Available,
			Threshold:   breach.Threshold,
			Status:      enums.StockAlertStatusOpen,
		}
		if err := s.repo.CreateAlert(ctx, alert); err != nil {
			return raised, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock alert")
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"variant_id":   breach.VariantID,
			"warehouse_id": breach.WarehouseID,
			"available":    breach.Available,
			"threshold":    breach.Threshold,
		}), "low stock alert raised")
		raised++
	}
	return raised, nil
}

func (s *service) runIn(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return s.tx.WithTx(ctx, fn)
}

func (s *service) audit(ctx context.Context, repo Repository, line Line, txnType enums.InventoryTransactionType, delta int, orderID *uuid.UUID, reason *string, actor *uuid.UUID) error {
	row, err := repo.FindStock(ctx, line.VariantID, line.WarehouseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock for audit")
	}
	txn := &models.InventoryTransaction{
		VariantID:     line.VariantID,
		WarehouseID:   line.WarehouseID,
		Type:          txnType,
		Delta:         delta,
		QuantityAfter: row.Quantity,
		OrderID:       orderID,
		Reason:        reason,
		ActorUserID:   actor,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record inventory transaction")
	}
	return nil
}

// refreshAlert opens or resolves the low-stock alert for one stock row based
// on its current availability.
func (s *service) refreshAlert(ctx context.Context, repo Repository, variantID, warehouseID uuid.UUID) error {
	row, err := repo.FindStock(ctx, variantID, warehouseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock for alert check")
	}
	variant, err := repo.FindVariant(ctx, variantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant for alert check")
	}

	available := row.Available()
	threshold := s.effectiveThreshold(ctx, variant.LowStockThreshold)
	existing, err := repo.FindOpenAlert(ctx, variantID, warehouseID)
	switch {
	case err == gorm.ErrRecordNotFound:
		if available < threshold {
			alert := &models.StockAlert{
				VariantID:   variantID,
				WarehouseID: warehouseID,
				Available:   available,
				Threshold:   threshold,
				Status:      enums.StockAlertStatusOpen,
			}
			if err := repo.CreateAlert(ctx, alert); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock alert")
			}
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"variant_id":   variantID,
				"warehouse_id": warehouseID,
				"available":    available,
				"threshold":    threshold,
			}), "low stock alert raised")
		}
		return nil
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find open alert")
	default:
		if available >= threshold {
			if err := repo.ResolveAlert(ctx, existing.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve stock alert")
			}
		}
		return nil
	}
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}
	for _, line := range lines {
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.VariantID == uuid.Nil || line.WarehouseID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "line variant and warehouse required")
		}
	}
	return nil
}

func reasonPtr(reason string) *string {
	if reason == "" {
		return nil
	}
	return &reason
}
