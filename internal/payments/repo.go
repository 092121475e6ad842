package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// Repository exposes the persistence operations the payments service needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindMethodByCode(ctx context.Context, code string) (*models.PaymentMethod, error)
	ListActiveMethods(ctx context.Context) ([]models.PaymentMethod, error)

	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error)
	FindByTransactionCode(ctx context.Context, code string) (*models.PaymentTransaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error
	MarkPaid(ctx context.Context, id uuid.UUID, gatewayTxnID string, metadata []byte) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindMethodByCode(ctx context.Context, code string) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := r.db.WithContext(ctx).Where("code = ? AND is_active = ?", code, true).First(&method).Error
	if err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) ListActiveMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("code ASC").Find(&methods).Error
	if err != nil {
		return nil, err
	}
	return methods, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var txns []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) FindByTransactionCode(ctx context.Context, code string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).Where("transaction_code = ?", code).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// MarkPaid flips a pending transaction to paid. The status guard makes
// duplicate webhook deliveries a no-op.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, gatewayTxnID string, metadata []byte) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":           enums.PaymentStatusPaid,
			"gateway_txn_id":   gatewayTxnID,
			"paid_at":          gorm.Expr("CURRENT_TIMESTAMP"),
			"gateway_metadata": metadata,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
