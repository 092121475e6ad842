package loyalty

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// Repository exposes the persistence operations the loyalty engine needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindBalance(ctx context.Context, userID uuid.UUID) (*models.LoyaltyPoint, error)
	EnsureBalanceRow(ctx context.Context, userID uuid.UUID) error
	ApplyBalanceDelta(ctx context.Context, userID uuid.UUID, delta, lifetimeDelta int64) (bool, error)
	CreateTransaction(ctx context.Context, txn *models.PointTransaction) error
	HasOrderEarning(ctx context.Context, orderID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a loyalty repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBalance(ctx context.Context, userID uuid.UUID) (*models.LoyaltyPoint, error) {
	var row models.LoyaltyPoint
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) EnsureBalanceRow(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.LoyaltyPoint{UserID: userID}).Error
}

// ApplyBalanceDelta mutates the running balance. The guard clause keeps the
// balance non-negative so concurrent redemptions cannot overdraw.
func (r *repository) ApplyBalanceDelta(ctx context.Context, userID uuid.UUID, delta, lifetimeDelta int64) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE loyalty_points
		SET balance = balance + ?,
			lifetime_earned = lifetime_earned + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND balance + ? >= 0
	`, delta, lifetimeDelta, userID, delta)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.PointTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) HasOrderEarning(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PointTransaction{}).
		Where("order_id = ? AND kind = ?", orderID, enums.PointTransactionKindEarnPurchase).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []models.PointTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
