package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/internal/stock"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
)

// Repository exposes the persistence operations the order lifecycle needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error

	CreateHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)

	FindDeliveredBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	FindVariants(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error)
	IncrementUserSpend(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
}

// StockLedger is the slice of the stock service the lifecycle drives.
type StockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []stock.Line) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []stock.Line) error
	CommitSale(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []stock.Line) error
}

// LoyaltyAccruer credits purchase points when an order completes.
type LoyaltyAccruer interface {
	ProcessOrderEarning(ctx context.Context, tx *gorm.DB, orderID, userID uuid.UUID, orderTotal decimal.Decimal) (int64, error)
}

// PaymentRefunder flips the order's settled payment on refund transitions.
type PaymentRefunder interface {
	MarkRefunded(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}
