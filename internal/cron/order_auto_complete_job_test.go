package cron

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/internal/loyalty"
	"github.com/gomartvn/gomart-backend/internal/orders"
	"github.com/gomartvn/gomart-backend/internal/stock"
	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type noopRefunder struct{}

func (noopRefunder) MarkRefunded(context.Context, *gorm.DB, uuid.UUID) error { return nil }

type stubSettings struct {
	days int
}

func (s stubSettings) GetInt(_ context.Context, _ string, def int) int {
	if s.days > 0 {
		return s.days
	}
	return def
}

type sweeperFixture struct {
	db     *gorm.DB
	orders orders.Service
	job    Job
}

func newSweeperFixture(t *testing.T) *sweeperFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ProductVariant{},
		&models.VariantStock{},
		&models.InventoryTransaction{},
		&models.StockAlert{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.LoyaltyPoint{},
		&models.PointTransaction{},
	))

	logg := logger.New(logger.Options{ServiceName: "sweeper-test", Output: io.Discard})
	runner := gormTxRunner{db: db}

	stockSvc, err := stock.NewService(stock.NewRepository(db), runner, nil, logg)
	require.NoError(t, err)
	loyaltySvc, err := loyalty.NewService(loyalty.NewRepository(db), runner, config.LoyaltyConfig{
		EarnRate:     0.0001,
		RedeemActive: true,
	}, nil, logg)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.NewRepository(db), runner, stockSvc, loyaltySvc, noopRefunder{}, logg)
	require.NoError(t, err)

	job, err := NewOrderAutoCompleteJob(OrderAutoCompleteJobParams{
		Logger:   logg,
		Orders:   orderSvc,
		Settings: stubSettings{},
		Config:   config.SweeperConfig{GracePeriodDays: 7},
	})
	require.NoError(t, err)

	return &sweeperFixture{db: db, orders: orderSvc, job: job}
}

// placeDeliveredOrder walks a real order through the lifecycle to delivered
// and backdates the delivery timestamp.
func (f *sweeperFixture) placeDeliveredOrder(t *testing.T, userID uuid.UUID, deliveredAgo time.Duration) *models.Order {
	t.Helper()

	ctx := context.Background()
	variant := models.ProductVariant{
		ProductID: uuid.New(),
		SKU:       "SKU-" + uuid.NewString()[:8],
		Name:      "Sweeper Variant",
		Price:     decimal.NewFromInt(125000),
		IsActive:  true,
	}
	require.NoError(t, f.db.Create(&variant).Error)
	warehouseID := uuid.New()
	require.NoError(t, f.db.Create(&models.VariantStock{
		VariantID:   variant.ID,
		WarehouseID: warehouseID,
		Quantity:    10,
	}).Error)

	order, err := f.orders.Create(ctx, orders.CreateOrderInput{
		UserID: userID,
		Items: []orders.CreateOrderItem{
			{VariantID: variant.ID, WarehouseID: warehouseID, Quantity: 2},
		},
	})
	require.NoError(t, err)

	var stockRow models.VariantStock
	require.NoError(t, f.db.First(&stockRow, "variant_id = ?", variant.ID).Error)
	require.Equal(t, 2, stockRow.Reserved)

	for _, next := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
	} {
		require.NoError(t, f.orders.Transition(ctx, orders.TransitionInput{OrderID: order.ID, NewStatus: next}))
	}

	deliveredAt := time.Now().Add(-deliveredAgo)
	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("delivered_at", deliveredAt).Error)
	return order
}

func TestOrderAutoCompleteSweep(t *testing.T) {
	f := newSweeperFixture(t)
	ctx := context.Background()

	user := models.User{
		Email: "sweep@gomart.vn", PasswordHash: "x", FullName: "Sweep Customer",
		Role: enums.UserRoleCustomer, TotalSpend: decimal.Zero, IsActive: true,
	}
	require.NoError(t, f.db.Create(&user).Error)

	stale := f.placeDeliveredOrder(t, user.ID, 7*24*time.Hour+time.Second)
	fresh := f.placeDeliveredOrder(t, user.ID, 6*24*time.Hour)

	require.NoError(t, f.job.Run(ctx))

	var staleOrder models.Order
	require.NoError(t, f.db.First(&staleOrder, "id = ?", stale.ID).Error)
	assert.Equal(t, enums.OrderStatusCompleted, staleOrder.Status)
	assert.NotNil(t, staleOrder.CompletedAt)

	var freshOrder models.Order
	require.NoError(t, f.db.First(&freshOrder, "id = ?", fresh.ID).Error)
	assert.Equal(t, enums.OrderStatusDelivered, freshOrder.Status)

	// last history row carries the system actor with the grace comment
	var entries []models.OrderStatusHistory
	require.NoError(t, f.db.
		Where("order_id = ? AND new_status = ?", stale.ID, enums.OrderStatusCompleted).
		Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorUserID)
	require.NotNil(t, entries[0].Comment)
	assert.Contains(t, *entries[0].Comment, "7-day grace period")

	// loyalty accrual: floor(250000 * 0.0001) points, exactly one ledger row
	var earnings []models.PointTransaction
	require.NoError(t, f.db.
		Where("order_id = ? AND kind = ?", stale.ID, enums.PointTransactionKindEarnPurchase).
		Find(&earnings).Error)
	require.Len(t, earnings, 1)
	assert.Equal(t, int64(25), earnings[0].Points)

	var reloadedUser models.User
	require.NoError(t, f.db.First(&reloadedUser, "id = ?", user.ID).Error)
	assert.True(t, decimal.NewFromInt(250000).Equal(reloadedUser.TotalSpend))
}

func TestOrderAutoCompleteSweepIsIdempotent(t *testing.T) {
	f := newSweeperFixture(t)
	ctx := context.Background()

	user := models.User{
		Email: "repeat@gomart.vn", PasswordHash: "x", FullName: "Repeat Customer",
		Role: enums.UserRoleCustomer, TotalSpend: decimal.Zero, IsActive: true,
	}
	require.NoError(t, f.db.Create(&user).Error)
	order := f.placeDeliveredOrder(t, user.ID, 8*24*time.Hour)

	require.NoError(t, f.job.Run(ctx))
	require.NoError(t, f.job.Run(ctx))

	var earnings []models.PointTransaction
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&earnings).Error)
	assert.Len(t, earnings, 1)

	var reloadedUser models.User
	require.NoError(t, f.db.First(&reloadedUser, "id = ?", user.ID).Error)
	assert.True(t, decimal.NewFromInt(250000).Equal(reloadedUser.TotalSpend))
}

func TestOrderAutoCompleteUsesRuntimeGraceOverride(t *testing.T) {
	f := newSweeperFixture(t)
	ctx := context.Background()

	user := models.User{
		Email: "override@gomart.vn", PasswordHash: "x", FullName: "Override Customer",
		Role: enums.UserRoleCustomer, TotalSpend: decimal.Zero, IsActive: true,
	}
	require.NoError(t, f.db.Create(&user).Error)
	order := f.placeDeliveredOrder(t, user.ID, 8*24*time.Hour)

	logg := logger.New(logger.Options{ServiceName: "sweeper-test", Output: io.Discard})
	job, err := NewOrderAutoCompleteJob(OrderAutoCompleteJobParams{
		Logger:   logg,
		Orders:   f.orders,
		Settings: stubSettings{days: 14},
		Config:   config.SweeperConfig{GracePeriodDays: 7},
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(ctx))

	var reloaded models.Order
	require.NoError(t, f.db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusDelivered, reloaded.Status)
}
