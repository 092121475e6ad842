package orders

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
	"github.com/gomartvn/gomart-backend/internal/stock"
	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingLedger struct {
	reserved  []uuid.UUID
	released  []uuid.UUID
	committed []uuid.UUID
}

func (l *recordingLedger) Reserve(_ context.Context, _ *gorm.DB, orderID uuid.UUID, _ []stock.Line) error {
	l.reserved = append(l.reserved, orderID)
	return nil
}

func (l *recordingLedger) Release(_ context.Context, _ *gorm.DB, orderID uuid.UUID, _ []stock.Line) error {
	l.released = append(l.released, orderID)
	return nil
}

func (l *recordingLedger) CommitSale(_ context.Context, _ *gorm.DB, orderID uuid.UUID, _ []stock.Line) error {
	l.committed = append(l.committed, orderID)
	return nil
}

type recordingAccruer struct {
	calls []uuid.UUID
	err   error
}

func (a *recordingAccruer) ProcessOrderEarning(_ context.Context, _ *gorm.DB, orderID, _ uuid.UUID, _ decimal.Decimal) (int64, error) {
	a.calls = append(a.calls, orderID)
	return 25, a.err
}

type recordingRefunder struct {
	calls []uuid.UUID
}

func (r *recordingRefunder) MarkRefunded(_ context.Context, _ *gorm.DB, orderID uuid.UUID) error {
	r.calls = append(r.calls, orderID)
	return nil
}

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
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
	return db
}

// newOrderService wires the lifecycle against the real stock and loyalty
// services so reservation and accrual effects hit actual rows.
func newOrderService(t *testing.T, db *gorm.DB) (Service, *recordingRefunder) {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	runner := gormTxRunner{db: db}

	stockSvc, err := stock.NewService(stock.NewRepository(db), runner, nil, logg)
	require.NoError(t, err)

	loyaltySvc, err := loyalty.NewService(loyalty.NewRepository(db), runner, config.LoyaltyConfig{
		EarnRate:     0.0001,
		RedeemActive: true,
	}, nil, logg)
	require.NoError(t, err)

	refunder := &recordingRefunder{}
	svc, err := NewService(NewRepository(db), runner, stockSvc, loyaltySvc, refunder, logg)
	require.NoError(t, err)
	return svc, refunder
}

// newFakeOrderService isolates the state machine from stock and payment
// side effects.
func newFakeOrderService(t *testing.T, db *gorm.DB) (Service, *recordingLedger, *recordingAccruer, *recordingRefunder) {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	ledger := &recordingLedger{}
	accruer := &recordingAccruer{}
	refunder := &recordingRefunder{}
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, ledger, accruer, refunder, logg)
	require.NoError(t, err)
	return svc, ledger, accruer, refunder
}

func seedUser(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()

	user := models.User{
		Email:        uuid.NewString()[:8] + "@gomart.vn",
		PasswordHash: "x",
		FullName:     "Test Customer",
		Role:         enums.UserRoleCustomer,
		TotalSpend:   decimal.Zero,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func seedSellableVariant(t *testing.T, db *gorm.DB, price decimal.Decimal, quantity int) (uuid.UUID, uuid.UUID) {
	t.Helper()

	variant := models.ProductVariant{
		ProductID: uuid.New(),
		SKU:       "SKU-" + uuid.NewString()[:8],
		Name:      "Test Variant",
		Price:     price,
		IsActive:  true,
	}
	require.NoError(t, db.Create(&variant).Error)

	warehouseID := uuid.New()
	require.NoError(t, db.Create(&models.VariantStock{
		VariantID:   variant.ID,
		WarehouseID: warehouseID,
		Quantity:    quantity,
		Reserved:    0,
	}).Error)
	return variant.ID, warehouseID
}

func seedOrderAt(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.OrderStatus) *models.Order {
	t.Helper()

	order := models.Order{
		OrderNumber: "GM-TEST-" + uuid.NewString()[:8],
		UserID:      userID,
		Status:      status,
		TotalAmount: decimal.NewFromInt(250000),
		Currency:    enums.CurrencyVND,
		PlacedAt:    time.Now().Add(-time.Hour),
		Items: []models.OrderItem{{
			VariantID:   uuid.New(),
			WarehouseID: uuid.New(),
			Quantity:    2,
			UnitPrice:   decimal.NewFromInt(125000),
			LineTotal:   decimal.NewFromInt(250000),
		}},
	}
	if status == enums.OrderStatusDelivered {
		deliveredAt := time.Now().Add(-time.Hour)
		order.DeliveredAt = &deliveredAt
	}
	require.NoError(t, db.Create(&order).Error)
	return &order
}

func loadOrder(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Order {
	t.Helper()

	var order models.Order
	require.NoError(t, db.Preload("Items").First(&order, "id = ?", id).Error)
	return &order
}

func TestCreateOrderReservesStock(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrderService(t, db)
	userID := seedUser(t, db)
	variantID, warehouseID := seedSellableVariant(t, db, decimal.NewFromInt(125000), 10)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Items: []CreateOrderItem{
			{VariantID: variantID, WarehouseID: warehouseID, Quantity: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, decimal.NewFromInt(250000).Equal(order.TotalAmount))
	assert.Regexp(t, `^GM\d{12}$`, order.OrderNumber)

	var stockRow models.VariantStock
	require.NoError(t, db.First(&stockRow, "variant_id = ? AND warehouse_id = ?", variantID, warehouseID).Error)
	assert.Equal(t, 10, stockRow.Quantity)
	assert.Equal(t, 2, stockRow.Reserved)

	var audit models.InventoryTransaction
	require.NoError(t, db.First(&audit, "variant_id = ?", variantID).Error)
	assert.Equal(t, enums.InventoryTransactionTypeReserve, audit.Type)
	require.NotNil(t, audit.OrderID)
	assert.Equal(t, order.ID, *audit.OrderID)

	// the audit trail opens with a pending row at placement
	history, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.OrderStatusPending, history[0].OldStatus)
	assert.Equal(t, enums.OrderStatusPending, history[0].NewStatus)
	require.NotNil(t, history[0].ActorUserID)
	assert.Equal(t, userID, *history[0].ActorUserID)
}

func TestCreateOrderAllLinesOrNothing(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrderService(t, db)
	userID := seedUser(t, db)
	okVariant, okWarehouse := seedSellableVariant(t, db, decimal.NewFromInt(50000), 10)
	scarceVariant, scarceWarehouse := seedSellableVariant(t, db, decimal.NewFromInt(80000), 1)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Items: []CreateOrderItem{
			{VariantID: okVariant, WarehouseID: okWarehouse, Quantity: 2},
			{VariantID: scarceVariant, WarehouseID: scarceWarehouse, Quantity: 3},
		},
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)

	var stockRow models.VariantStock
	require.NoError(t, db.First(&stockRow, "variant_id = ?", okVariant).Error)
	assert.Zero(t, stockRow.Reserved)
}

func TestCreateOrderRejectsInactiveVariant(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrderService(t, db)
	userID := seedUser(t, db)
	variantID, warehouseID := seedSellableVariant(t, db, decimal.NewFromInt(50000), 5)
	require.NoError(t, db.Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("is_active", false).Error)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Items:  []CreateOrderItem{{VariantID: variantID, WarehouseID: warehouseID, Quantity: 1}},
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestTransitionGraph(t *testing.T) {
	cases := []struct {
		from    enums.OrderStatus
		to      enums.OrderStatus
		allowed bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusPending, enums.OrderStatusRefunded, false},
		{enums.OrderStatusConfirmed, enums.OrderStatusProcessing, true},
		{enums.OrderStatusConfirmed, enums.OrderStatusCancelled, true},
		{enums.OrderStatusConfirmed, enums.OrderStatusRefunded, true},
		{enums.OrderStatusConfirmed, enums.OrderStatusDelivered, false},
		{enums.OrderStatusProcessing, enums.OrderStatusShipped, true},
		{enums.OrderStatusProcessing, enums.OrderStatusCancelled, true},
		{enums.OrderStatusProcessing, enums.OrderStatusRefunded, true},
		{enums.OrderStatusProcessing, enums.OrderStatusCompleted, false},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true},
		{enums.OrderStatusShipped, enums.OrderStatusRefunded, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, false},
		{enums.OrderStatusDelivered, enums.OrderStatusCompleted, true},
		{enums.OrderStatusDelivered, enums.OrderStatusRefunded, true},
		{enums.OrderStatusDelivered, enums.OrderStatusCancelled, false},
		{enums.OrderStatusCompleted, enums.OrderStatusRefunded, false},
		{enums.OrderStatusCancelled, enums.OrderStatusConfirmed, false},
		{enums.OrderStatusRefunded, enums.OrderStatusPending, false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.to), func(t *testing.T) {
			db := setupOrdersTestDB(t)
			svc, _, _, _ := newFakeOrderService(t, db)
			userID := seedUser(t, db)
			order := seedOrderAt(t, db, userID, tc.from)

			err := svc.Transition(context.Background(), TransitionInput{
				OrderID:   order.ID,
				NewStatus: tc.to,
			})
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, tc.to, loadOrder(t, db, order.ID).Status)
				return
			}
			require.Error(t, err)
			appErr := pkgerrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, pkgerrors.CodeInvalidTransition, appErr.Code())
			assert.Equal(t, tc.from, loadOrder(t, db, order.ID).Status)
		})
	}
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _, _, _ := newFakeOrderService(t, db)
	userID := seedUser(t, db)
	order := seedOrderAt(t, db, userID, enums.OrderStatusConfirmed)

	require.NoError(t, svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusConfirmed,
	}))

	var historyCount int64
	require.NoError(t, db.Model(&models.OrderStatusHistory{}).
		Where("order_id = ?", order.ID).
		Count(&historyCount).Error)
	assert.Zero(t, historyCount)
}

func TestTransitionAppendsOneHistoryRowEach(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _, _, _ := newFakeOrderService(t, db)
	userID := seedUser(t, db)
	order := seedOrderAt(t, db, userID, enums.OrderStatusPending)
	actorID := userID

	path := []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCompleted,
	}
	for _, next := range path {
		require.NoError(t, svc.Transition(context.Background(), TransitionInput{
			OrderID:     order.ID,
			NewStatus:   next,
			ActorUserID: &actorID,
		}))
	}

	history, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, len(path))

	previous := enums.OrderStatusPending
	for i, next := range path {
		assert.Equal(t, previous, history[i].OldStatus)
		assert.Equal(t, next, history[i].NewStatus)
		require.NotNil(t, history[i].ActorUserID)
		assert.Equal(t, actorID, *history[i].ActorUserID)
		previous = next
	}
}

func TestCancelReleasesReservedStock(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrderService(t, db)
	userID := seedUser(t, db)
	variantID, warehouseID := seedSellableVariant(t, db, decimal.NewFromInt(125000), 10)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Items:  []CreateOrderItem{{VariantID: variantID, WarehouseID: warehouseID, Quantity: 4}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCancelled,
		Comment:   "customer changed their mind",
	}))

	reloaded := loadOrder(t, db, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	assert.NotNil(t, reloaded.CancelledAt)

	var stockRow models.VariantStock
	require.NoError(t, db.First(&stockRow, "variant_id = ?", variantID).Error)
	assert.Equal(t, 10, stockRow.Quantity)
	assert.Zero(t, stockRow.Reserved)
}

func TestShippedCommitsSale(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrderService(t, db)
	userID := seedUser(t, db)
	variantID, warehouseID := seedSellableVariant(t, db, decimal.NewFromInt(125000), 10)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Items:  []CreateOrderItem{{VariantID: variantID, WarehouseID: warehouseID, Quantity: 3}},
	})
	require.NoError(t, err)

	ctx := context.Background()
	for _, next := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
	} {
		require.NoError(t, svc.Transition(ctx, TransitionInput{OrderID: order.ID, NewStatus: next}))
	}

	var stockRow models.VariantStock
	require.NoError(t, db.First(&stockRow, "variant_id = ?", variantID).Error)
	assert.Equal(t, 7, stockRow.Quantity)
	assert.Zero(t, stockRow.Reserved)
}

func TestDeliveredAtSetOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _, _, _ := newFakeOrderService(t, db)
	userID := seedUser(t, db)
	order := seedOrderAt(t, db, userID, enums.OrderStatusShipped)

	ctx := context.Background()
	require.NoError(t, svc.Transition(ctx, TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusDelivered,
	}))

	first := loadOrder(t, db, order.ID)
	require.NotNil(t, first.DeliveredAt)

	// a repeated delivered request is a silent no-op and must not touch the
	// recorded timestamp
	require.NoError(t, svc.Transition(ctx, TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusDelivered,
	}))
	second := loadOrder(t, db, order.ID)
	require.NotNil(t, second.DeliveredAt)
	assert.True(t, first.DeliveredAt.Equal(*second.DeliveredAt))
}

func TestCompletedAccruesLoyaltyAndSpend(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrderService(t, db)
	userID := seedUser(t, db)
	order := seedOrderAt(t, db, userID, enums.OrderStatusDelivered)

	require.NoError(t, svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCompleted,
	}))

	reloaded := loadOrder(t, db, order.ID)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
	assert.NotNil(t, reloaded.CompletedAt)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", userID).Error)
	assert.True(t, decimal.NewFromInt(250000).Equal(user.TotalSpend))

	var earning models.PointTransaction
	require.NoError(t, db.First(&earning, "user_id = ? AND kind = ?", userID, enums.PointTransactionKindEarnPurchase).Error)
	assert.Equal(t, int64(25), earning.Points)
	require.NotNil(t, earning.OrderID)
	assert.Equal(t, order.ID, *earning.OrderID)
}

func TestLoyaltyFailureDoesNotBlockCompletion(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _, accruer, _ := newFakeOrderService(t, db)
	accruer.err = fmt.Errorf("points store unavailable")
	userID := seedUser(t, db)
	order := seedOrderAt(t, db, userID, enums.OrderStatusDelivered)

	require.NoError(t, svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCompleted,
	}))
	assert.Equal(t, enums.OrderStatusCompleted, loadOrder(t, db, order.ID).Status)
	assert.Len(t, accruer.calls, 1)
}

func TestRefundInvokesPaymentRefunder(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _, _, refunder := newFakeOrderService(t, db)
	userID := seedUser(t, db)
	order := seedOrderAt(t, db, userID, enums.OrderStatusConfirmed)

	require.NoError(t, svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusRefunded,
	}))
	assert.Equal(t, enums.OrderStatusRefunded, loadOrder(t, db, order.ID).Status)
	require.Len(t, refunder.calls, 1)
	assert.Equal(t, order.ID, refunder.calls[0])
}

func TestRefundBeforeShipmentReleasesStock(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, refunder := newOrderService(t, db)
	userID := seedUser(t, db)
	variantID, warehouseID := seedSellableVariant(t, db, decimal.NewFromInt(125000), 10)

	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderInput{
		UserID: userID,
		Items:  []CreateOrderItem{{VariantID: variantID, WarehouseID: warehouseID, Quantity: 2}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Transition(ctx, TransitionInput{OrderID: order.ID, NewStatus: enums.OrderStatusConfirmed}))
	require.NoError(t, svc.Transition(ctx, TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusRefunded,
		Comment:   "payment disputed",
	}))

	var stockRow models.VariantStock
	require.NoError(t, db.First(&stockRow, "variant_id = ?", variantID).Error)
	assert.Equal(t, 10, stockRow.Quantity)
	assert.Zero(t, stockRow.Reserved, "terminal refund must not leave units reserved forever")
	require.Len(t, refunder.calls, 1)
}

func TestRefundAfterShipmentKeepsSale(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, ledger, _, refunder := newFakeOrderService(t, db)
	userID := seedUser(t, db)
	order := seedOrderAt(t, db, userID, enums.OrderStatusShipped)

	require.NoError(t, svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusRefunded,
	}))

	// the sale was committed at shipment; a refund must not touch stock
	assert.Empty(t, ledger.released)
	require.Len(t, refunder.calls, 1)
}

// abortingAccruer writes a ledger row through the caller's transaction and
// then fails, simulating an accrual that dies mid-flight.
type abortingAccruer struct{}

func (abortingAccruer) ProcessOrderEarning(ctx context.Context, tx *gorm.DB, orderID, userID uuid.UUID, _ decimal.Decimal) (int64, error) {
	oid := orderID
	txn := &models.PointTransaction{
		UserID:       userID,
		OrderID:      &oid,
		Kind:         enums.PointTransactionKindEarnPurchase,
		Points:       10,
		BalanceAfter: 10,
	}
	if err := tx.WithContext(ctx).Create(txn).Error; err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("accrual interrupted")
}

func TestFailedAccrualRollsBackOnlyItself(t *testing.T) {
	db := setupOrdersTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, &recordingLedger{}, abortingAccruer{}, &recordingRefunder{}, logg)
	require.NoError(t, err)
	userID := seedUser(t, db)
	order := seedOrderAt(t, db, userID, enums.OrderStatusDelivered)

	require.NoError(t, svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCompleted,
	}))

	// the transition and its history row commit; the accruer's partial
	// write rolls back to its savepoint
	assert.Equal(t, enums.OrderStatusCompleted, loadOrder(t, db, order.ID).Status)

	history, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	var pointCount int64
	require.NoError(t, db.Model(&models.PointTransaction{}).
		Where("order_id = ?", order.ID).
		Count(&pointCount).Error)
	assert.Zero(t, pointCount)
}

func TestConfirmPaidRecordsSystemActor(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _, _, _ := newFakeOrderService(t, db)
	userID := seedUser(t, db)
	order := seedOrderAt(t, db, userID, enums.OrderStatusPending)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.ConfirmPaid(context.Background(), tx, order.ID, "payment confirmed via gateway webhook")
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusConfirmed, loadOrder(t, db, order.ID).Status)

	history, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].ActorUserID)
	require.NotNil(t, history[0].Comment)
	assert.Contains(t, *history[0].Comment, "gateway webhook")
}

func TestAutoCompleteDelivered(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrderService(t, db)
	userID := seedUser(t, db)

	stale := seedOrderAt(t, db, userID, enums.OrderStatusDelivered)
	eightDaysAgo := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, db.Model(stale).Update("delivered_at", eightDaysAgo).Error)

	fresh := seedOrderAt(t, db, userID, enums.OrderStatusDelivered)
	sixDaysAgo := time.Now().Add(-6 * 24 * time.Hour)
	require.NoError(t, db.Model(fresh).Update("delivered_at", sixDaysAgo).Error)

	processed, err := svc.AutoCompleteDelivered(context.Background(), 7*24*time.Hour, "auto-completed after 7-day grace period")
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	assert.Equal(t, enums.OrderStatusCompleted, loadOrder(t, db, stale.ID).Status)
	assert.Equal(t, enums.OrderStatusDelivered, loadOrder(t, db, fresh.ID).Status)

	history, err := svc.History(context.Background(), stale.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].ActorUserID)
	require.NotNil(t, history[0].Comment)
	assert.Contains(t, *history[0].Comment, "grace period")
}
