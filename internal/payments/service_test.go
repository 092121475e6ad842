package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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

type fakeGateway struct {
	createCalls int
	link        GatewayLink
	createErr   error
	linkStatus  string
	verify      bool
	cancelled   []int64
}

func (f *fakeGateway) CreateLink(ctx context.Context, req CreateLinkRequest) (*GatewayLink, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	link := f.link
	link.OrderCode = req.OrderCode
	return &link, nil
}

func (f *fakeGateway) GetLink(ctx context.Context, orderCode int64) (*GatewayLink, error) {
	link := f.link
	link.OrderCode = orderCode
	link.Status = f.linkStatus
	return &link, nil
}

func (f *fakeGateway) CancelLink(ctx context.Context, orderCode int64, reason string) (*GatewayLink, error) {
	f.cancelled = append(f.cancelled, orderCode)
	link := f.link
	link.Status = "CANCELLED"
	return &link, nil
}

func (f *fakeGateway) VerifyWebhook(payload WebhookPayload) bool {
	return f.verify
}

type fakeConfirmer struct {
	confirmed []uuid.UUID
	err       error
}

func (f *fakeConfirmer) ConfirmPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, comment string) error {
	if f.err != nil {
		return f.err
	}
	f.confirmed = append(f.confirmed, orderID)
	return nil
}

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.PaymentMethod{},
		&models.PaymentTransaction{},
	))
	return db
}

func seedPendingOrder(t *testing.T, db *gorm.DB, total int64) *models.Order {
	t.Helper()

	order := &models.Order{
		OrderNumber: "GM-" + uuid.NewString()[:8],
		UserID:      uuid.New(),
		Status:      enums.OrderStatusPending,
		TotalAmount: decimal.NewFromInt(total),
		Currency:    enums.CurrencyVND,
		PlacedAt:    time.Now(),
	}
	require.NoError(t, db.Create(order).Error)
	require.NoError(t, db.Create(&models.PaymentMethod{
		Code:     "gateway",
		Name:     "Online payment",
		Kind:     enums.PaymentMethodKindGateway,
		IsActive: true,
	}).Error)
	return order
}

func newPaymentsService(t *testing.T, db *gorm.DB, gateway Gateway, confirmer OrderConfirmer) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), gateway, gormTxRunner{db: db}, confirmer, config.GatewayConfig{LinkExpiry: 15 * time.Minute}, logg)
	require.NoError(t, err)
	return svc
}

func TestCreateIntentPersistsCodeBeforeGatewayCall(t *testing.T) {
	db := setupPaymentsTestDB(t)
	order := seedPendingOrder(t, db, 250000)
	gateway := &fakeGateway{
		createErr: pkgerrors.New(pkgerrors.CodeGateway, "gateway timeout"),
	}
	svc := newPaymentsService(t, db, gateway, &fakeConfirmer{})

	_, err := svc.CreateIntent(context.Background(), CreateIntentInput{OrderID: order.ID})
	require.Error(t, err)

	// the pending transaction must survive the failed call so a retry can
	// query status instead of creating a duplicate intent
	var txn models.PaymentTransaction
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&txn).Error)
	assert.Equal(t, enums.PaymentStatusPending, txn.Status)
	assert.NotEmpty(t, txn.TransactionCode)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(250000)))
}

func TestCreateIntentStoresCheckoutLink(t *testing.T) {
	db := setupPaymentsTestDB(t)
	order := seedPendingOrder(t, db, 250000)
	gateway := &fakeGateway{
		link: GatewayLink{PaymentLinkID: "pl_1", Status: "PENDING", CheckoutURL: "https://pay.example/pl_1"},
	}
	svc := newPaymentsService(t, db, gateway, &fakeConfirmer{})

	txn, err := svc.CreateIntent(context.Background(), CreateIntentInput{OrderID: order.ID})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/pl_1", txn.CheckoutURL)
	require.NotNil(t, txn.GatewayTxnID)
	assert.Equal(t, "pl_1", *txn.GatewayTxnID)
	assert.Equal(t, 1, gateway.createCalls)
}

func TestCreateIntentRejectsNonPendingOrder(t *testing.T) {
	db := setupPaymentsTestDB(t)
	order := seedPendingOrder(t, db, 250000)
	require.NoError(t, db.Model(order).Update("status", enums.OrderStatusShipped).Error)
	svc := newPaymentsService(t, db, &fakeGateway{}, &fakeConfirmer{})

	_, err := svc.CreateIntent(context.Background(), CreateIntentInput{OrderID: order.ID})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInvalidTransition, appErr.Code())
}

func TestHandleWebhookSettlesAndConfirmsOrder(t *testing.T) {
	db := setupPaymentsTestDB(t)
	order := seedPendingOrder(t, db, 250000)
	gateway := &fakeGateway{
		verify: true,
		link:   GatewayLink{PaymentLinkID: "pl_1", CheckoutURL: "https://pay.example/pl_1"},
	}
	confirmer := &fakeConfirmer{}
	svc := newPaymentsService(t, db, gateway, confirmer)

	txn, err := svc.CreateIntent(context.Background(), CreateIntentInput{OrderID: order.ID})
	require.NoError(t, err)

	orderCode, err := strconv.ParseInt(txn.TransactionCode, 10, 64)
	require.NoError(t, err)
	data, err := json.Marshal(WebhookData{OrderCode: orderCode, Amount: 250000, Reference: "FT1", Code: "00"})
	require.NoError(t, err)
	payload := WebhookPayload{Code: "00", Success: true, Data: data, Signature: "sig"}

	require.NoError(t, svc.HandleWebhook(context.Background(), payload))

	var stored models.PaymentTransaction
	require.NoError(t, db.Where("id = ?", txn.ID).First(&stored).Error)
	assert.Equal(t, enums.PaymentStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	require.Len(t, confirmer.confirmed, 1)
	assert.Equal(t, order.ID, confirmer.confirmed[0])

	// replayed delivery is a no-op
	require.NoError(t, svc.HandleWebhook(context.Background(), payload))
	assert.Len(t, confirmer.confirmed, 1)
}

func TestHandleWebhookKeepsCaptureWhenOrderCannotConfirm(t *testing.T) {
	db := setupPaymentsTestDB(t)
	order := seedPendingOrder(t, db, 250000)
	gateway := &fakeGateway{
		verify: true,
		link:   GatewayLink{PaymentLinkID: "pl_1", CheckoutURL: "https://pay.example/pl_1"},
	}
	confirmer := &fakeConfirmer{}
	svc := newPaymentsService(t, db, gateway, confirmer)

	txn, err := svc.CreateIntent(context.Background(), CreateIntentInput{OrderID: order.ID})
	require.NoError(t, err)

	// order was cancelled while the capture was in flight
	confirmer.err = pkgerrors.New(pkgerrors.CodeInvalidTransition, "transition not allowed")

	orderCode, err := strconv.ParseInt(txn.TransactionCode, 10, 64)
	require.NoError(t, err)
	data, err := json.Marshal(WebhookData{OrderCode: orderCode, Amount: 250000, Reference: "FT1", Code: "00"})
	require.NoError(t, err)
	payload := WebhookPayload{Code: "00", Success: true, Data: data, Signature: "sig"}

	// the delivery must not bounce; the capture stays recorded as paid so
	// reconciliation can refund it
	require.NoError(t, svc.HandleWebhook(context.Background(), payload))

	var stored models.PaymentTransaction
	require.NoError(t, db.Where("id = ?", txn.ID).First(&stored).Error)
	assert.Equal(t, enums.PaymentStatusPaid, stored.Status)
	assert.Empty(t, confirmer.confirmed)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &fakeGateway{verify: false}, &fakeConfirmer{})

	err := svc.HandleWebhook(context.Background(), WebhookPayload{Signature: "bad"})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeUnauthorized, appErr.Code())
}

func TestHandleWebhookRejectsAmountMismatch(t *testing.T) {
	db := setupPaymentsTestDB(t)
	order := seedPendingOrder(t, db, 250000)
	gateway := &fakeGateway{verify: true, link: GatewayLink{PaymentLinkID: "pl_1"}}
	confirmer := &fakeConfirmer{}
	svc := newPaymentsService(t, db, gateway, confirmer)

	txn, err := svc.CreateIntent(context.Background(), CreateIntentInput{OrderID: order.ID})
	require.NoError(t, err)

	orderCode, err := strconv.ParseInt(txn.TransactionCode, 10, 64)
	require.NoError(t, err)
	data, err := json.Marshal(WebhookData{OrderCode: orderCode, Amount: 1, Code: "00"})
	require.NoError(t, err)

	err = svc.HandleWebhook(context.Background(), WebhookPayload{Success: true, Data: data, Signature: "sig"})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())
	assert.Empty(t, confirmer.confirmed)
}

func TestHandleWebhookFailureMarksTransactionFailed(t *testing.T) {
	db := setupPaymentsTestDB(t)
	order := seedPendingOrder(t, db, 250000)
	gateway := &fakeGateway{verify: true, link: GatewayLink{PaymentLinkID: "pl_1"}}
	svc := newPaymentsService(t, db, gateway, &fakeConfirmer{})

	txn, err := svc.CreateIntent(context.Background(), CreateIntentInput{OrderID: order.ID})
	require.NoError(t, err)

	orderCode, err := strconv.ParseInt(txn.TransactionCode, 10, 64)
	require.NoError(t, err)
	data, err := json.Marshal(WebhookData{OrderCode: orderCode, Amount: 250000, Code: "01", Desc: "declined"})
	require.NoError(t, err)

	require.NoError(t, svc.HandleWebhook(context.Background(), WebhookPayload{Success: false, Data: data, Signature: "sig"}))

	var stored models.PaymentTransaction
	require.NoError(t, db.Where("id = ?", txn.ID).First(&stored).Error)
	assert.Equal(t, enums.PaymentStatusFailed, stored.Status)
}

func TestMarkRefundedFlipsPaidTransaction(t *testing.T) {
	db := setupPaymentsTestDB(t)
	order := seedPendingOrder(t, db, 250000)
	svc := newPaymentsService(t, db, &fakeGateway{}, &fakeConfirmer{})

	paidAt := time.Now()
	txn := &models.PaymentTransaction{
		TransactionCode: "900001",
		OrderID:         order.ID,
		PaymentMethodID: uuid.New(),
		Status:          enums.PaymentStatusPaid,
		Amount:          decimal.NewFromInt(250000),
		PaidAt:          &paidAt,
	}
	require.NoError(t, db.Create(txn).Error)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.MarkRefunded(context.Background(), tx, order.ID)
	}))

	var stored models.PaymentTransaction
	require.NoError(t, db.Where("id = ?", txn.ID).First(&stored).Error)
	assert.Equal(t, enums.PaymentStatusRefunded, stored.Status)
}
