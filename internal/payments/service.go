package payments

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderConfirmer advances an order after its payment settles. Implemented by
// the orders service; injected here to keep the dependency one-directional.
type OrderConfirmer interface {
	ConfirmPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, comment string) error
}

// Service is the payment gateway adapter: it creates, queries and cancels
// payment intents and processes inbound webhooks.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*models.PaymentTransaction, error)
	IntentStatus(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
	CancelIntent(ctx context.Context, orderID uuid.UUID, reason string) error
	HandleWebhook(ctx context.Context, payload WebhookPayload) error
	MarkRefunded(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ListMethods(ctx context.Context) ([]models.PaymentMethod, error)
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.PaymentTransaction, error)
}

// CreateIntentInput identifies the order to collect payment for.
type CreateIntentInput struct {
	OrderID    uuid.UUID
	MethodCode string
	BuyerName  string
	BuyerEmail string
}

type service struct {
	repo      Repository
	gateway   Gateway
	tx        txRunner
	confirmer OrderConfirmer
	cfg       config.GatewayConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the payments service with the required dependencies.
func NewService(repo Repository, gateway Gateway, tx txRunner, confirmer OrderConfirmer, cfg config.GatewayConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if confirmer == nil {
		return nil, fmt.Errorf("order confirmer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		gateway:   gateway,
		tx:        tx,
		confirmer: confirmer,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// CreateIntent registers a pending transaction and asks the gateway for a
// checkout link. The transaction code is generated and persisted before the
// outbound call, so a timeout can be retried with a status query instead of
// risking a duplicate intent.
func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*models.PaymentTransaction, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "payment can only be collected for pending orders").
			WithDetails(map[string]any{"current_status": order.Status})
	}

	methodCode := input.MethodCode
	if methodCode == "" {
		methodCode = "gateway"
	}
	method, err := s.repo.FindMethodByCode(ctx, methodCode)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment method")
	}

	orderCode, err := generateOrderCode(s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transaction code")
	}

	txn := &models.PaymentTransaction{
		TransactionCode: strconv.FormatInt(orderCode, 10),
		OrderID:         order.ID,
		PaymentMethodID: method.ID,
		Status:          enums.PaymentStatusPending,
		Amount:          order.TotalAmount,
	}
	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment transaction")
	}

	link, err := s.gateway.CreateLink(ctx, CreateLinkRequest{
		OrderCode:   orderCode,
		Amount:      order.TotalAmount.Round(0).IntPart(),
		Description: "Order " + order.OrderNumber,
		BuyerName:   input.BuyerName,
		BuyerEmail:  input.BuyerEmail,
		ExpiredAt:   linkExpiryUnix(s.now(), s.cfg.LinkExpiry),
	})
	if err != nil {
		// transaction stays pending; the caller retries via IntentStatus
		return nil, err
	}

	updates := map[string]any{
		"gateway_txn_id": link.PaymentLinkID,
		"checkout_url":   link.CheckoutURL,
	}
	if err := s.repo.UpdateTransaction(ctx, txn.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout link")
	}
	gatewayID := link.PaymentLinkID
	txn.GatewayTxnID = &gatewayID
	txn.CheckoutURL = link.CheckoutURL
	return txn, nil
}

// IntentStatus returns the latest transaction for the order, refreshing a
// pending one against the gateway.
func (s *service) IntentStatus(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	txn, err := s.repo.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment transaction for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment transaction")
	}
	if txn.Status != enums.PaymentStatusPending {
		return txn, nil
	}

	orderCode, err := strconv.ParseInt(txn.TransactionCode, 10, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse transaction code")
	}
	link, err := s.gateway.GetLink(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	if link.Status == "PAID" {
		if err := s.settle(ctx, txn, link.PaymentLinkID, nil); err != nil {
			return nil, err
		}
		return s.repo.FindLatestByOrder(ctx, orderID)
	}
	return txn, nil
}

func (s *service) CancelIntent(ctx context.Context, orderID uuid.UUID, reason string) error {
	txn, err := s.repo.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payment transaction for order")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment transaction")
	}
	if txn.Status != enums.PaymentStatusPending {
		return pkgerrors.New(pkgerrors.CodeConflict, "only pending transactions can be cancelled")
	}

	orderCode, err := strconv.ParseInt(txn.TransactionCode, 10, 64)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse transaction code")
	}
	if _, err := s.gateway.CancelLink(ctx, orderCode, reason); err != nil {
		return err
	}
	if err := s.repo.UpdateTransaction(ctx, txn.ID, map[string]any{"status": enums.PaymentStatusFailed}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction cancelled")
	}
	return nil
}

// HandleWebhook verifies the payload signature and settles the referenced
// transaction. Replayed deliveries are no-ops.
func (s *service) HandleWebhook(ctx context.Context, payload WebhookPayload) error {
	if !s.gateway.VerifyWebhook(payload) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}

	var data WebhookData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook data")
	}

	txn, err := s.repo.FindByTransactionCode(ctx, strconv.FormatInt(data.OrderCode, 10))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown transaction code")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment transaction")
	}
	if txn.Status == enums.PaymentStatusPaid {
		return nil
	}

	if !payload.Success || data.Code != webhookSuccessCode {
		if err := s.repo.UpdateTransaction(ctx, txn.ID, map[string]any{"status": enums.PaymentStatusFailed}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction failed")
		}
		return nil
	}

	if data.Amount != txn.Amount.Round(0).IntPart() {
		return pkgerrors.New(pkgerrors.CodeConflict, "webhook amount does not match transaction").
			WithDetails(map[string]any{"expected": txn.Amount, "received": data.Amount})
	}

	return s.settle(ctx, txn, data.Reference, payload.Data)
}

// settle marks the transaction paid and confirms the order in one
// transaction.
func (s *service) settle(ctx context.Context, txn *models.PaymentTransaction, gatewayTxnID string, metadata []byte) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.MarkPaid(ctx, txn.ID, gatewayTxnID, metadata)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction paid")
		}
		if !ok {
			// another delivery settled it first
			return nil
		}
		if err := s.confirmer.ConfirmPaid(ctx, tx, txn.OrderID, "payment confirmed by gateway"); err != nil {
			// the order reached a state that no longer accepts
			// confirmation (cancelled while the capture was in flight, or
			// already past confirmed). Keep the capture on record so
			// reconciliation can refund it; bouncing the webhook would
			// just replay the same conflict forever.
			if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeInvalidTransition {
				s.logg.Warn(s.logg.WithOrderID(ctx, txn.OrderID.String()),
					"payment captured for order that cannot confirm, flagged for refund")
				return nil
			}
			return err
		}
		return nil
	})
}

// MarkRefunded flips the order's paid transaction to refunded inside the
// caller's transaction. Used by the order lifecycle on refund transitions.
func (s *service) MarkRefunded(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	txn, err := repo.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment transaction")
	}
	if txn.Status != enums.PaymentStatusPaid {
		return nil
	}
	if err := repo.UpdateTransaction(ctx, txn.ID, map[string]any{"status": enums.PaymentStatusRefunded}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction refunded")
	}
	return nil
}

func (s *service) ListMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	methods, err := s.repo.ListActiveMethods(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment methods")
	}
	return methods, nil
}

// ListStalePending returns pending transactions older than the supplied age,
// candidates for a status-query reconcile against the gateway.
func (s *service) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.PaymentTransaction, error) {
	txns, err := s.repo.ListStalePending(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale pending transactions")
	}
	return txns, nil
}

// generateOrderCode builds a time-ordered numeric code with a random suffix.
// Uniqueness is enforced by the transaction_code index.
func generateOrderCode(now time.Time) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return 0, err
	}
	return now.UnixMilli()*1000 + n.Int64(), nil
}
