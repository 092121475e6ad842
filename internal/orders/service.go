package orders

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/internal/stock"
	"github.com/gomartvn/gomart-backend/pkg/db"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the order status state machine. Every transition appends
// exactly one history row inside the same transaction as the status change.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)

	Transition(ctx context.Context, input TransitionInput) error
	TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) error
	ConfirmPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, comment string) error
	AutoCompleteDelivered(ctx context.Context, grace time.Duration, comment string) (int, error)
}

// allowedTransitions is the lifecycle graph. Terminal states have no entry.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusRefunded},
	enums.OrderStatusDelivered:  {enums.OrderStatusCompleted, enums.OrderStatusRefunded},
}

func canTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   StockLedger
	loyalty  LoyaltyAccruer
	refunder PaymentRefunder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order lifecycle service with the required
// dependencies.
func NewService(repo Repository, tx txRunner, ledger StockLedger, loyalty LoyaltyAccruer, refunder PaymentRefunder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if loyalty == nil {
		return nil, fmt.Errorf("loyalty accruer required")
	}
	if refunder == nil {
		return nil, fmt.Errorf("payment refunder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		ledger:   ledger,
		loyalty:  loyalty,
		refunder: refunder,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Create places a pending order and reserves stock for every line in one
// transaction: either all lines reserve or the order does not exist.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.VariantID == uuid.Nil || item.WarehouseID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item variant and warehouse required")
		}
	}

	variantIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		variantIDs = append(variantIDs, item.VariantID)
	}
	variants, err := s.repo.FindVariants(ctx, variantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	priceByVariant := make(map[uuid.UUID]decimal.Decimal, len(variants))
	for _, variant := range variants {
		if !variant.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant is not sellable").
				WithDetails(map[string]any{"variant_id": variant.ID})
		}
		priceByVariant[variant.ID] = variant.Price
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	lines := make([]stock.Line, 0, len(input.Items))
	for _, item := range input.Items {
		price, ok := priceByVariant[item.VariantID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
				WithDetails(map[string]any{"variant_id": item.VariantID})
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(lineTotal)
		items = append(items, models.OrderItem{
			VariantID:   item.VariantID,
			WarehouseID: item.WarehouseID,
			Quantity:    item.Quantity,
			UnitPrice:   price,
			LineTotal:   lineTotal,
		})
		lines = append(lines, stock.Line{
			VariantID:   item.VariantID,
			WarehouseID: item.WarehouseID,
			Qty:         item.Quantity,
		})
	}

	order := &models.Order{
		UserID:          input.UserID,
		Status:          enums.OrderStatusPending,
		TotalAmount:     total,
		Currency:        enums.CurrencyVND,
		PaymentMethodID: input.PaymentMethodID,
		PlacedAt:        s.now(),
		Items:           items,
	}
	if input.ShippingAddress != "" {
		addr := input.ShippingAddress
		order.ShippingAddress = &addr
	}
	if input.Note != "" {
		note := input.Note
		order.Note = &note
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for attempt := 0; ; attempt++ {
			order.OrderNumber = generateOrderNumber(s.now())
			createErr := repo.Create(ctx, order)
			if createErr == nil {
				break
			}
			if db.IsUniqueViolation(createErr, "order_number") && attempt < 2 {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create order")
		}
		if err := s.ledger.Reserve(ctx, tx, order.ID, lines); err != nil {
			return err
		}
		// the audit trail starts at placement, not at the first transition
		actorID := input.UserID
		comment := "order placed"
		entry := &models.OrderStatusHistory{
			OrderID:     order.ID,
			OldStatus:   enums.OrderStatusPending,
			NewStatus:   enums.OrderStatusPending,
			ActorUserID: &actorID,
			Comment:     &comment,
		}
		if err := repo.CreateHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	entries, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order history")
	}
	return entries, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.TransitionTx(ctx, tx, input)
	})
}

// TransitionTx applies one lifecycle transition inside the caller's
// transaction: status mutation, history row, stock effect and payment effect
// commit or roll back together. Loyalty accrual is best-effort: its failure
// is logged, never surfaced.
func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.NewStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status == input.NewStatus {
		return nil
	}
	if !canTransition(order.Status, input.NewStatus) {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "transition not allowed").
			WithDetails(map[string]any{
				"current_status":   order.Status,
				"requested_status": input.NewStatus,
			})
	}

	now := s.now()
	updates := map[string]any{"status": input.NewStatus}

	switch input.NewStatus {
	case enums.OrderStatusShipped:
		if err := s.ledger.CommitSale(ctx, tx, order.ID, orderLines(order)); err != nil {
			return err
		}
	case enums.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			updates["delivered_at"] = now
		}
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
		if err := s.ledger.Release(ctx, tx, order.ID, orderLines(order)); err != nil {
			return err
		}
	case enums.OrderStatusCompleted:
		updates["completed_at"] = now
	case enums.OrderStatusRefunded:
		// before shipment the units are still reserved, not sold; a
		// terminal refund must hand them back or they stay unsellable
		if order.Status == enums.OrderStatusConfirmed || order.Status == enums.OrderStatusProcessing {
			if err := s.ledger.Release(ctx, tx, order.ID, orderLines(order)); err != nil {
				return err
			}
		}
		if err := s.refunder.MarkRefunded(ctx, tx, order.ID); err != nil {
			return err
		}
	}

	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	entry := &models.OrderStatusHistory{
		OrderID:     order.ID,
		OldStatus:   order.Status,
		NewStatus:   input.NewStatus,
		ActorUserID: input.ActorUserID,
	}
	if input.Comment != "" {
		comment := input.Comment
		entry.Comment = &comment
	}
	if err := repo.CreateHistory(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}

	// legacy aggregate plus loyalty accrual on delivered -> completed; the
	// prior-status guard keeps both single-shot per order
	if input.NewStatus == enums.OrderStatusCompleted && order.Status == enums.OrderStatusDelivered {
		if err := repo.IncrementUserSpend(ctx, order.UserID, order.TotalAmount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer spend")
		}
		// nested transaction so a failed accrual statement rolls back to
		// its savepoint instead of poisoning the outer transaction
		accrualErr := tx.Transaction(func(inner *gorm.DB) error {
			_, err := s.loyalty.ProcessOrderEarning(ctx, inner, order.ID, order.UserID, order.TotalAmount)
			return err
		})
		if accrualErr != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "loyalty accrual failed", accrualErr)
		}
	}

	return nil
}

// ConfirmPaid is the settlement hook the payments service calls once a
// gateway webhook verifies.
func (s *service) ConfirmPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, comment string) error {
	return s.TransitionTx(ctx, tx, TransitionInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusConfirmed,
		Comment:   comment,
	})
}

// AutoCompleteDelivered promotes every order delivered longer than the grace
// window ago to completed. The batch is one transaction: all eligible orders
// transition or none do.
func (s *service) AutoCompleteDelivered(ctx context.Context, grace time.Duration, comment string) (int, error) {
	cutoff := s.now().Add(-grace)
	processed := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		due, err := repo.FindDeliveredBefore(ctx, cutoff)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find auto-completable orders")
		}
		for _, order := range due {
			if err := s.TransitionTx(ctx, tx, TransitionInput{
				OrderID:   order.ID,
				NewStatus: enums.OrderStatusCompleted,
				Comment:   comment,
			}); err != nil {
				return err
			}
			processed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

func orderLines(order *models.Order) []stock.Line {
	lines := make([]stock.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, stock.Line{
			VariantID:   item.VariantID,
			WarehouseID: item.WarehouseID,
			Qty:         item.Quantity,
		})
	}
	return lines
}

// generateOrderNumber builds a date-prefixed human-readable number. The
// unique index on order_number is the collision backstop.
func generateOrderNumber(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 1_000_000)
	}
	return fmt.Sprintf("GM%s%06d", now.Format("060102"), n.Int64())
}
