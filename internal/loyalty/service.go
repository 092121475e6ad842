package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/db"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RateSource resolves runtime overrides for the earn rate and the redeem
// switch. Implemented by the settings service; nil means config values only.
type RateSource interface {
	GetFloat(ctx context.Context, key string, def float64) float64
	GetBool(ctx context.Context, key string, def bool) bool
}

// settings keys, mirrored here to avoid importing the settings package
const (
	earnRateKey     = "loyalty_earn_rate"
	redeemActiveKey = "loyalty_redeem_active"
)

// Service is the loyalty accrual engine. ProcessOrderEarning accepts the
// caller's transaction so accrual commits atomically with the order state
// change that triggered it.
type Service interface {
	ProcessOrderEarning(ctx context.Context, tx *gorm.DB, orderID, userID uuid.UUID, orderTotal decimal.Decimal) (int64, error)
	Redeem(ctx context.Context, userID uuid.UUID, points int64, note string) error
	AdjustPoints(ctx context.Context, userID uuid.UUID, points int64, note string) error
	Balance(ctx context.Context, userID uuid.UUID) (*models.LoyaltyPoint, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	cfg   config.LoyaltyConfig
	rates RateSource
	logg  *logger.Logger
}

// NewService builds the loyalty service. rates may be nil, in which case
// the config values are final.
func NewService(repo Repository, tx txRunner, cfg config.LoyaltyConfig, rates RateSource, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cfg.EarnRate < 0 {
		return nil, fmt.Errorf("earn rate must be non-negative")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, cfg: cfg, rates: rates, logg: logg}, nil
}

func (s *service) earnRate(ctx context.Context) float64 {
	if s.rates == nil {
		return s.cfg.EarnRate
	}
	rate := s.rates.GetFloat(ctx, earnRateKey, s.cfg.EarnRate)
	if rate < 0 {
		return s.cfg.EarnRate
	}
	return rate
}

func (s *service) redeemActive(ctx context.Context) bool {
	if s.rates == nil {
		return s.cfg.RedeemActive
	}
	return s.rates.GetBool(ctx, redeemActiveKey, s.cfg.RedeemActive)
}

// ProcessOrderEarning credits points for a completed purchase exactly once
// per order. A repeat call is a no-op returning zero points.
func (s *service) ProcessOrderEarning(ctx context.Context, tx *gorm.DB, orderID, userID uuid.UUID, orderTotal decimal.Decimal) (int64, error) {
	if orderID == uuid.Nil || userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order and user id required")
	}

	points := orderTotal.Mul(decimal.NewFromFloat(s.earnRate(ctx))).Floor().IntPart()
	if points <= 0 {
		return 0, nil
	}

	var credited int64
	run := func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		exists, err := repo.HasOrderEarning(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order earning")
		}
		if exists {
			return nil
		}

		balanceAfter, err := s.applyDelta(ctx, repo, userID, points, points)
		if err != nil {
			return err
		}

		oid := orderID
		txn := &models.PointTransaction{
			UserID:       userID,
			OrderID:      &oid,
			Kind:         enums.PointTransactionKindEarnPurchase,
			Points:       points,
			BalanceAfter: balanceAfter,
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			// the unique (order_id, kind) index is the backstop for
			// concurrent accrual of the same order; it is the only unique
			// index this insert can trip
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order earning already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record point transaction")
		}
		credited = points
		return nil
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = s.tx.WithTx(ctx, run)
	}
	if err != nil {
		return 0, err
	}
	return credited, nil
}

func (s *service) Redeem(ctx context.Context, userID uuid.UUID, points int64, note string) error {
	if !s.redeemActive(ctx) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "point redemption is disabled")
	}
	if points <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		balanceAfter, err := s.applyDelta(ctx, repo, userID, -points, 0)
		if err != nil {
			return err
		}
		return s.record(ctx, repo, userID, nil, enums.PointTransactionKindRedeem, -points, balanceAfter, note)
	})
}

func (s *service) AdjustPoints(ctx context.Context, userID uuid.UUID, points int64, note string) error {
	if points == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points must be non-zero")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		balanceAfter, err := s.applyDelta(ctx, repo, userID, points, 0)
		if err != nil {
			return err
		}
		return s.record(ctx, repo, userID, nil, enums.PointTransactionKindAdjust, points, balanceAfter, note)
	})
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*models.LoyaltyPoint, error) {
	row, err := s.repo.FindBalance(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &models.LoyaltyPoint{UserID: userID}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loyalty balance")
	}
	return row, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error) {
	txns, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list point transactions")
	}
	return txns, nil
}

func (s *service) applyDelta(ctx context.Context, repo Repository, userID uuid.UUID, delta, lifetimeDelta int64) (int64, error) {
	if err := repo.EnsureBalanceRow(ctx, userID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure loyalty balance row")
	}
	ok, err := repo.ApplyBalanceDelta(ctx, userID, delta, lifetimeDelta)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply balance delta")
	}
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeConflict, "insufficient point balance").
			WithDetails(map[string]any{"user_id": userID, "delta": delta})
	}
	row, err := repo.FindBalance(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload loyalty balance")
	}
	return row.Balance, nil
}

func (s *service) record(ctx context.Context, repo Repository, userID uuid.UUID, orderID *uuid.UUID, kind enums.PointTransactionKind, points, balanceAfter int64, note string) error {
	txn := &models.PointTransaction{
		UserID:       userID,
		OrderID:      orderID,
		Kind:         kind,
		Points:       points,
		BalanceAfter: balanceAfter,
	}
	if note != "" {
		txn.Note = &note
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record point transaction")
	}
	return nil
}
