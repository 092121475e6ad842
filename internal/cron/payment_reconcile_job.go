package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/logger"
	"github.com/gomartvn/gomart-backend/pkg/metrics"
)

const (
	// stalePendingAge is how long a pending payment may sit before the
	// worker asks the gateway what happened to it.
	stalePendingAge   = 30 * time.Minute
	reconcileBatchCap = 100
)

// paymentReconciler is the slice of the payments service the job drives:
// find stale pending intents, then refresh each against the gateway.
type paymentReconciler interface {
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.PaymentTransaction, error)
	IntentStatus(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
}

// PaymentReconcileJobParams configure the pending-payment reconcile job.
type PaymentReconcileJobParams struct {
	Logger   *logger.Logger
	Payments paymentReconciler
	Metrics  *metrics.CronJobMetrics
}

// NewPaymentReconcileJob builds the job that settles payments whose webhook
// never arrived.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &paymentReconcileJob{
		logg:     params.Logger,
		payments: params.Payments,
		metrics:  params.Metrics,
	}, nil
}

type paymentReconcileJob struct {
	logg     *logger.Logger
	payments paymentReconciler
	metrics  *metrics.CronJobMetrics
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

// Run refreshes every stale pending transaction. A failed refresh does not
// stop the rest of the batch; the errors are combined and surfaced together.
func (j *paymentReconcileJob) Run(ctx context.Context) error {
	stale, err := j.payments.ListStalePending(ctx, stalePendingAge, reconcileBatchCap)
	if err != nil {
		return fmt.Errorf("list stale pending payments: %w", err)
	}

	var errs []error
	refreshed := 0
	for _, txn := range stale {
		if _, err := j.payments.IntentStatus(ctx, txn.OrderID); err != nil {
			txnCtx := j.logg.WithField(ctx, "transaction_code", txn.TransactionCode)
			j.logg.Error(txnCtx, "payment status refresh failed", err)
			errs = append(errs, fmt.Errorf("refresh transaction %s: %w", txn.TransactionCode, err))
			continue
		}
		refreshed++
	}
	j.metrics.AddProcessed(j.Name(), refreshed)

	logCtx := j.logg.WithFields(ctx, map[string]any{"stale": len(stale), "refreshed": refreshed})
	j.logg.Info(logCtx, "pending payment reconcile complete")
	return multierr.Combine(errs...)
}
