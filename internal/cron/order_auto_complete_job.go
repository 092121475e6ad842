package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/gomartvn/gomart-backend/internal/settings"
	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/logger"
	"github.com/gomartvn/gomart-backend/pkg/metrics"
)

// orderAutoCompleter is the slice of the orders service the sweeper drives.
type orderAutoCompleter interface {
	AutoCompleteDelivered(ctx context.Context, grace time.Duration, comment string) (int, error)
}

// graceReader resolves the runtime-overridable grace window.
type graceReader interface {
	GetInt(ctx context.Context, key string, def int) int
}

// OrderAutoCompleteJobParams configure the delivered-order sweeper.
type OrderAutoCompleteJobParams struct {
	Logger   *logger.Logger
	Orders   orderAutoCompleter
	Settings graceReader
	Config   config.SweeperConfig
	Metrics  *metrics.CronJobMetrics
}

// NewOrderAutoCompleteJob builds the job that promotes orders delivered
// longer than the grace window ago to completed.
func NewOrderAutoCompleteJob(params OrderAutoCompleteJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings service required")
	}
	return &orderAutoCompleteJob{
		logg:     params.Logger,
		orders:   params.Orders,
		settings: params.Settings,
		cfg:      params.Config,
		metrics:  params.Metrics,
	}, nil
}

type orderAutoCompleteJob struct {
	logg     *logger.Logger
	orders   orderAutoCompleter
	settings graceReader
	cfg      config.SweeperConfig
	metrics  *metrics.CronJobMetrics
}

func (j *orderAutoCompleteJob) Name() string { return "order-auto-complete" }

// Run executes one sweep. The whole batch is a single transaction inside the
// orders service: either every eligible order completes or none do.
func (j *orderAutoCompleteJob) Run(ctx context.Context) error {
	days := j.settings.GetInt(ctx, settings.KeyOrderAutoCompleteDays, j.cfg.GracePeriodDays)
	if days <= 0 {
		days = j.cfg.GracePeriodDays
	}
	grace := time.Duration(days) * 24 * time.Hour
	comment := fmt.Sprintf("automatically completed after %d-day grace period", days)

	processed, err := j.orders.AutoCompleteDelivered(ctx, grace, comment)
	if err != nil {
		return fmt.Errorf("auto-complete delivered orders: %w", err)
	}
	j.metrics.AddProcessed(j.Name(), processed)

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": processed, "grace_days": days})
	j.logg.Info(logCtx, "delivered order sweep complete")
	return nil
}
