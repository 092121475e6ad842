package cron

import (
	"context"
	"fmt"

	"github.com/gomartvn/gomart-backend/pkg/logger"
	"github.com/gomartvn/gomart-backend/pkg/metrics"
)

// thresholdScanner re-evaluates low-stock thresholds across all variants.
type thresholdScanner interface {
	ScanThresholds(ctx context.Context) (int, error)
}

// StockAlertScanJobParams configure the low-stock safety-net scan.
type StockAlertScanJobParams struct {
	Logger  *logger.Logger
	Stock   thresholdScanner
	Metrics *metrics.CronJobMetrics
}

// NewStockAlertScanJob builds the job that raises alerts for stock rows that
// slipped under their threshold outside a ledger operation.
func NewStockAlertScanJob(params StockAlertScanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	return &stockAlertScanJob{
		logg:    params.Logger,
		stock:   params.Stock,
		metrics: params.Metrics,
	}, nil
}

type stockAlertScanJob struct {
	logg    *logger.Logger
	stock   thresholdScanner
	metrics *metrics.CronJobMetrics
}

func (j *stockAlertScanJob) Name() string { return "stock-alert-scan" }

func (j *stockAlertScanJob) Run(ctx context.Context) error {
	raised, err := j.stock.ScanThresholds(ctx)
	if err != nil {
		return fmt.Errorf("scan stock thresholds: %w", err)
	}
	j.metrics.AddProcessed(j.Name(), raised)

	logCtx := j.logg.WithFields(ctx, map[string]any{"raised": raised})
	j.logg.Info(logCtx, "stock threshold scan complete")
	return nil
}
