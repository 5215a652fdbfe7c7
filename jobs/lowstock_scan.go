package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pharmapos/pharmapos/internal/jobs"
	"github.com/pharmapos/pharmapos/internal/shared"
)

// LowStockScanJob reports products whose base-unit total fell at or below
// their reorder level.
type LowStockScanJob struct {
	Inventory   StockReporter
	Idempotency IdempotencyPort
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	clock       func() time.Time
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(inv StockReporter, idem IdempotencyPort, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Inventory:   inv,
		Idempotency: idem,
		Logger:      logger,
		Metrics:     metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the low-stock scan logic.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("low-stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 100
	}

	now := j.now()
	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()

	if j.Idempotency != nil {
		key := "lowstock-scan:" + now.Format("2006-01-02")
		if err := j.Idempotency.CheckAndInsert(ctx, key, "jobs"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				logger.Info("low-stock scan already ran today, skipping")
				return nil
			}
			resultErr = err
			return resultErr
		}
	}

	logger.Info("starting low-stock scan")
	entries, err := j.Inventory.ListLowStock(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, entry := range entries {
		logger.Warn("product below reorder level",
			slog.Int64("product_id", entry.ProductID),
			slog.String("product_code", entry.ProductCode),
			slog.String("product_name", entry.ProductName),
			slog.Float64("base_quantity", entry.BaseQuantity),
			slog.Float64("reorder_level", entry.ReorderLevel),
		)
	}
	j.metrics().AddStockAlerts("low_stock", len(entries))

	logger.Info("completed low-stock scan",
		slog.Int("alerts", len(entries)),
		slog.Duration("duration", time.Since(now)),
	)
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
