package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmapos/pharmapos/internal/inventory"
	jobmetrics "github.com/pharmapos/pharmapos/internal/jobs"
	"github.com/pharmapos/pharmapos/internal/shared"
)

// StockReporter exposes the inventory read paths the scans depend on.
type StockReporter interface {
	ListExpiring(ctx context.Context, within time.Duration, limit int) ([]inventory.ExpiringLot, error)
	ListLowStock(ctx context.Context, limit int) ([]inventory.LowStockEntry, error)
}

// IdempotencyPort guards a scan against duplicate runs for the same key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// ExpiryScanJob reports stock lots approaching their expiry date.
type ExpiryScanJob struct {
	Inventory   StockReporter
	Idempotency IdempotencyPort
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	clock       func() time.Time
}

// NewExpiryScanJob initialises the near-expiry scan handler.
func NewExpiryScanJob(inv StockReporter, idem IdempotencyPort, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpiryScanJob {
	return &ExpiryScanJob{
		Inventory:   inv,
		Idempotency: idem,
		Logger:      logger,
		Metrics:     metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the near-expiry scan logic.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WithinDays <= 0 {
		payload.WithinDays = 90
	}
	if payload.Limit <= 0 {
		payload.Limit = 100
	}

	now := j.now()
	tracker := j.metrics().Track(TaskExpiryScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("within_days", payload.WithinDays))

	if j.Idempotency != nil {
		key := "expiry-scan:" + now.Format("2006-01-02")
		if err := j.Idempotency.CheckAndInsert(ctx, key, "jobs"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				logger.Info("expiry scan already ran today, skipping")
				return nil
			}
			resultErr = err
			return resultErr
		}
	}

	logger.Info("starting expiry scan")
	lots, err := j.Inventory.ListExpiring(ctx, time.Duration(payload.WithinDays)*24*time.Hour, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, entry := range lots {
		logger.Warn("lot nearing expiry",
			slog.Int64("lot_id", entry.Lot.ID),
			slog.String("product_code", entry.ProductCode),
			slog.String("product_name", entry.ProductName),
			slog.String("batch_number", entry.Lot.BatchNumber),
			slog.Time("expiry_date", entry.Lot.ExpiryDate),
			slog.Float64("quantity", entry.Lot.Quantity),
		)
	}
	j.metrics().AddStockAlerts("near_expiry", len(lots))

	logger.Info("completed expiry scan",
		slog.Int("alerts", len(lots)),
		slog.Duration("duration", time.Since(now)),
	)
	return resultErr
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskExpiryScan))
}

func (j *ExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpiryScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
