package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pharmapos/pharmapos/internal/inventory"
	jobmetrics "github.com/pharmapos/pharmapos/internal/jobs"
	"github.com/pharmapos/pharmapos/internal/shared"
)

type fakeReporter struct {
	expiring []inventory.ExpiringLot
	lowStock []inventory.LowStockEntry
	err      error

	expiringCalls int
	lowStockCalls int
	within        time.Duration
	limit         int
}

func (f *fakeReporter) ListExpiring(ctx context.Context, within time.Duration, limit int) ([]inventory.ExpiringLot, error) {
	f.expiringCalls++
	f.within = within
	f.limit = limit
	return f.expiring, f.err
}

func (f *fakeReporter) ListLowStock(ctx context.Context, limit int) ([]inventory.LowStockEntry, error) {
	f.lowStockCalls++
	f.limit = limit
	return f.lowStock, f.err
}

type fakeIdempotency struct {
	err  error
	keys []string
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	f.keys = append(f.keys, key)
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func expiryTask(t *testing.T, payload ExpiryScanPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskExpiryScan, data)
}

func TestExpiryScanAppliesDefaults(t *testing.T) {
	reporter := &fakeReporter{expiring: []inventory.ExpiringLot{
		{Lot: inventory.Lot{ID: 1, Quantity: 4}, ProductCode: "PAR500", ProductName: "Paracetamol 500mg"},
	}}
	job := NewExpiryScanJob(reporter, nil, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), expiryTask(t, ExpiryScanPayload{}))
	require.NoError(t, err)
	require.Equal(t, 1, reporter.expiringCalls)
	require.Equal(t, 90*24*time.Hour, reporter.within)
	require.Equal(t, 100, reporter.limit)
}

func TestExpiryScanSkipsWhenAlreadyRan(t *testing.T) {
	reporter := &fakeReporter{}
	idem := &fakeIdempotency{err: shared.ErrIdempotencyConflict}
	job := NewExpiryScanJob(reporter, idem, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time {
		return time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	}

	err := job.Handle(context.Background(), expiryTask(t, ExpiryScanPayload{WithinDays: 30}))
	require.NoError(t, err)
	require.Zero(t, reporter.expiringCalls)
	require.Equal(t, []string{"expiry-scan:2026-03-15"}, idem.keys)
}

func TestExpiryScanPropagatesReporterError(t *testing.T) {
	reporter := &fakeReporter{err: errors.New("db down")}
	job := NewExpiryScanJob(reporter, nil, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), expiryTask(t, ExpiryScanPayload{WithinDays: 30}))
	require.Error(t, err)
}

func TestExpiryScanRejectsMalformedPayload(t *testing.T) {
	job := NewExpiryScanJob(&fakeReporter{}, nil, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskExpiryScan, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLowStockScanReportsEntries(t *testing.T) {
	reporter := &fakeReporter{lowStock: []inventory.LowStockEntry{
		{ProductID: 7, ProductCode: "AMX250", ProductName: "Amoxicillin 250mg", BaseQuantity: 3, ReorderLevel: 10},
	}}
	idem := &fakeIdempotency{}
	job := NewLowStockScanJob(reporter, idem, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time {
		return time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	}

	data, err := json.Marshal(LowStockScanPayload{Limit: 50})
	require.NoError(t, err)
	err = job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, data))
	require.NoError(t, err)
	require.Equal(t, 1, reporter.lowStockCalls)
	require.Equal(t, 50, reporter.limit)
	require.Equal(t, []string{"lowstock-scan:2026-03-15"}, idem.keys)
}
