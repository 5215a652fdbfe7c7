package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pharmapos/pharmapos/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpiryScan is the task type for the near-expiry stock scan.
	TaskExpiryScan = "inventory:expiry_scan"
	// TaskLowStockScan is the task type for the low-stock scan.
	TaskLowStockScan = "inventory:lowstock_scan"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ExpiryScanPayload configures a near-expiry scan run.
type ExpiryScanPayload struct {
	WithinDays int `json:"within_days"`
	Limit      int `json:"limit"`
}

// NewExpiryScanTask constructs an Asynq task for the near-expiry scan.
func NewExpiryScanTask(payload ExpiryScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, data), nil
}

// LowStockScanPayload configures a low-stock scan run.
type LowStockScanPayload struct {
	Limit int `json:"limit"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}
