// Package jobs defines the background tasks and the Asynq worker plumbing.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPriceAnomalyScan audits recent orders against the price grid.
	TaskPriceAnomalyScan = "pricing:anomaly_scan"
	// TaskReportWarmup rebuilds and caches the default report window.
	TaskReportWarmup = "reports:warmup"
)

// PriceAnomalyScanPayload configures one scan run.
type PriceAnomalyScanPayload struct {
	WindowDays   int     `json:"window_days"`
	TolerancePct float64 `json:"tolerance_pct"`
}

// NewPriceAnomalyScanTask constructs the Asynq task.
func NewPriceAnomalyScanTask(payload PriceAnomalyScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPriceAnomalyScan, data), nil
}

// ReportWarmupPayload configures one warmup run.
type ReportWarmupPayload struct {
	WindowDays int `json:"window_days"`
}

// NewReportWarmupTask constructs the Asynq task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}
