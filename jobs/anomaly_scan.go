package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/palletflow/palletflow/internal/jobs"
	"github.com/palletflow/palletflow/internal/orders"
	"github.com/palletflow/palletflow/internal/pricing"
)

// PriceValidator is the slice of the reporting service the scan job needs.
type PriceValidator interface {
	ValidatePrices(ctx context.Context, f orders.Filter, tolerancePct float64) ([]pricing.Anomaly, error)
}

// PriceAnomalyScanJob audits the recent order window against the official
// price grid and surfaces flagged items through logs and metrics.
type PriceAnomalyScanJob struct {
	Validator PriceValidator
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewPriceAnomalyScanJob initialises the scan handler.
func NewPriceAnomalyScanJob(validator PriceValidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *PriceAnomalyScanJob {
	return &PriceAnomalyScanJob{
		Validator: validator,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *PriceAnomalyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Validator == nil {
		return errors.New("anomaly scan: handler not configured")
	}
	var payload PriceAnomalyScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = 30
	}

	tracker := j.metrics().Track(TaskPriceAnomalyScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	logger := j.logger().With(
		slog.Int("window_days", payload.WindowDays),
		slog.Float64("tolerance_pct", payload.TolerancePct),
	)
	logger.Info("starting price anomaly scan")

	filter := orders.Filter{
		From: now.AddDate(0, 0, -payload.WindowDays),
		To:   now,
	}
	anomalies, err := j.Validator.ValidatePrices(ctx, filter, payload.TolerancePct)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, a := range anomalies {
		severity := severityFor(a.DeviationPct, payload.TolerancePct)
		logger.Warn("price anomaly detected",
			slog.String("order_number", a.OrderNumber),
			slog.Int64("product_id", a.ProductID),
			slog.String("product", a.ProductName),
			slog.String("agent", a.AgentName),
			slog.Float64("unit_price", a.UnitPrice),
			slog.Float64("official_price", a.OfficialPrice),
			slog.Float64("deviation_pct", a.DeviationPct),
			slog.String("severity", severity),
		)
		j.metrics().AddAnomalies(severity, 1)
	}

	logger.Info("completed price anomaly scan",
		slog.Int("anomalies", len(anomalies)),
		slog.Duration("duration", time.Since(now)),
	)
	return resultErr
}

// severityFor buckets a deviation relative to the tolerance in effect.
func severityFor(deviationPct, tolerancePct float64) string {
	if tolerancePct <= 0 {
		tolerancePct = pricing.DefaultTolerancePct
	}
	if deviationPct >= tolerancePct*2 {
		return "HIGH"
	}
	return "MEDIUM"
}

func (j *PriceAnomalyScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPriceAnomalyScan))
	}
	return slog.Default().With(slog.String("job", TaskPriceAnomalyScan))
}

func (j *PriceAnomalyScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *PriceAnomalyScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
