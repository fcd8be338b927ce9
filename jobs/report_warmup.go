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
	"github.com/palletflow/palletflow/internal/reporting"
)

// ReportBuilder is the slice of the reporting service the warmup job needs.
type ReportBuilder interface {
	Summary(ctx context.Context, f orders.Filter) (reporting.Summary, error)
	Cancellations(ctx context.Context, f orders.Filter) ([]reporting.CancellationRecord, error)
}

// ReportWarmupJob primes the report cache for the default window so the
// first dashboard hit after an invalidation does not pay the build cost.
type ReportWarmupJob struct {
	Builder ReportBuilder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportWarmupJob initialises the warmup handler.
func NewReportWarmupJob(builder ReportBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Builder: builder,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the warmup.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Builder == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = 30
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	filter := orders.Filter{
		From: now.AddDate(0, 0, -payload.WindowDays),
		To:   now,
	}

	logger := j.logger().With(slog.Int("window_days", payload.WindowDays))
	if _, err := j.Builder.Summary(ctx, filter); err != nil {
		resultErr = err
		logger.Error("summary warmup failed", slog.Any("error", err))
		return resultErr
	}
	if _, err := j.Builder.Cancellations(ctx, filter); err != nil {
		resultErr = err
		logger.Error("cancellation warmup failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("report cache warmed", slog.Duration("duration", time.Since(now)))
	return nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
