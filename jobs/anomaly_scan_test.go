package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palletflow/palletflow/internal/orders"
	"github.com/palletflow/palletflow/internal/pricing"
)

type stubValidator struct {
	anomalies  []pricing.Anomaly
	err        error
	lastFilter orders.Filter
	lastTol    float64
}

func (s *stubValidator) ValidatePrices(_ context.Context, f orders.Filter, tolerancePct float64) ([]pricing.Anomaly, error) {
	s.lastFilter = f
	s.lastTol = tolerancePct
	return s.anomalies, s.err
}

func scanJob(v PriceValidator, at time.Time) *PriceAnomalyScanJob {
	job := NewPriceAnomalyScanJob(v, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	job.clock = func() time.Time { return at }
	return job
}

func TestAnomalyScanWindowsTheFilter(t *testing.T) {
	now := time.Date(2026, time.March, 31, 6, 0, 0, 0, time.UTC)
	validator := &stubValidator{}
	job := scanJob(validator, now)

	task, err := NewPriceAnomalyScanTask(PriceAnomalyScanPayload{WindowDays: 7, TolerancePct: 5})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, now.AddDate(0, 0, -7), validator.lastFilter.From)
	assert.Equal(t, now, validator.lastFilter.To)
	assert.Equal(t, 5.0, validator.lastTol)
}

func TestAnomalyScanDefaultsWindowDays(t *testing.T) {
	now := time.Date(2026, time.March, 31, 6, 0, 0, 0, time.UTC)
	validator := &stubValidator{}
	job := scanJob(validator, now)

	task, err := NewPriceAnomalyScanTask(PriceAnomalyScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, now.AddDate(0, 0, -30), validator.lastFilter.From)
}

func TestAnomalyScanMalformedPayloadSkipsRetry(t *testing.T) {
	job := scanJob(&stubValidator{}, time.Now())
	task := asynq.NewTask(TaskPriceAnomalyScan, []byte("{not json"))

	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAnomalyScanPropagatesValidatorFailure(t *testing.T) {
	boom := errors.New("grid unavailable")
	job := scanJob(&stubValidator{err: boom}, time.Now())

	task, err := NewPriceAnomalyScanTask(PriceAnomalyScanPayload{WindowDays: 7})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

func TestSeverityBuckets(t *testing.T) {
	cases := []struct {
		deviationPct float64
		tolerancePct float64
		want         string
	}{
		{6, 5, "MEDIUM"},
		{9.99, 5, "MEDIUM"},
		{10, 5, "HIGH"},
		{25, 5, "HIGH"},
		{12, 0, "HIGH"}, // zero tolerance falls back to the default 5
		{8, 0, "MEDIUM"},
	}
	for _, tc := range cases {
		if got := severityFor(tc.deviationPct, tc.tolerancePct); got != tc.want {
			t.Fatalf("severityFor(%v, %v) = %q, want %q", tc.deviationPct, tc.tolerancePct, got, tc.want)
		}
	}
}
