package reportinghttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palletflow/palletflow/internal/orders"
	"github.com/palletflow/palletflow/internal/pricing"
	"github.com/palletflow/palletflow/internal/reporting"
	"github.com/palletflow/palletflow/internal/stock"
)

type stubService struct {
	lastFilter    orders.Filter
	lastTolerance float64
	invalidated   bool

	detailErr error
	stockErr  error
}

func (s *stubService) StockReportRun(_ context.Context, f orders.Filter) (reporting.StockReport, error) {
	s.lastFilter = f
	if s.stockErr != nil {
		return reporting.StockReport{}, s.stockErr
	}
	return reporting.StockReport{Results: []stock.OrderResult{{OrderID: 1, Number: "CMD-001"}}}, nil
}

func (s *stubService) EvaluateStock(_ context.Context, orderID int64) (stock.OrderResult, error) {
	if orderID == 404 {
		return stock.OrderResult{}, orders.ErrNotFound
	}
	return stock.OrderResult{OrderID: orderID, Status: stock.Status{Kind: stock.StatusSufficient}}, nil
}

func (s *stubService) ValidatePrices(_ context.Context, f orders.Filter, tolerancePct float64) ([]pricing.Anomaly, error) {
	s.lastFilter = f
	s.lastTolerance = tolerancePct
	return nil, nil
}

func (s *stubService) Summary(_ context.Context, f orders.Filter) (reporting.Summary, error) {
	s.lastFilter = f
	return reporting.Summary{TotalOrders: 2}, nil
}

func (s *stubService) DetailedView(_ context.Context, orderID int64) (reporting.DetailedView, error) {
	if s.detailErr != nil {
		return reporting.DetailedView{}, s.detailErr
	}
	return reporting.DetailedView{Order: orders.Order{ID: orderID}}, nil
}

func (s *stubService) Cancellations(_ context.Context, f orders.Filter) ([]reporting.CancellationRecord, error) {
	s.lastFilter = f
	return nil, nil
}

func (s *stubService) InvalidateReports(context.Context) error {
	s.invalidated = true
	return nil
}

func newTestRouter(svc ReportService) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStockReportEndpoint(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/reports/stock?from=2026-03-01&to=2026-03-31&agent_id=7")
	require.Equal(t, http.StatusOK, rec.Code)

	var report reporting.StockReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Results, 1)
	assert.Equal(t, int64(7), svc.lastFilter.AgentID)
	assert.False(t, svc.lastFilter.From.IsZero())
}

func TestFilterValidationRejectsBadInput(t *testing.T) {
	router := newTestRouter(&stubService{})

	cases := []struct {
		name   string
		target string
	}{
		{"bad date", "/reports/stock?from=03-01-2026"},
		{"bad status", "/reports/summary?status=shipped"},
		{"bad distributor id", "/reports/summary?distributor_id=not-a-uuid"},
		{"limit too high", "/reports/summary?limit=1000"},
		{"tolerance above 100", "/reports/price-anomalies?tolerance_pct=150"},
		{"non-numeric agent", "/reports/stock?agent_id=abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, tc.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var problem map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, "Invalid Filter", problem["title"])
		})
	}
}

func TestPriceAnomaliesEmptyIsJSONArray(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/reports/price-anomalies?tolerance_pct=7.5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, 7.5, svc.lastTolerance)
}

func TestOrderDetailNotFound(t *testing.T) {
	svc := &stubService{detailErr: orders.ErrNotFound}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/orders/1/detail")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderStockEndpoint(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doRequest(t, router, http.MethodGet, "/orders/5/stock")
	require.Equal(t, http.StatusOK, rec.Code)

	var result stock.OrderResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, int64(5), result.OrderID)

	rec = doRequest(t, router, http.MethodGet, "/orders/404/stock")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/orders/abc/stock")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidateEndpoint(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/reports/invalidate")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, svc.invalidated)
}
