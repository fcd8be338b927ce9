// Package reportinghttp exposes the reporting engine to the presentation
// layer as a JSON API.
package reportinghttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/palletflow/palletflow/internal/orders"
	"github.com/palletflow/palletflow/internal/platform/httpx"
	"github.com/palletflow/palletflow/internal/pricing"
	"github.com/palletflow/palletflow/internal/reporting"
	"github.com/palletflow/palletflow/internal/stock"
)

// ReportService is the reporting contract the handler depends on.
type ReportService interface {
	StockReportRun(ctx context.Context, f orders.Filter) (reporting.StockReport, error)
	EvaluateStock(ctx context.Context, orderID int64) (stock.OrderResult, error)
	ValidatePrices(ctx context.Context, f orders.Filter, tolerancePct float64) ([]pricing.Anomaly, error)
	Summary(ctx context.Context, f orders.Filter) (reporting.Summary, error)
	DetailedView(ctx context.Context, orderID int64) (reporting.DetailedView, error)
	Cancellations(ctx context.Context, f orders.Filter) ([]reporting.CancellationRecord, error)
	InvalidateReports(ctx context.Context) error
}

// Handler serves the report endpoints.
type Handler struct {
	logger   *slog.Logger
	service  ReportService
	validate *validator.Validate
}

// NewHandler constructs the reporting HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

type filterQuery struct {
	From          string  `validate:"omitempty,datetime=2006-01-02"`
	To            string  `validate:"omitempty,datetime=2006-01-02"`
	AgentID       int64   `validate:"omitempty,min=1"`
	DistributorID string  `validate:"omitempty,uuid"`
	Status        string  `validate:"omitempty,oneof=pending processing in_transit delivered cancelled"`
	Limit         int     `validate:"omitempty,min=1,max=500"`
	TolerancePct  float64 `validate:"omitempty,gt=0,lte=100"`
}

func (h *Handler) parseFilter(r *http.Request) (orders.Filter, float64, error) {
	q := r.URL.Query()
	fq := filterQuery{
		From:          q.Get("from"),
		To:            q.Get("to"),
		DistributorID: q.Get("distributor_id"),
		Status:        q.Get("status"),
	}
	if raw := q.Get("agent_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return orders.Filter{}, 0, errors.New("agent_id must be an integer")
		}
		fq.AgentID = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return orders.Filter{}, 0, errors.New("limit must be an integer")
		}
		fq.Limit = v
	}
	if raw := q.Get("tolerance_pct"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return orders.Filter{}, 0, errors.New("tolerance_pct must be a number")
		}
		fq.TolerancePct = v
	}
	if err := h.validate.Struct(fq); err != nil {
		return orders.Filter{}, 0, err
	}

	var f orders.Filter
	if fq.From != "" {
		f.From, _ = time.Parse("2006-01-02", fq.From)
	}
	if fq.To != "" {
		f.To, _ = time.Parse("2006-01-02", fq.To)
	}
	f.AgentID = fq.AgentID
	if fq.DistributorID != "" {
		f.DistributorID, _ = uuid.Parse(fq.DistributorID)
	}
	f.Status = orders.OrderStatus(fq.Status)
	f.Limit = fq.Limit
	return f, fq.TolerancePct, nil
}

func (h *Handler) handleStockReport(w http.ResponseWriter, r *http.Request) {
	f, _, err := h.parseFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
		return
	}
	report, err := h.service.StockReportRun(r.Context(), f)
	if err != nil {
		h.serverError(w, "stock report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleOrderStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be an integer")
		return
	}
	result, err := h.service.EvaluateStock(r.Context(), id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.serverError(w, "order stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handlePriceAnomalies(w http.ResponseWriter, r *http.Request) {
	f, tolerance, err := h.parseFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
		return
	}
	anomalies, err := h.service.ValidatePrices(r.Context(), f, tolerance)
	if err != nil {
		h.serverError(w, "price anomalies", err)
		return
	}
	if anomalies == nil {
		anomalies = []pricing.Anomaly{}
	}
	httpx.JSON(w, http.StatusOK, anomalies)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, _, err := h.parseFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
		return
	}
	sum, err := h.service.Summary(r.Context(), f)
	if err != nil {
		h.serverError(w, "summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) handleOrderDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be an integer")
		return
	}
	view, err := h.service.DetailedView(r.Context(), id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.serverError(w, "order detail", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleCancellations(w http.ResponseWriter, r *http.Request) {
	f, _, err := h.parseFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
		return
	}
	records, err := h.service.Cancellations(r.Context(), f)
	if err != nil {
		h.serverError(w, "cancellations", err)
		return
	}
	if records == nil {
		records = []reporting.CancellationRecord{}
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.InvalidateReports(r.Context()); err != nil {
		h.serverError(w, "invalidate", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
