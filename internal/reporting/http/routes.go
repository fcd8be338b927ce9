package reportinghttp

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the report endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/stock", h.handleStockReport)
	r.Get("/reports/price-anomalies", h.handlePriceAnomalies)
	r.Get("/reports/summary", h.handleSummary)
	r.Get("/reports/cancellations", h.handleCancellations)
	r.Get("/orders/{id}/detail", h.handleOrderDetail)
	r.Get("/orders/{id}/stock", h.handleOrderStock)
	r.Post("/reports/invalidate", h.handleInvalidate)
}
