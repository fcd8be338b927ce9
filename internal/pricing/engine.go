// Package pricing audits order items against the official, time-versioned
// price grid and flags tolerance-exceeding deviations.
package pricing

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/palletflow/palletflow/internal/catalog"
	"github.com/palletflow/palletflow/internal/orders"
)

// Index is the immutable per-run lookup structure. Everything a validation
// run needs is fetched once and indexed here; resolving an item touches no
// external source. Safe for concurrent reads.
type Index struct {
	prices   map[int64][]catalog.OfficialPrice
	products map[int64]catalog.Product
	profiles map[int64]catalog.AgentProfile
}

// BuildIndex assembles the run index. Price slices are kept sorted by
// validity start ascending so overlap resolution is a reverse scan.
func BuildIndex(prices []catalog.OfficialPrice, products []catalog.Product, profiles []catalog.AgentProfile) *Index {
	ix := &Index{
		prices:   make(map[int64][]catalog.OfficialPrice),
		products: make(map[int64]catalog.Product, len(products)),
		profiles: make(map[int64]catalog.AgentProfile, len(profiles)),
	}
	for _, p := range prices {
		ix.prices[p.ProductID] = append(ix.prices[p.ProductID], p)
	}
	for id, rows := range ix.prices {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].ValidFrom.Before(rows[j].ValidFrom)
		})
		ix.prices[id] = rows
	}
	for _, p := range products {
		ix.products[p.ID] = p
	}
	for _, p := range profiles {
		ix.profiles[p.UserID] = p
	}
	return ix
}

// Resolve selects the official price for a product on a date. With
// overlapping validity windows the row with the latest validity start wins;
// the reverse scan over the ascending slice makes that deterministic.
func (ix *Index) Resolve(productID int64, on time.Time) (catalog.OfficialPrice, bool) {
	rows := ix.prices[productID]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].InEffect(on) {
			return rows[i], true
		}
	}
	return catalog.OfficialPrice{}, false
}

// ProductName returns the display name for a product, if indexed.
func (ix *Index) ProductName(productID int64) (string, bool) {
	p, ok := ix.products[productID]
	if !ok {
		return "", false
	}
	return p.Name, true
}

// AgentName returns the display name for an agent, if indexed.
func (ix *Index) AgentName(userID int64) (string, bool) {
	p, ok := ix.profiles[userID]
	if !ok {
		return "", false
	}
	return p.DisplayName, true
}

// Engine validates order items against an Index.
type Engine struct {
	tolerancePct float64
	logger       *slog.Logger
}

// NewEngine builds an Engine with the configured default tolerance. A zero
// or negative tolerance falls back to DefaultTolerancePct.
func NewEngine(tolerancePct float64, logger *slog.Logger) *Engine {
	if tolerancePct <= 0 {
		tolerancePct = DefaultTolerancePct
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tolerancePct: tolerancePct, logger: logger}
}

// Validate resolves every item of every order against the index and returns
// the items whose deviation percentage strictly exceeds the tolerance. A
// deviation exactly at the tolerance is not flagged. Items with no
// applicable price row are skipped silently; the skip is logged at debug
// level so the blind spot stays measurable. Output is sorted by descending
// deviation percentage, ties broken by order id then product id, so repeated
// runs over the same input yield identical output.
func (e *Engine) Validate(orderSet []orders.Order, itemsByOrder map[int64][]orders.OrderItem, ix *Index, tolerancePct float64) []Anomaly {
	if tolerancePct <= 0 {
		tolerancePct = e.tolerancePct
	}
	tolerance := decimal.NewFromFloat(tolerancePct)
	hundred := decimal.NewFromInt(100)

	var anomalies []Anomaly
	for _, ord := range orderSet {
		for _, it := range itemsByOrder[ord.ID] {
			official, ok := ix.Resolve(it.ProductID, ord.OrderDate)
			if !ok {
				e.logger.Debug("no official price in effect, item skipped",
					slog.Int64("order_id", ord.ID),
					slog.Int64("product_id", it.ProductID),
					slog.Time("order_date", ord.OrderDate),
				)
				continue
			}
			officialPrice := decimal.NewFromFloat(official.Price)
			if officialPrice.IsZero() {
				e.logger.Warn("official price is zero, item skipped",
					slog.Int64("product_id", it.ProductID),
					slog.Int64("price_row_id", official.ID),
				)
				continue
			}
			deviation := decimal.NewFromFloat(it.UnitPrice).Sub(officialPrice).Abs()
			pct := deviation.Div(officialPrice).Mul(hundred)
			if !pct.GreaterThan(tolerance) {
				continue
			}

			anomaly := Anomaly{
				OrderID:       ord.ID,
				OrderNumber:   ord.Number,
				OrderDate:     ord.OrderDate,
				AgentID:       ord.AgentID,
				ProductID:     it.ProductID,
				Quantity:      it.Quantity,
				UnitPrice:     it.UnitPrice,
				OfficialPrice: official.Price,
				Deviation:     deviation.Round(2).InexactFloat64(),
				DeviationPct:  pct.Round(2).InexactFloat64(),
			}
			if name, ok := ix.ProductName(it.ProductID); ok {
				anomaly.ProductName = name
			} else {
				anomaly.ProductName = "unknown product"
			}
			if name, ok := ix.AgentName(ord.AgentID); ok {
				anomaly.AgentName = name
			}
			anomalies = append(anomalies, anomaly)
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		if anomalies[i].DeviationPct != anomalies[j].DeviationPct {
			return anomalies[i].DeviationPct > anomalies[j].DeviationPct
		}
		if anomalies[i].OrderID != anomalies[j].OrderID {
			return anomalies[i].OrderID < anomalies[j].OrderID
		}
		return anomalies[i].ProductID < anomalies[j].ProductID
	})
	return anomalies
}
