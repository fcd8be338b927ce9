package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/palletflow/palletflow/internal/catalog"
	"github.com/palletflow/palletflow/internal/orders"
)

// Placeholders substituted when a joined entity cannot be resolved. Reports
// degrade to these instead of failing.
const (
	PlaceholderDistributor = "unknown distributor"
	PlaceholderProduct     = "unknown product"
	PlaceholderAgent       = "unknown agent"
)

// DefaultTotalEpsilon is the reconciliation threshold in currency units.
const DefaultTotalEpsilon = 0.01

// ResolvedItem is an order item joined with product display data.
type ResolvedItem struct {
	orders.OrderItem
	ProductName string `json:"product_name"`
	ProductCode string `json:"product_code"`
}

// DetailedView is the order-detail report consumed by the presentation
// layer.
type DetailedView struct {
	Order           orders.Order   `json:"order"`
	Status          string         `json:"status"`
	DistributorName string         `json:"distributor_name"`
	AgentName       string         `json:"agent_name"`
	Items           []ResolvedItem `json:"items"`
	StoredTotal     float64        `json:"stored_total"`
	ComputedTotal   float64        `json:"computed_total"`
	ReconciledTotal float64        `json:"reconciled_total"`
	TotalAdjusted   bool           `json:"total_adjusted"`
}

// CancellationRecord is one entry of the cancellation report.
type CancellationRecord struct {
	Order           orders.Order `json:"order"`
	CancelledByName string       `json:"cancelled_by_name"`
	CancelledAt     *time.Time   `json:"cancelled_at"`
}

// ComputeTotal recomputes an order's value from its items.
func ComputeTotal(items []orders.OrderItem) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromInt(int64(it.Quantity)).Mul(decimal.NewFromFloat(it.UnitPrice)))
	}
	return total.Round(2).InexactFloat64()
}

// ReconcileTotal prefers the recomputed total when it differs from the
// stored one by more than epsilon; small drift keeps the stored value.
func ReconcileTotal(stored, computed, epsilon float64) (float64, bool) {
	if epsilon <= 0 {
		epsilon = DefaultTotalEpsilon
	}
	diff := decimal.NewFromFloat(stored).Sub(decimal.NewFromFloat(computed)).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(epsilon)) {
		return computed, true
	}
	return stored, false
}

// AssembleDetailedView joins display data into the order-detail view.
// Missing products fall back to placeholders; the caller resolves the
// distributor and agent names and passes empty strings when they are
// unknown.
func AssembleDetailedView(
	ord orders.Order,
	items []orders.OrderItem,
	products map[int64]catalog.Product,
	distributorName string,
	agentName string,
	epsilon float64,
) DetailedView {
	if distributorName == "" {
		distributorName = PlaceholderDistributor
	}
	if agentName == "" {
		agentName = PlaceholderAgent
	}

	resolved := make([]ResolvedItem, 0, len(items))
	for _, it := range items {
		entry := ResolvedItem{OrderItem: it, ProductName: PlaceholderProduct}
		if p, ok := products[it.ProductID]; ok {
			entry.ProductName = p.Name
			entry.ProductCode = p.Code
		}
		resolved = append(resolved, entry)
	}

	computed := ComputeTotal(items)
	reconciled, adjusted := ReconcileTotal(ord.TotalValue, computed, epsilon)

	return DetailedView{
		Order:           ord,
		Status:          string(ord.Status),
		DistributorName: distributorName,
		AgentName:       agentName,
		Items:           resolved,
		StoredTotal:     ord.TotalValue,
		ComputedTotal:   computed,
		ReconciledTotal: reconciled,
		TotalAdjusted:   adjusted,
	}
}
