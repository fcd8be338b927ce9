package reporting

import (
	"testing"

	"github.com/palletflow/palletflow/internal/catalog"
	"github.com/palletflow/palletflow/internal/orders"
)

func TestComputeTotalRoundsToCents(t *testing.T) {
	items := []orders.OrderItem{
		{Quantity: 3, UnitPrice: 19.99},
		{Quantity: 1, UnitPrice: 0.005},
	}
	if got := ComputeTotal(items); got != 59.98 {
		t.Fatalf("computed total = %v, want 59.98", got)
	}
}

func TestReconcileTotal(t *testing.T) {
	cases := []struct {
		name     string
		stored   float64
		computed float64
		want     float64
		adjusted bool
	}{
		{"exact match", 100, 100, 100, false},
		{"drift at epsilon keeps stored", 100.01, 100, 100.01, false},
		{"drift beyond epsilon switches", 100.02, 100, 100, true},
		{"large divergence", 999, 650, 650, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, adjusted := ReconcileTotal(tc.stored, tc.computed, DefaultTotalEpsilon)
			if got != tc.want || adjusted != tc.adjusted {
				t.Fatalf("ReconcileTotal(%v, %v) = (%v, %v), want (%v, %v)",
					tc.stored, tc.computed, got, adjusted, tc.want, tc.adjusted)
			}
		})
	}
}

func TestAssembleDetailedViewPlaceholders(t *testing.T) {
	ord := orders.Order{ID: 1, Status: orders.StatusPending, TotalValue: 30}
	items := []orders.OrderItem{
		{OrderID: 1, ProductID: 1, Quantity: 1, UnitPrice: 10},
		{OrderID: 1, ProductID: 99, Quantity: 2, UnitPrice: 10},
	}
	products := map[int64]catalog.Product{
		1: {ID: 1, Name: "Pavele 20x10", Code: "PAV-20"},
	}

	view := AssembleDetailedView(ord, items, products, "", "", DefaultTotalEpsilon)
	if view.DistributorName != PlaceholderDistributor || view.AgentName != PlaceholderAgent {
		t.Fatalf("empty names must fall back to placeholders, got %+v", view)
	}
	if view.Items[0].ProductName != "Pavele 20x10" || view.Items[0].ProductCode != "PAV-20" {
		t.Fatalf("resolved item = %+v", view.Items[0])
	}
	if view.Items[1].ProductName != PlaceholderProduct {
		t.Fatalf("missing product must use placeholder, got %+v", view.Items[1])
	}
	if view.TotalAdjusted || view.ReconciledTotal != 30 {
		t.Fatalf("matching totals must keep stored value, got %+v", view)
	}
}

func TestAssembleDetailedViewAdjustsDivergedTotal(t *testing.T) {
	ord := orders.Order{ID: 1, Status: orders.StatusDelivered, TotalValue: 500}
	items := []orders.OrderItem{{OrderID: 1, ProductID: 1, Quantity: 2, UnitPrice: 100}}

	view := AssembleDetailedView(ord, items, nil, "Depozit Vest", "Ion Popescu", DefaultTotalEpsilon)
	if !view.TotalAdjusted || view.ReconciledTotal != 200 {
		t.Fatalf("diverged total must be replaced, got %+v", view)
	}
	if view.StoredTotal != 500 || view.ComputedTotal != 200 {
		t.Fatalf("both totals must be reported, got %+v", view)
	}
}
