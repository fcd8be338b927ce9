package pricing

import (
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/palletflow/palletflow/internal/catalog"
	"github.com/palletflow/palletflow/internal/orders"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gridDate(day int) time.Time {
	return time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC)
}

func singlePriceIndex(productID int64, price float64) *Index {
	return BuildIndex(
		[]catalog.OfficialPrice{{ID: 1, ProductID: productID, Price: price, ValidFrom: gridDate(1)}},
		[]catalog.Product{{ID: productID, Name: "Pavele 20x10"}},
		nil,
	)
}

func TestValidateFlagsStrictlyAboveTolerance(t *testing.T) {
	ix := singlePriceIndex(1, 100)
	engine := NewEngine(DefaultTolerancePct, testLogger())
	orderSet := []orders.Order{{ID: 10, Number: "CMD-10", OrderDate: gridDate(5)}}

	cases := []struct {
		name      string
		unitPrice float64
		flagged   bool
	}{
		{"six percent above", 106, true},
		{"four percent below", 96, false},
		{"exactly at tolerance", 105, false},
		{"exactly at tolerance below", 95, false},
		{"just above tolerance", 105.01, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items := map[int64][]orders.OrderItem{
				10: {{OrderID: 10, ProductID: 1, Quantity: 3, UnitPrice: tc.unitPrice}},
			}
			anomalies := engine.Validate(orderSet, items, ix, 0)
			if got := len(anomalies) == 1; got != tc.flagged {
				t.Fatalf("unit price %v: flagged=%v, want %v", tc.unitPrice, got, tc.flagged)
			}
		})
	}
}

func TestValidateRoundsAfterComparison(t *testing.T) {
	ix := singlePriceIndex(1, 100)
	engine := NewEngine(DefaultTolerancePct, testLogger())
	orderSet := []orders.Order{{ID: 10, OrderDate: gridDate(5)}}
	items := map[int64][]orders.OrderItem{
		10: {{OrderID: 10, ProductID: 1, Quantity: 1, UnitPrice: 106.555}},
	}

	anomalies := engine.Validate(orderSet, items, ix, 0)
	if len(anomalies) != 1 {
		t.Fatalf("expected one anomaly, got %d", len(anomalies))
	}
	if anomalies[0].Deviation != 6.56 || anomalies[0].DeviationPct != 6.56 {
		t.Fatalf("expected two-decimal rounding, got %+v", anomalies[0])
	}
}

func TestValidateSkipsItemsWithoutPriceRow(t *testing.T) {
	ix := singlePriceIndex(1, 100)
	engine := NewEngine(DefaultTolerancePct, testLogger())
	orderSet := []orders.Order{{ID: 10, OrderDate: gridDate(5)}}
	items := map[int64][]orders.OrderItem{
		10: {
			{OrderID: 10, ProductID: 99, Quantity: 1, UnitPrice: 500},
			{OrderID: 10, ProductID: 1, Quantity: 1, UnitPrice: 110},
		},
	}

	anomalies := engine.Validate(orderSet, items, ix, 0)
	if len(anomalies) != 1 || anomalies[0].ProductID != 1 {
		t.Fatalf("unpriced product must be skipped, got %+v", anomalies)
	}
}

func TestValidateSkipsZeroOfficialPrice(t *testing.T) {
	ix := singlePriceIndex(1, 0)
	engine := NewEngine(DefaultTolerancePct, testLogger())
	orderSet := []orders.Order{{ID: 10, OrderDate: gridDate(5)}}
	items := map[int64][]orders.OrderItem{
		10: {{OrderID: 10, ProductID: 1, Quantity: 1, UnitPrice: 50}},
	}

	if anomalies := engine.Validate(orderSet, items, ix, 0); len(anomalies) != 0 {
		t.Fatalf("zero official price must not divide, got %+v", anomalies)
	}
}

func TestResolveOverlapLatestValidFromWins(t *testing.T) {
	ix := BuildIndex([]catalog.OfficialPrice{
		{ID: 1, ProductID: 1, Price: 90, ValidFrom: gridDate(1)},
		{ID: 2, ProductID: 1, Price: 100, ValidFrom: gridDate(10)},
	}, nil, nil)

	price, ok := ix.Resolve(1, gridDate(15))
	if !ok || price.ID != 2 {
		t.Fatalf("expected latest window to win, got %+v ok=%v", price, ok)
	}
	price, ok = ix.Resolve(1, gridDate(5))
	if !ok || price.ID != 1 {
		t.Fatalf("expected earlier window before overlap, got %+v ok=%v", price, ok)
	}
}

func TestResolveRespectsValidTo(t *testing.T) {
	until := gridDate(10)
	ix := BuildIndex([]catalog.OfficialPrice{
		{ID: 1, ProductID: 1, Price: 90, ValidFrom: gridDate(1), ValidTo: &until},
	}, nil, nil)

	if _, ok := ix.Resolve(1, gridDate(20)); ok {
		t.Fatal("expired window must not resolve")
	}
}

func TestValidateSortsByDeviationDescending(t *testing.T) {
	ix := BuildIndex([]catalog.OfficialPrice{
		{ID: 1, ProductID: 1, Price: 100, ValidFrom: gridDate(1)},
		{ID: 2, ProductID: 2, Price: 100, ValidFrom: gridDate(1)},
	}, nil, nil)
	engine := NewEngine(DefaultTolerancePct, testLogger())
	orderSet := []orders.Order{
		{ID: 10, OrderDate: gridDate(5)},
		{ID: 11, OrderDate: gridDate(5)},
	}
	items := map[int64][]orders.OrderItem{
		10: {{OrderID: 10, ProductID: 1, Quantity: 1, UnitPrice: 110}},
		11: {
			{OrderID: 11, ProductID: 2, Quantity: 1, UnitPrice: 125},
			{OrderID: 11, ProductID: 1, Quantity: 1, UnitPrice: 110},
		},
	}

	anomalies := engine.Validate(orderSet, items, ix, 0)
	if len(anomalies) != 3 {
		t.Fatalf("expected 3 anomalies, got %d", len(anomalies))
	}
	if anomalies[0].OrderID != 11 || anomalies[0].ProductID != 2 {
		t.Fatalf("largest deviation first, got %+v", anomalies[0])
	}
	// 10% tie: lower order id first.
	if anomalies[1].OrderID != 10 || anomalies[2].OrderID != 11 {
		t.Fatalf("ties break by order id ascending, got %+v then %+v", anomalies[1], anomalies[2])
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	ix := singlePriceIndex(1, 100)
	engine := NewEngine(DefaultTolerancePct, testLogger())
	orderSet := []orders.Order{{ID: 10, Number: "CMD-10", OrderDate: gridDate(5)}}
	items := map[int64][]orders.OrderItem{
		10: {{OrderID: 10, ProductID: 1, Quantity: 2, UnitPrice: 112}},
	}

	first := engine.Validate(orderSet, items, ix, 0)
	second := engine.Validate(orderSet, items, ix, 0)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated runs diverged:\n%+v\n%+v", first, second)
	}
}
