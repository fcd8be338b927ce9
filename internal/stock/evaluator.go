// Package stock decides order fulfillability against the warehouse's real
// stock snapshot.
package stock

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/palletflow/palletflow/internal/catalog"
	"github.com/palletflow/palletflow/internal/orders"
)

// StatusKind enumerates evaluation outcomes.
type StatusKind string

const (
	// StatusPending means a lookup failed and the order could not be judged.
	StatusPending StatusKind = "pending"
	// StatusSufficient means every item is covered by real stock.
	StatusSufficient StatusKind = "sufficient"
	// StatusInsufficient reports the first item short on stock.
	StatusInsufficient StatusKind = "insufficient"
)

// UnknownProductName is substituted when a product's display name cannot be
// resolved. The deficit is still reported.
const UnknownProductName = "unknown product"

// Status is the outcome of evaluating one order.
type Status struct {
	Kind        StatusKind `json:"kind"`
	ProductName string     `json:"product_name,omitempty"`
	MissingQty  int        `json:"missing_qty,omitempty"`
}

// OrderResult pairs an order with its evaluation for batch output.
type OrderResult struct {
	OrderID int64  `json:"order_id"`
	Number  string `json:"number"`
	Status  Status `json:"status"`
}

// ProductNames resolves product display names. Implementations back onto a
// pre-fetched in-memory map; a non-ErrNotFound error marks the lookup as
// failed rather than the product as unnamed.
type ProductNames interface {
	Name(ctx context.Context, productID int64) (string, error)
}

// MapNames is a ProductNames over a pre-fetched map.
type MapNames map[int64]string

// Name implements ProductNames.
func (m MapNames) Name(_ context.Context, productID int64) (string, error) {
	name, ok := m[productID]
	if !ok {
		return "", catalog.ErrNotFound
	}
	return name, nil
}

// Evaluate scans items in their given order and reports the first item whose
// required quantity exceeds available real stock. It does not aggregate
// deficits. An order with no items is sufficient; a product missing from the
// snapshot counts as zero stock.
func Evaluate(ctx context.Context, items []orders.OrderItem, snapshot map[int64]int, names ProductNames) Status {
	if len(items) == 0 {
		return Status{Kind: StatusSufficient}
	}
	for _, it := range items {
		available := snapshot[it.ProductID]
		if it.Quantity <= available {
			continue
		}
		name, err := names.Name(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				name = UnknownProductName
			} else {
				return Status{Kind: StatusPending}
			}
		}
		return Status{
			Kind:        StatusInsufficient,
			ProductName: name,
			MissingQty:  it.Quantity - available,
		}
	}
	return Status{Kind: StatusSufficient}
}

// EvaluateBatch fans the per-order evaluations out across workers and merges
// results back by input position, so output order never depends on
// completion order. One order degrading to pending never blocks its
// siblings; context expiry degrades the not-yet-evaluated remainder to
// pending and reports the batch as degraded.
func EvaluateBatch(
	ctx context.Context,
	orderSet []orders.Order,
	itemsByOrder map[int64][]orders.OrderItem,
	snapshot map[int64]int,
	names ProductNames,
	concurrency int,
) ([]OrderResult, bool) {
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make([]OrderResult, len(orderSet))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, ord := range orderSet {
		i, ord := i, ord
		results[i] = OrderResult{OrderID: ord.ID, Number: ord.Number}
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i].Status = Status{Kind: StatusPending}
				return nil
			}
			results[i].Status = Evaluate(gctx, itemsByOrder[ord.ID], snapshot, names)
			return nil
		})
	}
	// Workers only write their own slot and never return errors.
	_ = g.Wait()

	degraded := false
	for _, res := range results {
		if res.Status.Kind == StatusPending {
			degraded = true
			break
		}
	}
	return results, degraded
}

// LogDeficits emits one warn line per insufficient order, for operators
// tailing the report run.
func LogDeficits(logger *slog.Logger, results []OrderResult) {
	if logger == nil {
		return
	}
	for _, res := range results {
		if res.Status.Kind != StatusInsufficient {
			continue
		}
		logger.Warn("order short on stock",
			slog.Int64("order_id", res.OrderID),
			slog.String("order_number", res.Number),
			slog.String("product", res.Status.ProductName),
			slog.Int("missing_qty", res.Status.MissingQty),
		)
	}
}
