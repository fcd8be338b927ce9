// Package reporting rolls order snapshots up into agent, distributor,
// product and global views and assembles the consumer-facing reports.
package reporting

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/palletflow/palletflow/internal/orders"
)

// AgentRollup aggregates orders per submitting agent.
type AgentRollup struct {
	AgentID      int64   `json:"agent_id"`
	AgentName    string  `json:"agent_name"`
	OrderCount   int     `json:"order_count"`
	TotalValue   float64 `json:"total_value"`
	AverageValue float64 `json:"average_value"`
}

// DistributorRollup aggregates orders per distributor reference token.
type DistributorRollup struct {
	Key          string  `json:"key"`
	DisplayName  string  `json:"display_name"`
	OrderCount   int     `json:"order_count"`
	TotalValue   float64 `json:"total_value"`
	AverageValue float64 `json:"average_value"`
}

// ProductRollup aggregates ordered quantity and value per product.
type ProductRollup struct {
	ProductID     int64   `json:"product_id"`
	ProductName   string  `json:"product_name"`
	TotalQuantity int     `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
}

// Summary is the full multi-dimensional rollup of one order snapshot.
type Summary struct {
	TotalOrders  int                 `json:"total_orders"`
	TotalValue   float64             `json:"total_value"`
	Agents       []AgentRollup       `json:"agents"`
	Distributors []DistributorRollup `json:"distributors"`
	Products     []ProductRollup     `json:"products"`
}

// Aggregate computes the rollups as a pure function of the snapshot. Order
// values are recomputed from items; the stored order total is never trusted.
// Each line value is rounded to cents exactly once, before any grouping, so
// every rollup sums the same values: summing the per-agent totals reproduces
// the global total whenever every order carries an agent id, and likewise
// for counts.
func Aggregate(orderSet []orders.Order, itemsByOrder map[int64][]orders.OrderItem) Summary {
	sum := Summary{TotalOrders: len(orderSet)}

	agents := make(map[int64]*AgentRollup)
	distributors := make(map[string]*DistributorRollup)
	products := make(map[int64]*ProductRollup)

	for _, ord := range orderSet {
		var orderValue float64
		for _, it := range itemsByOrder[ord.ID] {
			lineValue := lineValueCents(it)
			orderValue += lineValue

			pr, ok := products[it.ProductID]
			if !ok {
				pr = &ProductRollup{ProductID: it.ProductID}
				products[it.ProductID] = pr
			}
			pr.TotalQuantity += it.Quantity
			pr.TotalValue += lineValue
		}
		sum.TotalValue += orderValue

		ar, ok := agents[ord.AgentID]
		if !ok {
			ar = &AgentRollup{AgentID: ord.AgentID}
			agents[ord.AgentID] = ar
		}
		ar.OrderCount++
		ar.TotalValue += orderValue

		token := ord.Distributor.Token()
		dr, ok := distributors[token]
		if !ok {
			dr = &DistributorRollup{Key: token}
			switch ord.Distributor.Kind {
			case orders.RefByName:
				dr.DisplayName = ord.Distributor.Name
			case orders.RefNone:
				dr.DisplayName = "no distributor"
			case orders.RefByID:
				// Resolved by the caller against the distributor table.
			}
			distributors[token] = dr
		}
		dr.OrderCount++
		dr.TotalValue += orderValue
	}

	sum.TotalValue = round2(sum.TotalValue)

	sum.Agents = make([]AgentRollup, 0, len(agents))
	for _, ar := range agents {
		ar.TotalValue = round2(ar.TotalValue)
		ar.AverageValue = averageValue(ar.TotalValue, ar.OrderCount)
		sum.Agents = append(sum.Agents, *ar)
	}
	sort.Slice(sum.Agents, func(i, j int) bool {
		if sum.Agents[i].TotalValue != sum.Agents[j].TotalValue {
			return sum.Agents[i].TotalValue > sum.Agents[j].TotalValue
		}
		return sum.Agents[i].AgentID < sum.Agents[j].AgentID
	})

	sum.Distributors = make([]DistributorRollup, 0, len(distributors))
	for _, dr := range distributors {
		dr.TotalValue = round2(dr.TotalValue)
		dr.AverageValue = averageValue(dr.TotalValue, dr.OrderCount)
		sum.Distributors = append(sum.Distributors, *dr)
	}
	sort.Slice(sum.Distributors, func(i, j int) bool {
		if sum.Distributors[i].TotalValue != sum.Distributors[j].TotalValue {
			return sum.Distributors[i].TotalValue > sum.Distributors[j].TotalValue
		}
		return sum.Distributors[i].Key < sum.Distributors[j].Key
	})

	sum.Products = make([]ProductRollup, 0, len(products))
	for _, pr := range products {
		pr.TotalValue = round2(pr.TotalValue)
		sum.Products = append(sum.Products, *pr)
	}
	// Descending by value, ties by product id, so top-N truncation by the
	// consumer stays deterministic.
	sort.Slice(sum.Products, func(i, j int) bool {
		if sum.Products[i].TotalValue != sum.Products[j].TotalValue {
			return sum.Products[i].TotalValue > sum.Products[j].TotalValue
		}
		return sum.Products[i].ProductID < sum.Products[j].ProductID
	})

	return sum
}

// lineValueCents computes one item's value in exact cents. Sub-cent unit
// prices are resolved here, at the line level, never at the rollup level,
// so partial sums cannot round differently than the global one.
func lineValueCents(it orders.OrderItem) float64 {
	return decimal.NewFromInt(int64(it.Quantity)).
		Mul(decimal.NewFromFloat(it.UnitPrice)).
		Round(2).
		InexactFloat64()
}

// averageValue never divides by zero; a rollup with no orders averages 0.
func averageValue(total float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return round2(total / float64(count))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
