package pricing

import "time"

// Anomaly is one flagged order item with its order context and computed
// deviation metrics.
type Anomaly struct {
	OrderID       int64     `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	OrderDate     time.Time `json:"order_date"`
	AgentID       int64     `json:"agent_id"`
	AgentName     string    `json:"agent_name"`
	ProductID     int64     `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Quantity      int       `json:"quantity"`
	UnitPrice     float64   `json:"unit_price"`
	OfficialPrice float64   `json:"official_price"`
	Deviation     float64   `json:"deviation"`
	DeviationPct  float64   `json:"deviation_pct"`
}

// DefaultTolerancePct flags deviations strictly above five percent unless
// the caller configures otherwise.
const DefaultTolerancePct = 5.0
