package orders

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	// StatusPending is the state of a freshly created order.
	StatusPending OrderStatus = "pending"
	// StatusProcessing indicates the warehouse started preparing pallets.
	StatusProcessing OrderStatus = "processing"
	// StatusInTransit indicates the shipment left the warehouse.
	StatusInTransit OrderStatus = "in_transit"
	// StatusDelivered indicates the distributor confirmed receipt.
	StatusDelivered OrderStatus = "delivered"
	// StatusCancelled is terminal and carries immutable cancellation metadata.
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known status value.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled:
		return true
	case StatusPending, StatusProcessing, StatusInTransit:
		return false
	}
	return false
}

// CanTransition reports whether the state machine allows moving from s to
// next. The happy path is linear; every non-terminal state may cancel.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if next == StatusCancelled {
		return !s.Terminal()
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusInTransit
	case StatusInTransit:
		return next == StatusDelivered
	case StatusDelivered, StatusCancelled:
		return false
	}
	return false
}

// RefKind tags how an order references its distributor.
type RefKind string

const (
	// RefNone means the order carries no usable distributor reference.
	RefNone RefKind = "none"
	// RefByID is a genuine foreign key into the distributors table.
	RefByID RefKind = "by_id"
	// RefByName is legacy free text entered before distributor records existed.
	RefByName RefKind = "by_name"
)

// DistributorRef is the tagged form of the order's distributor column. The
// raw column mixes UUID foreign keys with legacy free text; the split is
// decided once at scan time and consumers switch on Kind instead of
// re-sniffing the string.
type DistributorRef struct {
	Kind RefKind
	ID   uuid.UUID
	Name string
}

// ParseDistributorRef classifies a raw distributor column value.
func ParseDistributorRef(raw string) DistributorRef {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DistributorRef{Kind: RefNone}
	}
	if id, err := uuid.Parse(raw); err == nil {
		return DistributorRef{Kind: RefByID, ID: id}
	}
	return DistributorRef{Kind: RefByName, Name: raw}
}

// Token returns a stable grouping key for rollups and cache keys.
func (r DistributorRef) Token() string {
	switch r.Kind {
	case RefByID:
		return "id:" + r.ID.String()
	case RefByName:
		return "name:" + strings.ToLower(r.Name)
	case RefNone:
		return "-"
	}
	return "-"
}

// Order is one palletized-goods order as stored by the record source.
type Order struct {
	ID              int64          `json:"id"`
	Number          string         `json:"number"`
	OrderDate       time.Time      `json:"order_date"`
	Status          OrderStatus    `json:"status"`
	AgentID         int64          `json:"agent_id"`
	Distributor     DistributorRef `json:"-"`
	DeliveryAddress string         `json:"delivery_address,omitempty"`
	DeliveryCity    string         `json:"delivery_city,omitempty"`
	DeliveryCounty  string         `json:"delivery_county,omitempty"`
	PalletCount     int            `json:"pallet_count"`
	TotalValue      float64        `json:"total_value"`
	CancelledBy     *int64         `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// OrderItem is one product line of an order. Quantity is whole pallets.
type OrderItem struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// Filter narrows which orders a report run covers.
type Filter struct {
	From             time.Time
	To               time.Time
	AgentID          int64
	DistributorID    uuid.UUID
	Status           OrderStatus
	CancelledOnly    bool
	IncludeCancelled bool
	Limit            int
}

// Token canonicalises the filter for cache keys. Equal filters always
// produce equal tokens, and filters selecting different order windows never
// share one: From/To carry their full timestamps because ListOrders compares
// them at full precision.
func (f Filter) Token() string {
	parts := []string{
		f.From.Format(time.RFC3339Nano),
		f.To.Format(time.RFC3339Nano),
		formatInt(f.AgentID),
		"-",
		string(f.Status),
		boolToken(f.CancelledOnly),
		boolToken(f.IncludeCancelled),
		formatInt(int64(f.Limit)),
	}
	if f.DistributorID != uuid.Nil {
		parts[3] = f.DistributorID.String()
	}
	return strings.Join(parts, ":")
}

func boolToken(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ErrNotFound indicates a referenced order does not exist.
var ErrNotFound = errors.New("orders: not found")

// ItemsByOrder groups a flat item slice by order id, preserving the items'
// relative order inside each group.
func ItemsByOrder(items []OrderItem) map[int64][]OrderItem {
	grouped := make(map[int64][]OrderItem, len(items))
	for _, it := range items {
		grouped[it.OrderID] = append(grouped[it.OrderID], it)
	}
	return grouped
}
