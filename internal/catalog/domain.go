package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Product is one palletized good from the master catalogue.
type Product struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Code           string  `json:"code"`
	LengthCM       float64 `json:"length_cm"`
	WidthCM        float64 `json:"width_cm"`
	HeightCM       float64 `json:"height_cm"`
	UnitsPerPallet int     `json:"units_per_pallet"`
	NominalStock   int     `json:"nominal_stock"`
	AlertThreshold int     `json:"alert_threshold"`
}

// Distributor is a downstream commercial customer receiving shipments.
type Distributor struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"company_name"`
	City        string    `json:"city"`
	County      string    `json:"county"`
	AgentID     int64     `json:"agent_id"`
}

// OfficialPrice is one row of the time-versioned price grid. Rows are
// superseded by end-dating, never deleted, so historical lookups stay valid.
// ValidTo nil means open-ended.
type OfficialPrice struct {
	ID        int64      `json:"id"`
	ProductID int64      `json:"product_id"`
	Price     float64    `json:"price"`
	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

// InEffect reports whether the row covers the given date.
func (p OfficialPrice) InEffect(on time.Time) bool {
	if p.ValidFrom.After(on) {
		return false
	}
	return p.ValidTo == nil || !p.ValidTo.Before(on)
}

// Role enumerates user roles from the upstream application.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManagement Role = "management"
	RoleMZV        Role = "mzv"
	RoleProductie  Role = "productie"
	RoleLogistica  Role = "logistica"
)

// AgentProfile carries the display data the reports join in.
type AgentProfile struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// ErrNotFound indicates a referenced catalogue entity does not exist.
var ErrNotFound = errors.New("catalog: not found")
