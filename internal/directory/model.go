package directory

import (
	"fmt"
	"time"
)

// Role classifies what a warehouse represents in the stock network.
type Role string

const (
	// RoleVendor is an external supplier; stock at a vendor is not tracked.
	RoleVendor Role = "vendor"
	// RoleIndividual is a technician's personal stock, tied 1:1 to a user.
	RoleIndividual Role = "individual"
	// RoleWarehouse is a fixed stocking location.
	RoleWarehouse Role = "warehouse"
)

// Valid reports whether the role is one of the enumerated values.
func (r Role) Valid() bool {
	switch r {
	case RoleVendor, RoleIndividual, RoleWarehouse:
		return true
	}
	return false
}

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", fmt.Errorf("directory: unknown warehouse role %q", s)
	}
	return role, nil
}

// Warehouse is a node in the stock network. The engines read warehouses but
// never write them.
type Warehouse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	KeepStocked  bool      `json:"keep_stocked"`
	AccountID    string    `json:"account_id"`
	TechnicianID string    `json:"technician_id,omitempty"`
	ShipTo       string    `json:"ship_to"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListFilters narrows warehouse listings.
type ListFilters struct {
	Role      Role
	Active    *bool
	AccountID string
	Limit     int
	Offset    int
}
