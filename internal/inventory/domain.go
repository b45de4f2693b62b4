package inventory

import (
	"fmt"
	"time"

	"github.com/ss-chris/shield-field/internal/directory"
	"github.com/ss-chris/shield-field/internal/shared"
)

// MovementType classifies a ledger entry.
type MovementType string

const (
	// MovementUninstall records equipment pulled from a customer site.
	// Reserved: no engine currently emits it.
	MovementUninstall MovementType = "uninstall"
	// MovementReturn records goods leaving the network back to a vendor.
	MovementReturn MovementType = "return"
	// MovementConsumption records stock installed during a field order.
	MovementConsumption MovementType = "consumption"
	// MovementReplenishment records goods arriving from a vendor.
	MovementReplenishment MovementType = "replenishment"
	// MovementTransfer records stock moved between tracked warehouses.
	MovementTransfer MovementType = "transfer"
)

// MovementFor derives the movement type of a settling purchase order from the
// roles of its endpoints. It is total over the enumerated roles; any
// unrecognized role is an error rather than a silent default.
func MovementFor(source, destination directory.Role) (MovementType, error) {
	if !destination.Valid() {
		return "", fmt.Errorf("inventory: unmapped destination role %q: %w", destination, shared.ErrInvalidState)
	}
	switch source {
	case directory.RoleVendor:
		return MovementReplenishment, nil
	case directory.RoleIndividual, directory.RoleWarehouse:
		if destination == directory.RoleVendor {
			return MovementReturn, nil
		}
		return MovementTransfer, nil
	}
	return "", fmt.Errorf("inventory: unmapped source role %q: %w", source, shared.ErrInvalidState)
}

// OrderStatus enumerates the purchase order lifecycle. The transition table
// lives next to the settlement engine because completing an order is the sole
// trigger for ledger effects.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusApproved OrderStatus = "approved"
	OrderStatusDeclined OrderStatus = "declined"
	OrderStatusComplete OrderStatus = "complete"
)

// Valid reports whether the status is one of the enumerated values.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusApproved, OrderStatusDeclined, OrderStatusComplete:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDeclined || s == OrderStatusComplete
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusOpen:     {OrderStatusApproved, OrderStatusDeclined},
	OrderStatusApproved: {OrderStatusComplete},
}

// CanTransition reports whether moving from s to next is a legal transition.
// Writing the current status again is allowed as a no-op.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Position is the current on-hand/desired quantity for one (warehouse,
// product) pair. Positions are created lazily on first movement or
// explicitly, mutated only by the engines, and never deleted. On-hand may go
// negative; shortfalls surface as anomalies rather than hard failures.
type Position struct {
	ID           int64     `json:"id"`
	WarehouseID  int64     `json:"warehouse_id"`
	ProductID    int64     `json:"product_id"`
	OnHand       int       `json:"on_hand"`
	Desired      int       `json:"desired"`
	CanBeOrdered bool      `json:"can_be_ordered"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TransactionEntry is one signed quantity movement in the append-only ledger.
// The quantity is exactly the delta applied to the position(s) it references,
// so on-hand is always recomputable as the running sum of entries. Entries are
// immutable once appended.
type TransactionEntry struct {
	ID                     int64        `json:"id"`
	Type                   MovementType `json:"type"`
	Quantity               int          `json:"quantity"`
	ProductID              int64        `json:"product_id"`
	SourceWarehouseID      int64        `json:"source_warehouse_id,omitempty"`
	DestinationWarehouseID int64        `json:"destination_warehouse_id,omitempty"`
	SourceOrderID          int64        `json:"source_order_id,omitempty"`
	DestinationOrderID     int64        `json:"destination_order_id,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
}

// PositionFilters narrows position listings.
type PositionFilters struct {
	WarehouseID  int64
	ProductID    int64
	CanBeOrdered *bool
	Limit        int
	Offset       int
}

// EntryFilter narrows ledger queries. WarehouseID matches either endpoint of
// an entry; PurchaseOrderID matches either order reference.
type EntryFilter struct {
	ProductID       int64
	WarehouseID     int64
	PurchaseOrderID int64
	Limit           int
}
