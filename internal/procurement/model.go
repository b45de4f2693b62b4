package procurement

import (
	"time"

	"github.com/ss-chris/shield-field/internal/inventory"
)

// OrderKind distinguishes operator-raised orders from planner output.
type OrderKind string

const (
	KindManual OrderKind = "manual"
	KindSystem OrderKind = "system"
)

// LineItemStatus tracks one product line through fulfillment of the order.
type LineItemStatus string

const (
	LineStatusCreated   LineItemStatus = "created"
	LineStatusOrdered   LineItemStatus = "ordered"
	LineStatusCompleted LineItemStatus = "completed"
	LineStatusMissing   LineItemStatus = "missing"
)

// Valid reports whether the status is one of the enumerated values.
func (s LineItemStatus) Valid() bool {
	switch s {
	case LineStatusCreated, LineStatusOrdered, LineStatusCompleted, LineStatusMissing:
		return true
	}
	return false
}

// ShipmentStatus tracks physical delivery of an order.
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentOnRoute   ShipmentStatus = "onroute"
	ShipmentDelivered ShipmentStatus = "delivered"
)

// PurchaseOrder moves stock between two warehouses. The lifecycle status and
// its transitions live in the inventory package because completing an order
// is what drives the ledger.
type PurchaseOrder struct {
	ID                     int64                 `json:"id"`
	Kind                   OrderKind             `json:"kind"`
	Status                 inventory.OrderStatus `json:"status"`
	ParentPurchaseOrderID  int64                 `json:"parent_purchase_order_id,omitempty"`
	SourceWarehouseID      int64                 `json:"source_warehouse_id,omitempty"`
	DestinationWarehouseID int64                 `json:"destination_warehouse_id,omitempty"`
	ShippingMethod         string                `json:"shipping_method,omitempty"`
	Note                   string                `json:"note,omitempty"`
	CreatedAt              time.Time             `json:"created_at"`
	UpdatedAt              time.Time             `json:"updated_at"`
}

// LineItem is one product on a purchase order.
type LineItem struct {
	ID               int64          `json:"id"`
	PurchaseOrderID  int64          `json:"purchase_order_id"`
	ProductID        int64          `json:"product_id"`
	QuantityOrdered  int            `json:"quantity_ordered"`
	QuantityReceived int            `json:"quantity_received"`
	Status           LineItemStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Shipment is one physical delivery against a purchase order. The carrier
// dates are filled in as the shipment advances and stay nil until known.
type Shipment struct {
	ID                    int64          `json:"id"`
	PurchaseOrderID       int64          `json:"purchase_order_id"`
	Carrier               string         `json:"carrier,omitempty"`
	TrackingNumber        string         `json:"tracking_number,omitempty"`
	Status                ShipmentStatus `json:"status"`
	LastCarrierMessage    string         `json:"last_carrier_message,omitempty"`
	ShipmentDate          *time.Time     `json:"shipment_date,omitempty"`
	EstimatedDeliveryDate *time.Time     `json:"estimated_delivery_date,omitempty"`
	DeliveryDate          *time.Time     `json:"delivery_date,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// TrackingEvent is one carrier update on a shipment.
type TrackingEvent struct {
	ID         int64     `json:"id"`
	ShipmentID int64     `json:"shipment_id"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ListFilters narrows purchase order listings.
type ListFilters struct {
	Status                 inventory.OrderStatus
	Kind                   OrderKind
	ParentPurchaseOrderID  int64
	DestinationWarehouseID int64
	SourceWarehouseID      int64
	Limit                  int
	Offset                 int
}
