package fulfillment

import "time"

// WorkOrder is one field-service job assigned to a technician.
type WorkOrder struct {
	ID           int64     `json:"id"`
	Status       string    `json:"status"`
	TechnicianID string    `json:"technician_id"`
	CustomerRef  string    `json:"customer_ref,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WorkOrderLine is one product planned or used on a work order.
type WorkOrderLine struct {
	ID          int64     `json:"id"`
	WorkOrderID int64     `json:"work_order_id"`
	ProductID   int64     `json:"product_id"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListFilters narrows work order listings.
type ListFilters struct {
	Status       string
	TechnicianID string
	Limit        int
	Offset       int
}
