package catalog

import "time"

// Product identifies an installable product. The external id ties the row to
// the upstream system of record; the engine only ever reads products.
type Product struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	ExternalID string
	Search     string
	Limit      int
	Offset     int
}
