package models

import "time"

// EndType identifies a cable end. Exactly one endpoint per cable is "A"; a
// point-to-point cable has ends A and B, a branched cable A, B1, B2, ...
type EndType string

const EndTypeA EndType = "A"

// Cable is the relational record of a physical cable. The cable itself does
// not bear a ShortID; its endpoints do.
type Cable struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"tenant_id" db:"tenant_id"`
	Label     string     `json:"label" db:"label"`
	Category  string     `json:"category" db:"category"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CableEndpoint is one labelled end of a cable. An endpoint can exist
// unconnected (labelled during inventory intake before it is plugged in), so
// PortID is nullable; ShortID is nullable for ends that were never labelled.
type CableEndpoint struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	CableID   string    `json:"cable_id" db:"cable_id"`
	EndType   EndType   `json:"end_type" db:"end_type"`
	ShortID   *ShortID  `json:"short_id,omitempty" db:"short_id"`
	PortID    *string   `json:"port_id,omitempty" db:"port_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateCableEndpointRequest describes one end of a new cable.
// PinnedShortID claims an existing physical label; PoolShortID binds a
// pre-printed pool label; when both are nil a fresh ShortID is allocated.
type CreateCableEndpointRequest struct {
	EndType       EndType  `json:"end_type" validate:"required"`
	PortID        *string  `json:"port_id,omitempty"`
	PinnedShortID *ShortID `json:"pinned_short_id,omitempty"`
	PoolShortID   *ShortID `json:"pool_short_id,omitempty"`
}

// CreateCableRequest creates the cable row and its endpoints. When at least
// two endpoints name ports, the graph hyperedge is created too.
type CreateCableRequest struct {
	Label     string                       `json:"label,omitempty"`
	Category  string                       `json:"category,omitempty"`
	Endpoints []CreateCableEndpointRequest `json:"endpoints" validate:"required,min=2,dive"`
}

// CableResponse is a cable with its endpoints.
type CableResponse struct {
	Cable
	Endpoints []CableEndpoint `json:"endpoints"`
}

// CableListResponse is a paginated cable listing.
type CableListResponse struct {
	Items      []CableResponse `json:"items"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

// ScanIntakeRequest is the manual-inventory workflow: two scanned labels are
// resolved and, when both resolve to available ports, turned into a connected
// cable.
type ScanIntakeRequest struct {
	ScanA    string `json:"scan_a" validate:"required"`
	ScanB    string `json:"scan_b" validate:"required"`
	Label    string `json:"label,omitempty"`
	Category string `json:"category,omitempty"`
}
