package models

import "time"

// AllocationRecord binds a ShortID to the live entity that owns it. At most
// one record exists per (tenant, short id); deleting the owning entity deletes
// the record and retires the number from circulation.
type AllocationRecord struct {
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	ShortID    ShortID    `json:"short_id" db:"short_id"`
	EntityType EntityType `json:"entity_type" db:"entity_type"`
	EntityID   string     `json:"entity_id" db:"entity_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// AllocateRequest asks for the next sequential ShortID for an entity.
type AllocateRequest struct {
	EntityType EntityType `json:"entity_type" validate:"required"`
	EntityID   string     `json:"entity_id" validate:"required"`
}

// AllocatePinnedRequest claims a specific, caller-chosen ShortID, used when
// the physical label already exists (legacy cabling being digitized).
type AllocatePinnedRequest struct {
	EntityType EntityType `json:"entity_type" validate:"required"`
	EntityID   string     `json:"entity_id" validate:"required"`
	ShortID    ShortID    `json:"short_id" validate:"required,gt=0"`
}

// CounterResponse reports a tenant's sequence position: the value the next
// auto-allocation will return.
type CounterResponse struct {
	NextValue ShortID `json:"next_value"`
	NextLabel string  `json:"next_label"`
}

// AllocationResponse is returned by allocate and lookup endpoints; Label is
// the printable fixed-width form of the ShortID.
type AllocationResponse struct {
	ShortID    ShortID    `json:"short_id"`
	Label      string     `json:"label"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
}
