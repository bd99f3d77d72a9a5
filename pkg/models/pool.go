package models

import "time"

// PoolStatus is the label lifecycle state of a pre-generated ShortID.
type PoolStatus string

const (
	// PoolStatusGenerated: reserved from the counter, no entity yet.
	PoolStatusGenerated PoolStatus = "GENERATED"
	// PoolStatusPrinted: included in a confirmed print run.
	PoolStatusPrinted PoolStatus = "PRINTED"
	// PoolStatusBound: a real entity claimed the label.
	PoolStatusBound PoolStatus = "BOUND"
	// PoolStatusCancelled: permanently retired. Terminal.
	PoolStatusCancelled PoolStatus = "CANCELLED"
)

// PoolRecord tracks a ShortID that was generated ahead of any entity (a
// pre-printed label). The pool tracks label lifecycle; current ownership lives
// in AllocationRecord. Binding writes both.
type PoolRecord struct {
	TenantID        string      `json:"tenant_id" db:"tenant_id"`
	ShortID         ShortID     `json:"short_id" db:"short_id"`
	Status          PoolStatus  `json:"status" db:"status"`
	BatchLabel      string      `json:"batch_label" db:"batch_label"`
	PrintTaskID     *string     `json:"print_task_id,omitempty" db:"print_task_id"`
	EntityType      *EntityType `json:"entity_type,omitempty" db:"entity_type"`
	EntityID        *string     `json:"entity_id,omitempty" db:"entity_id"`
	BoundAt         *time.Time  `json:"bound_at,omitempty" db:"bound_at"`
	CancelledReason *string     `json:"cancelled_reason,omitempty" db:"cancelled_reason"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// GeneratePoolRequest reserves a block of fresh ShortIDs into the pool.
type GeneratePoolRequest struct {
	Count      int    `json:"count" validate:"required,gt=0,lte=1000"`
	BatchLabel string `json:"batch_label" validate:"required"`
}

// GeneratePoolResponse returns the reserved block in order.
type GeneratePoolResponse struct {
	ShortIDs []ShortID `json:"short_ids"`
	Labels   []string  `json:"labels"`
}

// BindPoolRequest attaches a pre-printed label to a real entity the first
// time it is scanned during installation.
type BindPoolRequest struct {
	EntityType EntityType `json:"entity_type" validate:"required"`
	EntityID   string     `json:"entity_id" validate:"required"`
}

// CancelPoolRequest retires a label permanently (damaged, lost, misprinted).
type CancelPoolRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// BatchCancelRequest cancels a set of labels described by a range expression,
// e.g. "100-120,135,200-210".
type BatchCancelRequest struct {
	Range  string `json:"range" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// BatchCancelFailure reports one member of a batch cancel that was rejected.
type BatchCancelFailure struct {
	ShortID ShortID `json:"short_id"`
	Reason  string  `json:"reason"`
}

// BatchCancelResult is the partial-success report for a batch cancel. One bad
// number in the range never blocks the rest.
type BatchCancelResult struct {
	SuccessCount  int                  `json:"success_count"`
	FailedDetails []BatchCancelFailure `json:"failed_details"`
}
