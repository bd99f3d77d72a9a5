package models

import "time"

// PrintTaskStatus is the lifecycle state of a batch label print request.
type PrintTaskStatus string

const (
	PrintTaskStatusPending   PrintTaskStatus = "PENDING"
	PrintTaskStatusPrinting  PrintTaskStatus = "PRINTING"
	PrintTaskStatusCompleted PrintTaskStatus = "COMPLETED"
	PrintTaskStatusFailed    PrintTaskStatus = "FAILED"
)

// PrintTask is a request for N fresh ShortIDs to print as physical labels
// before any entity exists. Creating one reserves exactly Count pool records
// in GENERATED state tagged with the task's ID.
type PrintTask struct {
	ID          string          `json:"id" db:"id"`
	TenantID    string          `json:"tenant_id" db:"tenant_id"`
	Name        string          `json:"name" db:"name"`
	EntityType  EntityType      `json:"entity_type" db:"entity_type"`
	Count       int             `json:"count" db:"count"`
	Status      PrintTaskStatus `json:"status" db:"status"`
	CreatedBy   string          `json:"created_by" db:"created_by"`
	Notes       string          `json:"notes" db:"notes"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// CreatePrintTaskRequest creates a print task and its pool block.
type CreatePrintTaskRequest struct {
	Name       string     `json:"name" validate:"required"`
	EntityType EntityType `json:"entity_type" validate:"required"`
	Count      int        `json:"count" validate:"required,gt=0,lte=1000"`
	Notes      string     `json:"notes,omitempty"`
	// CreatedBy is stamped from the authenticated caller, not the body.
	CreatedBy string `json:"-"`
}

// PrintTaskResponse wraps a task for the API.
type PrintTaskResponse struct {
	PrintTask
}

// PrintTaskListResponse is a paginated task listing.
type PrintTaskListResponse struct {
	Items      []PrintTask `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}

// PrintTaskExportRow is one label row handed to printing software: the raw
// number, the printed label form and the pool status.
type PrintTaskExportRow struct {
	ShortID ShortID    `json:"short_id"`
	Label   string     `json:"label"`
	Status  PoolStatus `json:"status"`
}

// PrintTaskExportResponse is the flat export of a task's printable labels.
type PrintTaskExportResponse struct {
	TaskID string               `json:"task_id"`
	Rows   []PrintTaskExportRow `json:"rows"`
}
