package printtask

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var taskColumns = []string{
	"id", "tenant_id", "name", "entity_type", "count", "status",
	"created_by", "notes", "created_at", "completed_at",
}

// Repository handles print task persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new print task repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) DB() database.DB {
	return r.db
}

// Create creates a new print task in the PENDING state
func (r *Repository) Create(ctx context.Context, tenantID string, req models.CreatePrintTaskRequest) (*models.PrintTask, error) {
	ctx, span := tracing.StartSpan(ctx, "printtask.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Create",
		"tenant_id":   tenantID,
		"entity_type": req.EntityType,
		"count":       req.Count,
	})

	task := &models.PrintTask{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Name:       req.Name,
		EntityType: req.EntityType,
		Count:      req.Count,
		Status:     models.PrintTaskStatusPending,
		CreatedBy:  req.CreatedBy,
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("print_tasks")
	sb.Cols(taskColumns...)
	sb.Values(
		task.ID, task.TenantID, task.Name, task.EntityType, task.Count, task.Status,
		task.CreatedBy, task.Notes, task.CreatedAt, task.CompletedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create print task")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create print task")
	}

	log.WithFields(map[string]any{"id": task.ID}).Info("Created print task")
	return task, nil
}

// Get retrieves a print task by ID. Returns nil when no such task exists.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.PrintTask, error) {
	ctx, span := tracing.StartSpan(ctx, "printtask.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(taskColumns...)
	sb.From("print_tasks")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	var task models.PrintTask
	if err := r.db.GetContext(ctx, &task, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get print task")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get print task")
	}

	return &task, nil
}

// List retrieves print tasks for a tenant, newest first.
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.PrintTask, int, error) {
	ctx, span := tracing.StartSpan(ctx, "printtask.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("print_tasks")
	countSb.Where(countSb.Equal("tenant_id", tenantID))

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count print tasks")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count print tasks")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(taskColumns...)
	sb.From("print_tasks")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var tasks []models.PrintTask
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list print tasks")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list print tasks")
	}

	return tasks, totalCount, nil
}

// UpdateStatus moves a task between lifecycle states, guarded by the states
// the transition is allowed from. Returns false when the task was not in one
// of the allowed states.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id string, to models.PrintTaskStatus, from ...models.PrintTaskStatus) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "printtask.Repository.UpdateStatus")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("print_tasks")
	assigns := []string{sb.Assign("status", to)}
	if to == models.PrintTaskStatusCompleted {
		assigns = append(assigns, sb.Assign("completed_at", time.Now().UTC()))
	}
	sb.Set(assigns...)

	fromAny := make([]any, 0, len(from))
	for _, s := range from {
		fromAny = append(fromAny, s)
	}
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.In("status", fromAny...),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update print task status")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update print task status")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read update result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read update result")
	}

	return rows > 0, nil
}
