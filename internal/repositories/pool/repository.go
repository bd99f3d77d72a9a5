package pool

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var poolColumns = []string{
	"tenant_id", "short_id", "status", "batch_label", "print_task_id",
	"entity_type", "entity_id", "bound_at", "cancelled_reason",
	"created_at", "updated_at",
}

// Repository handles the pre-generated label pool. Status changes are single
// UPDATE statements guarded by the current status, so a record can never skip
// backwards through its lifecycle.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new pool repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) DB() database.DB {
	return r.db
}

// InsertBatch stores a block of freshly generated pool records.
func (r *Repository) InsertBatch(ctx context.Context, records []models.PoolRecord) error {
	ctx, span := tracing.StartSpan(ctx, "pool.Repository.InsertBatch")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "InsertBatch",
		"tenant_id": records[0].TenantID,
		"count":     len(records),
	})

	const batchSize = 500
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("short_id_pool")
		sb.Cols(poolColumns...)
		for _, rec := range records[i:end] {
			sb.Values(
				rec.TenantID, int64(rec.ShortID), rec.Status, rec.BatchLabel, rec.PrintTaskID,
				rec.EntityType, rec.EntityID, rec.BoundAt, rec.CancelledReason,
				rec.CreatedAt, rec.UpdatedAt,
			)
		}

		query, args := sb.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert pool records")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert pool records")
		}
	}

	log.Info("Inserted pool records")
	return nil
}

// Get retrieves a pool record by short ID. Returns nil when the short ID was
// never generated into the pool.
func (r *Repository) Get(ctx context.Context, tenantID string, shortID models.ShortID) (*models.PoolRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "pool.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(poolColumns...)
	sb.From("short_id_pool")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("short_id", int64(shortID)),
	)

	query, args := sb.Build()
	var rec models.PoolRecord
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get pool record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get pool record")
	}

	return &rec, nil
}

// ListByTask retrieves all pool records generated for a print task, ordered
// by short ID.
func (r *Repository) ListByTask(ctx context.Context, tenantID, printTaskID string) ([]models.PoolRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "pool.Repository.ListByTask")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(poolColumns...)
	sb.From("short_id_pool")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("print_task_id", printTaskID),
	)
	sb.OrderBy("short_id ASC")

	query, args := sb.Build()
	var records []models.PoolRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pool records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pool records")
	}

	return records, nil
}

// MarkPrintedByTask moves all still-generated records of a print task to
// PRINTED. Records already bound or cancelled are left alone.
func (r *Repository) MarkPrintedByTask(ctx context.Context, tenantID, printTaskID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "pool.Repository.MarkPrintedByTask")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("short_id_pool")
	sb.Set(
		sb.Assign("status", models.PoolStatusPrinted),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("print_task_id", printTaskID),
		sb.Equal("status", models.PoolStatusGenerated),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark pool records printed")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark pool records printed")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read update result")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read update result")
	}

	return rows, nil
}

// Bind moves a record to BOUND and stamps the entity it now labels. Returns
// false when the record is not currently GENERATED or PRINTED.
func (r *Repository) Bind(ctx context.Context, tenantID string, shortID models.ShortID, entityType, entityID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "pool.Repository.Bind")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("short_id_pool")
	sb.Set(
		sb.Assign("status", models.PoolStatusBound),
		sb.Assign("entity_type", entityType),
		sb.Assign("entity_id", entityID),
		sb.Assign("bound_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("short_id", int64(shortID)),
		sb.In("status", models.PoolStatusGenerated, models.PoolStatusPrinted),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to bind pool record")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to bind pool record")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read update result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read update result")
	}

	return rows > 0, nil
}

// Cancel moves a record to CANCELLED. Returns false when the record is not
// currently GENERATED or PRINTED; bound and already-cancelled records are
// never touched.
func (r *Repository) Cancel(ctx context.Context, tenantID string, shortID models.ShortID, reason string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "pool.Repository.Cancel")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("short_id_pool")
	sb.Set(
		sb.Assign("status", models.PoolStatusCancelled),
		sb.Assign("cancelled_reason", reason),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("short_id", int64(shortID)),
		sb.In("status", models.PoolStatusGenerated, models.PoolStatusPrinted),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to cancel pool record")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to cancel pool record")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read update result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read update result")
	}

	return rows > 0, nil
}
