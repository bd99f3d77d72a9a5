package allocation

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

// Repository handles short ID allocation persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new allocation repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) DB() database.DB {
	return r.db
}

// Insert records an allocation. Returns false without error when the
// (tenant_id, short_id) pair is already taken.
func (r *Repository) Insert(ctx context.Context, rec models.AllocationRecord) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "allocation.Repository.Insert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Insert",
		"tenant_id":   rec.TenantID,
		"short_id":    rec.ShortID,
		"entity_type": rec.EntityType,
	})

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("short_id_allocations")
	sb.Cols("tenant_id", "short_id", "entity_type", "entity_id", "created_at")
	sb.Values(rec.TenantID, int64(rec.ShortID), rec.EntityType, rec.EntityID, rec.CreatedAt)

	query, args := sb.Build()
	query += ` ON CONFLICT (tenant_id, short_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("Failed to insert allocation")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert allocation")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		log.WithError(err).Error("Failed to read insert result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read insert result")
	}

	return rows > 0, nil
}

// Get retrieves an allocation by short ID. Returns nil when the short ID has
// no allocation; callers decide whether that is an error.
func (r *Repository) Get(ctx context.Context, tenantID string, shortID models.ShortID) (*models.AllocationRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "allocation.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tenant_id", "short_id", "entity_type", "entity_id", "created_at")
	sb.From("short_id_allocations")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("short_id", int64(shortID)),
	)

	query, args := sb.Build()
	var rec models.AllocationRecord
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get allocation")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocation")
	}

	return &rec, nil
}

// GetByEntity retrieves the allocation held by an entity, if any.
func (r *Repository) GetByEntity(ctx context.Context, tenantID, entityType, entityID string) (*models.AllocationRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "allocation.Repository.GetByEntity")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tenant_id", "short_id", "entity_type", "entity_id", "created_at")
	sb.From("short_id_allocations")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", entityType),
		sb.Equal("entity_id", entityID),
	)

	query, args := sb.Build()
	var rec models.AllocationRecord
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get allocation by entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocation by entity")
	}

	return &rec, nil
}

// Delete removes an allocation. Returns false when there was nothing to
// remove, which callers treat as an already-released short ID.
func (r *Repository) Delete(ctx context.Context, tenantID string, shortID models.ShortID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "allocation.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("short_id_allocations")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("short_id", int64(shortID)),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete allocation")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete allocation")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read delete result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read delete result")
	}

	return rows > 0, nil
}
