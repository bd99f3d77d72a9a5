package sequence

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles the per-tenant short ID counter. The counter only ever
// moves forward; values are handed out by single UPDATE ... RETURNING
// statements so two callers can never receive the same value.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new sequence repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DB exposes the underlying database handle so callers can open a transaction
// spanning the counter and the tables written alongside it.
func (r *Repository) DB() database.DB {
	return r.db
}

const ensureRowQuery = `INSERT INTO short_id_counters (tenant_id) VALUES ($1) ON CONFLICT (tenant_id) DO NOTHING`

// Next advances the tenant's counter by one and returns the value it handed
// out. The counter row is created lazily on first use.
func (r *Repository) Next(ctx context.Context, tenantID string) (models.ShortID, error) {
	ctx, span := tracing.StartSpan(ctx, "sequence.Repository.Next")
	defer span.End()

	start, err := r.NextBlock(ctx, tenantID, 1)
	if err != nil {
		return 0, err
	}
	return start, nil
}

// NextBlock advances the tenant's counter by count and returns the first value
// of the reserved block. The block [start, start+count) belongs to the caller.
func (r *Repository) NextBlock(ctx context.Context, tenantID string, count int) (models.ShortID, error) {
	ctx, span := tracing.StartSpan(ctx, "sequence.Repository.NextBlock")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "NextBlock",
		"tenant_id": tenantID,
		"count":     count,
	})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, ensureRowQuery, tenantID); err != nil {
		log.WithError(err).Error("Failed to ensure counter row")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to ensure counter row")
	}

	var start int64
	query := `UPDATE short_id_counters SET next_value = next_value + $2 WHERE tenant_id = $1 RETURNING next_value - $2`
	if err := tx.GetContext(ctx, &start, query, tenantID, count); err != nil {
		log.WithError(err).Error("Failed to advance counter")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to advance counter")
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit counter advance")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit counter advance")
	}

	return models.ShortID(start), nil
}

// Bump raises the tenant's counter so the next handed-out value is strictly
// greater than floor. A counter already past floor is left untouched.
func (r *Repository) Bump(ctx context.Context, tenantID string, floor models.ShortID) error {
	ctx, span := tracing.StartSpan(ctx, "sequence.Repository.Bump")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Bump",
		"tenant_id": tenantID,
		"floor":     floor,
	})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, ensureRowQuery, tenantID); err != nil {
		log.WithError(err).Error("Failed to ensure counter row")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to ensure counter row")
	}

	query := `UPDATE short_id_counters SET next_value = GREATEST(next_value, $2 + 1) WHERE tenant_id = $1`
	if _, err := tx.ExecContext(ctx, query, tenantID, int64(floor)); err != nil {
		log.WithError(err).Error("Failed to bump counter")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to bump counter")
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit counter bump")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit counter bump")
	}

	return nil
}

// Current reads the counter without advancing it. Returns 1 for tenants that
// have never allocated.
func (r *Repository) Current(ctx context.Context, tenantID string) (models.ShortID, error) {
	ctx, span := tracing.StartSpan(ctx, "sequence.Repository.Current")
	defer span.End()

	var next int64
	query := `SELECT next_value FROM short_id_counters WHERE tenant_id = $1`
	if err := r.db.GetContext(ctx, &next, query, tenantID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return 1, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read counter")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read counter")
	}

	return models.ShortID(next), nil
}
