package cable

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var cableColumns = []string{"id", "tenant_id", "label", "category", "created_at", "updated_at", "deleted_at"}
var endpointColumns = []string{"id", "tenant_id", "cable_id", "end_type", "short_id", "port_id", "created_at", "updated_at"}

// Repository handles cable and cable endpoint persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new cable repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) DB() database.DB {
	return r.db
}

// InsertCable stores a cable row. The caller assigns the ID.
func (r *Repository) InsertCable(ctx context.Context, cable *models.Cable) error {
	ctx, span := tracing.StartSpan(ctx, "cable.Repository.InsertCable")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "InsertCable",
		"tenant_id": cable.TenantID,
		"label":     cable.Label,
	})

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("cables")
	sb.Cols("id", "tenant_id", "label", "category", "created_at", "updated_at")
	sb.Values(cable.ID, cable.TenantID, cable.Label, cable.Category, cable.CreatedAt, cable.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to insert cable")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert cable")
	}

	log.WithFields(map[string]any{"id": cable.ID}).Info("Created cable")
	return nil
}

// InsertEndpoint stores one end of a cable.
func (r *Repository) InsertEndpoint(ctx context.Context, ep *models.CableEndpoint) error {
	ctx, span := tracing.StartSpan(ctx, "cable.Repository.InsertEndpoint")
	defer span.End()

	var shortID *int64
	if ep.ShortID != nil {
		v := int64(*ep.ShortID)
		shortID = &v
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("cable_endpoints")
	sb.Cols("id", "tenant_id", "cable_id", "end_type", "short_id", "port_id", "created_at", "updated_at")
	sb.Values(ep.ID, ep.TenantID, ep.CableID, ep.EndType, shortID, ep.PortID, ep.CreatedAt, ep.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert cable endpoint")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert cable endpoint")
	}

	return nil
}

// Get retrieves a cable by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Cable, error) {
	ctx, span := tracing.StartSpan(ctx, "cable.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(cableColumns...)
	sb.From("cables")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var cable models.Cable
	if err := r.db.GetContext(ctx, &cable, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("cable %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get cable")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get cable")
	}

	return &cable, nil
}

// GetEndpoints retrieves all endpoints of a cable, A end first.
func (r *Repository) GetEndpoints(ctx context.Context, tenantID, cableID string) ([]models.CableEndpoint, error) {
	ctx, span := tracing.StartSpan(ctx, "cable.Repository.GetEndpoints")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(endpointColumns...)
	sb.From("cable_endpoints")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("cable_id", cableID),
	)
	sb.OrderBy("end_type ASC")

	query, args := sb.Build()
	var endpoints []models.CableEndpoint
	if err := r.db.SelectContext(ctx, &endpoints, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get cable endpoints")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get cable endpoints")
	}

	return endpoints, nil
}

// GetEndpointByShortID finds the endpoint bearing a label. Returns nil when
// no endpoint carries the short ID.
func (r *Repository) GetEndpointByShortID(ctx context.Context, tenantID string, shortID models.ShortID) (*models.CableEndpoint, error) {
	ctx, span := tracing.StartSpan(ctx, "cable.Repository.GetEndpointByShortID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(endpointColumns...)
	sb.From("cable_endpoints")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("short_id", int64(shortID)),
	)

	query, args := sb.Build()
	var ep models.CableEndpoint
	if err := r.db.GetContext(ctx, &ep, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get endpoint by short ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get endpoint by short ID")
	}

	return &ep, nil
}

// GetEndpointByPort finds the endpoint plugged into a port. Returns nil when
// the port is unconnected.
func (r *Repository) GetEndpointByPort(ctx context.Context, tenantID, portID string) (*models.CableEndpoint, error) {
	ctx, span := tracing.StartSpan(ctx, "cable.Repository.GetEndpointByPort")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(endpointColumns...)
	sb.From("cable_endpoints")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("port_id", portID),
	)

	query, args := sb.Build()
	var ep models.CableEndpoint
	if err := r.db.GetContext(ctx, &ep, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get endpoint by port")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get endpoint by port")
	}

	return &ep, nil
}

// SetEndpointPort plugs an endpoint into a port, or unplugs it when portID is
// nil.
func (r *Repository) SetEndpointPort(ctx context.Context, tenantID, endpointID string, portID *string) error {
	ctx, span := tracing.StartSpan(ctx, "cable.Repository.SetEndpointPort")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("cable_endpoints")
	sb.Set(
		sb.Assign("port_id", portID),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", endpointID),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to set endpoint port")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set endpoint port")
	}

	return nil
}

// List retrieves cables for a tenant
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Cable, int, error) {
	ctx, span := tracing.StartSpan(ctx, "cable.Repository.List")
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
	countSb.From("cables")
	countSb.Where(
		countSb.Equal("tenant_id", tenantID),
		countSb.IsNull("deleted_at"),
	)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count cables")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count cables")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(cableColumns...)
	sb.From("cables")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var cables []models.Cable
	if err := r.db.SelectContext(ctx, &cables, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list cables")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list cables")
	}

	return cables, totalCount, nil
}

// SoftDelete marks a cable deleted and unplugs its endpoints. Returns false
// when the cable was already deleted or never existed.
func (r *Repository) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "cable.Repository.SoftDelete")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("cables")
	sb.Set(sb.Assign("deleted_at", time.Now().UTC()))
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete cable")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete cable")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read delete result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read delete result")
	}

	if rows > 0 {
		eb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		eb.Update("cable_endpoints")
		eb.Set(
			eb.Assign("port_id", nil),
			eb.Assign("updated_at", time.Now().UTC()),
		)
		eb.Where(
			eb.Equal("tenant_id", tenantID),
			eb.Equal("cable_id", id),
		)

		query, args := eb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to unplug cable endpoints")
			return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to unplug cable endpoints")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit cable delete")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit cable delete")
	}

	return rows > 0, nil
}
