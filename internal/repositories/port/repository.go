package port

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

var portColumns = []string{"id", "tenant_id", "panel_id", "name", "status", "short_id", "created_at", "updated_at", "deleted_at"}

// Repository handles port persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new port repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) DB() database.DB {
	return r.db
}

// Insert stores a port row. The caller assigns ID and ShortID.
func (r *Repository) Insert(ctx context.Context, port *models.Port) error {
	ctx, span := tracing.StartSpan(ctx, "port.Repository.Insert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Insert",
		"tenant_id": port.TenantID,
		"panel_id":  port.PanelID,
		"name":      port.Name,
	})

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("ports")
	sb.Cols("id", "tenant_id", "panel_id", "name", "status", "short_id", "created_at", "updated_at")
	sb.Values(port.ID, port.TenantID, port.PanelID, port.Name, port.Status, int64(port.ShortID), port.CreatedAt, port.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to insert port")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert port")
	}

	log.WithFields(map[string]any{"id": port.ID}).Info("Created port")
	return nil
}

// Get retrieves a port by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Port, error) {
	ctx, span := tracing.StartSpan(ctx, "port.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(portColumns...)
	sb.From("ports")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var port models.Port
	if err := r.db.GetContext(ctx, &port, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("port %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get port")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get port")
	}

	return &port, nil
}

// GetMany retrieves a set of ports by ID, skipping deleted ones.
func (r *Repository) GetMany(ctx context.Context, tenantID string, ids []string) ([]models.Port, error) {
	ctx, span := tracing.StartSpan(ctx, "port.Repository.GetMany")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	idsAny := make([]any, 0, len(ids))
	for _, id := range ids {
		idsAny = append(idsAny, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(portColumns...)
	sb.From("ports")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", idsAny...),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var ports []models.Port
	if err := r.db.SelectContext(ctx, &ports, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get ports")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ports")
	}

	return ports, nil
}

// ListByPanel retrieves all live ports on a panel.
func (r *Repository) ListByPanel(ctx context.Context, tenantID, panelID string) ([]models.Port, error) {
	ctx, span := tracing.StartSpan(ctx, "port.Repository.ListByPanel")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(portColumns...)
	sb.From("ports")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("panel_id", panelID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("name ASC")

	query, args := sb.Build()
	var ports []models.Port
	if err := r.db.SelectContext(ctx, &ports, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list ports")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ports")
	}

	return ports, nil
}

// Update updates a port's name or status
func (r *Repository) Update(ctx context.Context, tenantID, id string, req models.UpdatePortRequest) (*models.Port, error) {
	ctx, span := tracing.StartSpan(ctx, "port.Repository.Update")
	defer span.End()

	existing, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Status != nil {
		existing.Status = *req.Status
	}
	existing.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("ports")
	sb.Set(
		sb.Assign("name", existing.Name),
		sb.Assign("status", existing.Status),
		sb.Assign("updated_at", existing.UpdatedAt),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update port")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update port")
	}

	return existing, nil
}

// SetStatus updates just the operational status of a port.
func (r *Repository) SetStatus(ctx context.Context, tenantID, id string, status models.PortStatus) error {
	ctx, span := tracing.StartSpan(ctx, "port.Repository.SetStatus")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("ports")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to set port status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set port status")
	}

	return nil
}

// CountByPanel counts live ports on a panel.
func (r *Repository) CountByPanel(ctx context.Context, tenantID, panelID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "port.Repository.CountByPanel")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("ports")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("panel_id", panelID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count ports by panel")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count ports by panel")
	}

	return count, nil
}

// SoftDelete marks a port deleted. Returns false when the port was already
// deleted or never existed.
func (r *Repository) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "port.Repository.SoftDelete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("ports")
	sb.Set(sb.Assign("deleted_at", time.Now().UTC()))
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete port")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete port")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read delete result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read delete result")
	}

	return rows > 0, nil
}
