package panel

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

var panelColumns = []string{"id", "tenant_id", "cabinet_id", "name", "panel_type", "device_name", "short_id", "metadata", "created_at", "updated_at", "deleted_at"}

// Repository handles panel persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new panel repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) DB() database.DB {
	return r.db
}

// Insert stores a panel row. The caller assigns ID and ShortID.
func (r *Repository) Insert(ctx context.Context, panel *models.Panel) error {
	ctx, span := tracing.StartSpan(ctx, "panel.Repository.Insert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":     "Insert",
		"tenant_id":  panel.TenantID,
		"cabinet_id": panel.CabinetID,
		"name":       panel.Name,
	})

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("panels")
	sb.Cols("id", "tenant_id", "cabinet_id", "name", "panel_type", "device_name", "short_id", "metadata", "created_at", "updated_at")
	sb.Values(panel.ID, panel.TenantID, panel.CabinetID, panel.Name, panel.PanelType, panel.DeviceName, int64(panel.ShortID), panel.Metadata, panel.CreatedAt, panel.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to insert panel")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert panel")
	}

	log.WithFields(map[string]any{"id": panel.ID}).Info("Created panel")
	return nil
}

// Get retrieves a panel by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Panel, error) {
	ctx, span := tracing.StartSpan(ctx, "panel.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(panelColumns...)
	sb.From("panels")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var panel models.Panel
	if err := r.db.GetContext(ctx, &panel, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("panel %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get panel")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get panel")
	}

	return &panel, nil
}

// GetMany retrieves a set of panels by ID, skipping deleted ones.
func (r *Repository) GetMany(ctx context.Context, tenantID string, ids []string) ([]models.Panel, error) {
	ctx, span := tracing.StartSpan(ctx, "panel.Repository.GetMany")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	idsAny := make([]any, 0, len(ids))
	for _, id := range ids {
		idsAny = append(idsAny, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(panelColumns...)
	sb.From("panels")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", idsAny...),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var panels []models.Panel
	if err := r.db.SelectContext(ctx, &panels, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get panels")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get panels")
	}

	return panels, nil
}

// List retrieves panels for a tenant, optionally filtered by cabinet.
func (r *Repository) List(ctx context.Context, tenantID string, cabinetID *string, page, pageSize int) ([]models.Panel, int, error) {
	ctx, span := tracing.StartSpan(ctx, "panel.Repository.List")
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
	countSb.From("panels")
	countWhere := []string{
		countSb.Equal("tenant_id", tenantID),
		countSb.IsNull("deleted_at"),
	}
	if cabinetID != nil {
		countWhere = append(countWhere, countSb.Equal("cabinet_id", *cabinetID))
	}
	countSb.Where(countWhere...)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count panels")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count panels")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(panelColumns...)
	sb.From("panels")
	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	}
	if cabinetID != nil {
		where = append(where, sb.Equal("cabinet_id", *cabinetID))
	}
	sb.Where(where...)
	sb.OrderBy("name ASC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var panels []models.Panel
	if err := r.db.SelectContext(ctx, &panels, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list panels")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list panels")
	}

	return panels, totalCount, nil
}

// CountByCabinet counts live panels in a cabinet.
func (r *Repository) CountByCabinet(ctx context.Context, tenantID, cabinetID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "panel.Repository.CountByCabinet")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("panels")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("cabinet_id", cabinetID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count panels by cabinet")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count panels by cabinet")
	}

	return count, nil
}

// Update updates a panel
func (r *Repository) Update(ctx context.Context, tenantID, id string, req models.UpdatePanelRequest) (*models.Panel, error) {
	ctx, span := tracing.StartSpan(ctx, "panel.Repository.Update")
	defer span.End()

	existing, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.PanelType != nil {
		existing.PanelType = *req.PanelType
	}
	if req.DeviceName != nil {
		existing.DeviceName = *req.DeviceName
	}
	if req.Metadata != nil {
		existing.Metadata = *req.Metadata
	}
	existing.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("panels")
	sb.Set(
		sb.Assign("name", existing.Name),
		sb.Assign("panel_type", existing.PanelType),
		sb.Assign("device_name", existing.DeviceName),
		sb.Assign("metadata", existing.Metadata),
		sb.Assign("updated_at", existing.UpdatedAt),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update panel")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update panel")
	}

	return existing, nil
}

// SoftDelete marks a panel deleted. Returns false when the panel was already
// deleted or never existed.
func (r *Repository) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "panel.Repository.SoftDelete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("panels")
	sb.Set(sb.Assign("deleted_at", time.Now().UTC()))
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete panel")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete panel")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read delete result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read delete result")
	}

	return rows > 0, nil
}
