package cabinet

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

var cabinetColumns = []string{"id", "tenant_id", "room_id", "name", "short_id", "metadata", "created_at", "updated_at", "deleted_at"}

// Repository handles cabinet persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new cabinet repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) DB() database.DB {
	return r.db
}

// Insert stores a cabinet row. The caller assigns ID and ShortID.
func (r *Repository) Insert(ctx context.Context, cabinet *models.Cabinet) error {
	ctx, span := tracing.StartSpan(ctx, "cabinet.Repository.Insert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Insert",
		"tenant_id": cabinet.TenantID,
		"room_id":   cabinet.RoomID,
		"name":      cabinet.Name,
	})

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("cabinets")
	sb.Cols("id", "tenant_id", "room_id", "name", "short_id", "metadata", "created_at", "updated_at")
	sb.Values(cabinet.ID, cabinet.TenantID, cabinet.RoomID, cabinet.Name, int64(cabinet.ShortID), cabinet.Metadata, cabinet.CreatedAt, cabinet.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to insert cabinet")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert cabinet")
	}

	log.WithFields(map[string]any{"id": cabinet.ID}).Info("Created cabinet")
	return nil
}

// Get retrieves a cabinet by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Cabinet, error) {
	ctx, span := tracing.StartSpan(ctx, "cabinet.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(cabinetColumns...)
	sb.From("cabinets")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var cabinet models.Cabinet
	if err := r.db.GetContext(ctx, &cabinet, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("cabinet %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get cabinet")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get cabinet")
	}

	return &cabinet, nil
}

// List retrieves cabinets for a tenant, optionally filtered by room.
func (r *Repository) List(ctx context.Context, tenantID string, roomID *string, page, pageSize int) ([]models.Cabinet, int, error) {
	ctx, span := tracing.StartSpan(ctx, "cabinet.Repository.List")
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
	countSb.From("cabinets")
	countWhere := []string{
		countSb.Equal("tenant_id", tenantID),
		countSb.IsNull("deleted_at"),
	}
	if roomID != nil {
		countWhere = append(countWhere, countSb.Equal("room_id", *roomID))
	}
	countSb.Where(countWhere...)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count cabinets")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count cabinets")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(cabinetColumns...)
	sb.From("cabinets")
	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	}
	if roomID != nil {
		where = append(where, sb.Equal("room_id", *roomID))
	}
	sb.Where(where...)
	sb.OrderBy("name ASC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var cabinets []models.Cabinet
	if err := r.db.SelectContext(ctx, &cabinets, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list cabinets")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list cabinets")
	}

	return cabinets, totalCount, nil
}

// CountByRoom counts live cabinets in a room.
func (r *Repository) CountByRoom(ctx context.Context, tenantID, roomID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "cabinet.Repository.CountByRoom")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("cabinets")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("room_id", roomID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count cabinets by room")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count cabinets by room")
	}

	return count, nil
}

// Update updates a cabinet
func (r *Repository) Update(ctx context.Context, tenantID, id string, req models.UpdateCabinetRequest) (*models.Cabinet, error) {
	ctx, span := tracing.StartSpan(ctx, "cabinet.Repository.Update")
	defer span.End()

	existing, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Metadata != nil {
		existing.Metadata = *req.Metadata
	}
	existing.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("cabinets")
	sb.Set(
		sb.Assign("name", existing.Name),
		sb.Assign("metadata", existing.Metadata),
		sb.Assign("updated_at", existing.UpdatedAt),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update cabinet")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update cabinet")
	}

	return existing, nil
}

// SoftDelete marks a cabinet deleted. Returns false when the cabinet was
// already deleted or never existed.
func (r *Repository) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "cabinet.Repository.SoftDelete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("cabinets")
	sb.Set(sb.Assign("deleted_at", time.Now().UTC()))
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete cabinet")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete cabinet")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read delete result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read delete result")
	}

	return rows > 0, nil
}
