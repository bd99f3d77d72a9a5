package room

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

var roomColumns = []string{"id", "tenant_id", "name", "short_id", "metadata", "created_at", "updated_at", "deleted_at"}

// Repository handles room persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new room repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) DB() database.DB {
	return r.db
}

// Insert stores a room row. The caller assigns ID and ShortID.
func (r *Repository) Insert(ctx context.Context, room *models.Room) error {
	ctx, span := tracing.StartSpan(ctx, "room.Repository.Insert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Insert",
		"tenant_id": room.TenantID,
		"name":      room.Name,
	})

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("rooms")
	sb.Cols("id", "tenant_id", "name", "short_id", "metadata", "created_at", "updated_at")
	sb.Values(room.ID, room.TenantID, room.Name, int64(room.ShortID), room.Metadata, room.CreatedAt, room.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to insert room")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert room")
	}

	log.WithFields(map[string]any{"id": room.ID}).Info("Created room")
	return nil
}

// Get retrieves a room by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Room, error) {
	ctx, span := tracing.StartSpan(ctx, "room.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(roomColumns...)
	sb.From("rooms")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("room %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get room")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get room")
	}

	return &room, nil
}

// List retrieves rooms for a tenant
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Room, int, error) {
	ctx, span := tracing.StartSpan(ctx, "room.Repository.List")
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
	countSb.From("rooms")
	countSb.Where(
		countSb.Equal("tenant_id", tenantID),
		countSb.IsNull("deleted_at"),
	)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count rooms")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count rooms")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(roomColumns...)
	sb.From("rooms")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("name ASC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list rooms")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list rooms")
	}

	return rooms, totalCount, nil
}

// Update updates a room
func (r *Repository) Update(ctx context.Context, tenantID, id string, req models.UpdateRoomRequest) (*models.Room, error) {
	ctx, span := tracing.StartSpan(ctx, "room.Repository.Update")
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
	sb.Update("rooms")
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
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update room")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update room")
	}

	return existing, nil
}

// SoftDelete marks a room deleted. Returns false when the room was already
// deleted or never existed.
func (r *Repository) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "room.Repository.SoftDelete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("rooms")
	sb.Set(sb.Assign("deleted_at", time.Now().UTC()))
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete room")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete room")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read delete result")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read delete result")
	}

	return rows > 0, nil
}
