package assets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// CreateRoom allocates a ShortID and stores a new room in one transaction.
func (s *Service) CreateRoom(ctx context.Context, tenantID string, req models.CreateRoomRequest) (*models.RoomResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.CreateRoom")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"name":      req.Name,
	})

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	room := &models.Room{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      req.Name,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	room.ShortID, err = s.allocate(ctx, tenantID, models.EntityTypeRoom, room.ID, req.PinnedShortID)
	if err != nil {
		return nil, err
	}

	if err := s.rooms.Insert(ctx, room); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit room creation")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create room")
	}

	if err := s.events.EmitAssetCreated(ctx, tenantID, models.EntityTypeRoom, room.ID, room.ShortID, s.allocator.Label(room.ShortID), room); err != nil {
		log.WithError(err).Warn("Room created but event emission failed")
	}

	return &models.RoomResponse{Room: *room, Label: s.allocator.Label(room.ShortID)}, nil
}

// GetRoom retrieves a room by ID.
func (s *Service) GetRoom(ctx context.Context, tenantID, id string) (*models.RoomResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.GetRoom")
	defer span.End()

	room, err := s.rooms.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	return &models.RoomResponse{Room: *room, Label: s.allocator.Label(room.ShortID)}, nil
}

// ListRooms lists rooms for a tenant.
func (s *Service) ListRooms(ctx context.Context, tenantID string, page, pageSize int) (*models.RoomListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.ListRooms")
	defer span.End()

	rooms, total, err := s.rooms.List(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &models.RoomListResponse{
		Items:      rooms,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// UpdateRoom updates a room's name or metadata.
func (s *Service) UpdateRoom(ctx context.Context, tenantID, id string, req models.UpdateRoomRequest) (*models.RoomResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.UpdateRoom")
	defer span.End()

	room, err := s.rooms.Update(ctx, tenantID, id, req)
	if err != nil {
		return nil, err
	}

	if err := s.events.EmitAssetUpdated(ctx, tenantID, models.EntityTypeRoom, room.ID, room); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Room updated but event emission failed")
	}

	return &models.RoomResponse{Room: *room, Label: s.allocator.Label(room.ShortID)}, nil
}

// DeleteRoom soft-deletes an empty room and releases its ShortID. A room
// that still holds cabinets cannot be deleted.
func (s *Service) DeleteRoom(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.DeleteRoom")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"room_id":   id,
	})

	room, err := s.rooms.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	count, err := s.cabinets.CountByRoom(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("room %s still contains %d cabinets", id, count))
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	deleted, err := s.rooms.SoftDelete(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("room %s not found", id))
	}

	if err := s.allocator.Release(ctx, tenantID, room.ShortID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit room deletion")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete room")
	}

	if err := s.events.EmitAssetDeleted(ctx, tenantID, models.EntityTypeRoom, id, room.ShortID); err != nil {
		log.WithError(err).Warn("Room deleted but event emission failed")
	}

	log.Info("Deleted room")
	return nil
}
