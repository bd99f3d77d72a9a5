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

// CreateCabinet allocates a ShortID and stores a new cabinet. The parent
// room must exist.
func (s *Service) CreateCabinet(ctx context.Context, tenantID string, req models.CreateCabinetRequest) (*models.CabinetResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.CreateCabinet")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"room_id":   req.RoomID,
		"name":      req.Name,
	})

	if _, err := s.rooms.Get(ctx, tenantID, req.RoomID); err != nil {
		return nil, err
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	cabinet := &models.Cabinet{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		RoomID:    req.RoomID,
		Name:      req.Name,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	cabinet.ShortID, err = s.allocate(ctx, tenantID, models.EntityTypeCabinet, cabinet.ID, req.PinnedShortID)
	if err != nil {
		return nil, err
	}

	if err := s.cabinets.Insert(ctx, cabinet); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit cabinet creation")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create cabinet")
	}

	if err := s.events.EmitAssetCreated(ctx, tenantID, models.EntityTypeCabinet, cabinet.ID, cabinet.ShortID, s.allocator.Label(cabinet.ShortID), cabinet); err != nil {
		log.WithError(err).Warn("Cabinet created but event emission failed")
	}

	return &models.CabinetResponse{Cabinet: *cabinet, Label: s.allocator.Label(cabinet.ShortID)}, nil
}

// GetCabinet retrieves a cabinet by ID.
func (s *Service) GetCabinet(ctx context.Context, tenantID, id string) (*models.CabinetResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.GetCabinet")
	defer span.End()

	cabinet, err := s.cabinets.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	return &models.CabinetResponse{Cabinet: *cabinet, Label: s.allocator.Label(cabinet.ShortID)}, nil
}

// ListCabinets lists cabinets for a tenant, optionally scoped to one room.
func (s *Service) ListCabinets(ctx context.Context, tenantID string, roomID *string, page, pageSize int) (*models.CabinetListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.ListCabinets")
	defer span.End()

	cabinets, total, err := s.cabinets.List(ctx, tenantID, roomID, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &models.CabinetListResponse{
		Items:      cabinets,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// UpdateCabinet updates a cabinet's name or metadata.
func (s *Service) UpdateCabinet(ctx context.Context, tenantID, id string, req models.UpdateCabinetRequest) (*models.CabinetResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.UpdateCabinet")
	defer span.End()

	cabinet, err := s.cabinets.Update(ctx, tenantID, id, req)
	if err != nil {
		return nil, err
	}

	if err := s.events.EmitAssetUpdated(ctx, tenantID, models.EntityTypeCabinet, cabinet.ID, cabinet); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Cabinet updated but event emission failed")
	}

	return &models.CabinetResponse{Cabinet: *cabinet, Label: s.allocator.Label(cabinet.ShortID)}, nil
}

// DeleteCabinet soft-deletes an empty cabinet and releases its ShortID. A
// cabinet that still holds panels cannot be deleted.
func (s *Service) DeleteCabinet(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.DeleteCabinet")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":  tenantID,
		"cabinet_id": id,
	})

	cabinet, err := s.cabinets.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	count, err := s.panels.CountByCabinet(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("cabinet %s still contains %d panels", id, count))
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	deleted, err := s.cabinets.SoftDelete(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("cabinet %s not found", id))
	}

	if err := s.allocator.Release(ctx, tenantID, cabinet.ShortID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit cabinet deletion")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete cabinet")
	}

	if err := s.events.EmitAssetDeleted(ctx, tenantID, models.EntityTypeCabinet, id, cabinet.ShortID); err != nil {
		log.WithError(err).Warn("Cabinet deleted but event emission failed")
	}

	log.Info("Deleted cabinet")
	return nil
}
