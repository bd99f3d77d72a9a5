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

// CreatePanel allocates a ShortID and stores a new panel. The parent cabinet
// must exist.
func (s *Service) CreatePanel(ctx context.Context, tenantID string, req models.CreatePanelRequest) (*models.PanelResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.CreatePanel")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":  tenantID,
		"cabinet_id": req.CabinetID,
		"name":       req.Name,
	})

	if _, err := s.cabinets.Get(ctx, tenantID, req.CabinetID); err != nil {
		return nil, err
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	panel := &models.Panel{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		CabinetID:  req.CabinetID,
		Name:       req.Name,
		PanelType:  req.PanelType,
		DeviceName: req.DeviceName,
		Metadata:   req.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	panel.ShortID, err = s.allocate(ctx, tenantID, models.EntityTypePanel, panel.ID, req.PinnedShortID)
	if err != nil {
		return nil, err
	}

	if err := s.panels.Insert(ctx, panel); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit panel creation")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create panel")
	}

	if err := s.events.EmitAssetCreated(ctx, tenantID, models.EntityTypePanel, panel.ID, panel.ShortID, s.allocator.Label(panel.ShortID), panel); err != nil {
		log.WithError(err).Warn("Panel created but event emission failed")
	}

	return &models.PanelResponse{Panel: *panel, Label: s.allocator.Label(panel.ShortID)}, nil
}

// GetPanel retrieves a panel by ID.
func (s *Service) GetPanel(ctx context.Context, tenantID, id string) (*models.PanelResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.GetPanel")
	defer span.End()

	panel, err := s.panels.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	return &models.PanelResponse{Panel: *panel, Label: s.allocator.Label(panel.ShortID)}, nil
}

// ListPanels lists panels for a tenant, optionally scoped to one cabinet.
func (s *Service) ListPanels(ctx context.Context, tenantID string, cabinetID *string, page, pageSize int) (*models.PanelListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.ListPanels")
	defer span.End()

	panels, total, err := s.panels.List(ctx, tenantID, cabinetID, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &models.PanelListResponse{
		Items:      panels,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// UpdatePanel updates a panel and propagates renamed panel or device names
// onto the panel's port nodes in the graph.
func (s *Service) UpdatePanel(ctx context.Context, tenantID, id string, req models.UpdatePanelRequest) (*models.PanelResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.UpdatePanel")
	defer span.End()

	panel, err := s.panels.Update(ctx, tenantID, id, req)
	if err != nil {
		return nil, err
	}

	if req.Name != nil || req.DeviceName != nil {
		if err := s.graph.SyncPanel(ctx, tenantID, panel.ID, panel.Name, panel.DeviceName); err != nil {
			s.logger.WithContext(ctx).WithError(err).Error("Panel updated but graph sync failed")
			return nil, err
		}
	}

	if err := s.events.EmitAssetUpdated(ctx, tenantID, models.EntityTypePanel, panel.ID, panel); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Panel updated but event emission failed")
	}

	return &models.PanelResponse{Panel: *panel, Label: s.allocator.Label(panel.ShortID)}, nil
}

// DeletePanel soft-deletes an empty panel and releases its ShortID. A panel
// that still holds ports cannot be deleted.
func (s *Service) DeletePanel(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.DeletePanel")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"panel_id":  id,
	})

	panel, err := s.panels.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	count, err := s.ports.CountByPanel(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("panel %s still contains %d ports", id, count))
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	deleted, err := s.panels.SoftDelete(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("panel %s not found", id))
	}

	if err := s.allocator.Release(ctx, tenantID, panel.ShortID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit panel deletion")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete panel")
	}

	if err := s.events.EmitAssetDeleted(ctx, tenantID, models.EntityTypePanel, id, panel.ShortID); err != nil {
		log.WithError(err).Warn("Panel deleted but event emission failed")
	}

	log.Info("Deleted panel")
	return nil
}
