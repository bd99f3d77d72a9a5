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

// portNodeInfo builds the graph projection for a port from its row and its
// parent panel.
func portNodeInfo(port *models.Port, panel *models.Panel) models.PortNodeInfo {
	return models.PortNodeInfo{
		PortID:     port.ID,
		PortName:   port.Name,
		PanelID:    panel.ID,
		PanelName:  panel.Name,
		CabinetID:  panel.CabinetID,
		DeviceName: panel.DeviceName,
		Status:     string(port.Status),
		ShortID:    port.ShortID,
	}
}

// CreatePort allocates a ShortID, stores the port row and mirrors the port
// into the connectivity graph. The relational write and the graph sync share
// one transaction so a graph failure rolls the row back.
func (s *Service) CreatePort(ctx context.Context, tenantID string, req models.CreatePortRequest) (*models.PortResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.CreatePort")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"panel_id":  req.PanelID,
		"name":      req.Name,
	})

	panel, err := s.panels.Get(ctx, tenantID, req.PanelID)
	if err != nil {
		return nil, err
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	port := &models.Port{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		PanelID:   req.PanelID,
		Name:      req.Name,
		Status:    models.PortStatusFree,
		CreatedAt: now,
		UpdatedAt: now,
	}

	port.ShortID, err = s.allocate(ctx, tenantID, models.EntityTypePort, port.ID, req.PinnedShortID)
	if err != nil {
		return nil, err
	}

	if err := s.ports.Insert(ctx, port); err != nil {
		return nil, err
	}

	if err := s.graph.SyncPort(ctx, tenantID, portNodeInfo(port, panel)); err != nil {
		log.WithError(err).Error("Failed to sync port node, rolling back")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit port creation")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create port")
	}

	if err := s.events.EmitAssetCreated(ctx, tenantID, models.EntityTypePort, port.ID, port.ShortID, s.allocator.Label(port.ShortID), port); err != nil {
		log.WithError(err).Warn("Port created but event emission failed")
	}

	return &models.PortResponse{Port: *port, Label: s.allocator.Label(port.ShortID)}, nil
}

// GetPort retrieves a port by ID.
func (s *Service) GetPort(ctx context.Context, tenantID, id string) (*models.PortResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.GetPort")
	defer span.End()

	port, err := s.ports.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	return &models.PortResponse{Port: *port, Label: s.allocator.Label(port.ShortID)}, nil
}

// ListPorts lists the live ports on one panel.
func (s *Service) ListPorts(ctx context.Context, tenantID, panelID string) ([]models.PortResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.ListPorts")
	defer span.End()

	ports, err := s.ports.ListByPanel(ctx, tenantID, panelID)
	if err != nil {
		return nil, err
	}

	out := make([]models.PortResponse, 0, len(ports))
	for _, p := range ports {
		out = append(out, models.PortResponse{Port: p, Label: s.allocator.Label(p.ShortID)})
	}
	return out, nil
}

// UpdatePort updates a port's name or status and re-syncs its graph node.
func (s *Service) UpdatePort(ctx context.Context, tenantID, id string, req models.UpdatePortRequest) (*models.PortResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.UpdatePort")
	defer span.End()

	port, err := s.ports.Update(ctx, tenantID, id, req)
	if err != nil {
		return nil, err
	}

	panel, err := s.panels.Get(ctx, tenantID, port.PanelID)
	if err != nil {
		return nil, err
	}

	if err := s.graph.SyncPort(ctx, tenantID, portNodeInfo(port, panel)); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Port updated but graph sync failed")
		return nil, err
	}

	if err := s.events.EmitAssetUpdated(ctx, tenantID, models.EntityTypePort, port.ID, port); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Port updated but event emission failed")
	}

	return &models.PortResponse{Port: *port, Label: s.allocator.Label(port.ShortID)}, nil
}

// DeletePort soft-deletes a port, removes its graph node and releases its
// ShortID. A port still wired to a cable endpoint cannot be deleted.
func (s *Service) DeletePort(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "assets.Service.DeletePort")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"port_id":   id,
	})

	port, err := s.ports.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	endpoint, err := s.endpoints.GetEndpointByPort(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if endpoint != nil {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("port %s is connected to cable %s", id, endpoint.CableID))
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	deleted, err := s.ports.SoftDelete(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("port %s not found", id))
	}

	if err := s.allocator.Release(ctx, tenantID, port.ShortID); err != nil {
		return err
	}

	if err := s.graph.RemovePort(ctx, tenantID, id); err != nil {
		log.WithError(err).Error("Failed to remove port node, rolling back")
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit port deletion")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete port")
	}

	if err := s.events.EmitAssetDeleted(ctx, tenantID, models.EntityTypePort, id, port.ShortID); err != nil {
		log.WithError(err).Warn("Port deleted but event emission failed")
	}

	log.Info("Deleted port")
	return nil
}
