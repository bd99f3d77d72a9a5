// Package cabling manages physical cables: the relational cable and endpoint
// records, their ShortID labels, and the hyperedge in the connectivity graph.
package cabling

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/connectivity"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// CableStore persists cable and endpoint rows.
type CableStore interface {
	InsertCable(ctx context.Context, cable *models.Cable) error
	InsertEndpoint(ctx context.Context, ep *models.CableEndpoint) error
	Get(ctx context.Context, tenantID, id string) (*models.Cable, error)
	GetEndpoints(ctx context.Context, tenantID, cableID string) ([]models.CableEndpoint, error)
	GetEndpointByShortID(ctx context.Context, tenantID string, shortID models.ShortID) (*models.CableEndpoint, error)
	GetEndpointByPort(ctx context.Context, tenantID, portID string) (*models.CableEndpoint, error)
	List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Cable, int, error)
	SoftDelete(ctx context.Context, tenantID, id string) (bool, error)
}

// PortStore reads port rows and flips their occupancy status.
type PortStore interface {
	Get(ctx context.Context, tenantID, id string) (*models.Port, error)
	SetStatus(ctx context.Context, tenantID, id string, status models.PortStatus) error
}

// Allocator is the ShortID identity service backing endpoint labels.
type Allocator interface {
	Allocate(ctx context.Context, tenantID string, entityType models.EntityType, entityID string) (models.ShortID, error)
	AllocatePinned(ctx context.Context, tenantID string, shortID models.ShortID, entityType models.EntityType, entityID string) (models.ShortID, error)
	Lookup(ctx context.Context, tenantID string, shortID models.ShortID) (*models.AllocationRecord, error)
	Release(ctx context.Context, tenantID string, shortID models.ShortID) error
	Label(shortID models.ShortID) string
}

// PoolBinder claims pre-printed pool labels for cable ends.
type PoolBinder interface {
	Get(ctx context.Context, tenantID string, shortID models.ShortID) (*models.PoolRecord, error)
	Bind(ctx context.Context, tenantID string, shortID models.ShortID, entityType models.EntityType, entityID string) (*models.PoolRecord, error)
}

// GraphConnector maintains cable hyperedges in the connectivity graph.
type GraphConnector interface {
	Connect(ctx context.Context, tenantID, cableID, category string, endpoints []connectivity.EndpointBinding) error
	Disconnect(ctx context.Context, tenantID, cableID string) error
}

// EventSink receives cable and label lifecycle events. Emission is
// best-effort.
type EventSink interface {
	EmitCableConnected(ctx context.Context, tenantID, cableID, category string, endpoints []kafka.CableEventEndpoint) error
	EmitCableDisconnected(ctx context.Context, tenantID, cableID string) error
	EmitLabelBound(ctx context.Context, tenantID string, shortID models.ShortID, label string, entityType models.EntityType, entityID string) error
}

// Service implements the cabling workflows.
type Service struct {
	db        database.DB
	cables    CableStore
	ports     PortStore
	allocator Allocator
	pool      PoolBinder
	graph     GraphConnector
	events    EventSink
	logger    ectologger.Logger
}

// NewService creates a new cabling service
func NewService(
	db database.DB,
	cables CableStore,
	ports PortStore,
	allocator Allocator,
	pool PoolBinder,
	graph GraphConnector,
	events EventSink,
	logger ectologger.Logger,
) *Service {
	return &Service{
		db:        db,
		cables:    cables,
		ports:     ports,
		allocator: allocator,
		pool:      pool,
		graph:     graph,
		events:    events,
		logger:    logger,
	}
}

// validateEndpoints checks the endpoint shape of a create request: at least
// two ends, exactly one A end, no duplicate end types or ports.
func validateEndpoints(endpoints []models.CreateCableEndpointRequest) error {
	if len(endpoints) < 2 {
		return httperror.NewHTTPError(http.StatusBadRequest, "a cable needs at least two endpoints")
	}

	aEnds := 0
	endTypes := map[models.EndType]bool{}
	portIDs := map[string]bool{}
	for _, ep := range endpoints {
		if ep.EndType == "" {
			return httperror.NewHTTPError(http.StatusBadRequest, "endpoint end_type is required")
		}
		if endTypes[ep.EndType] {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "duplicate end type %s", ep.EndType)
		}
		endTypes[ep.EndType] = true
		if ep.EndType == models.EndTypeA {
			aEnds++
		}
		if ep.PortID != nil {
			if portIDs[*ep.PortID] {
				return httperror.NewHTTPErrorf(http.StatusBadRequest, "port %s appears on more than one endpoint", *ep.PortID)
			}
			portIDs[*ep.PortID] = true
		}
		if ep.PinnedShortID != nil && ep.PoolShortID != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "an endpoint cannot carry both a pinned and a pool short id")
		}
	}
	if aEnds != 1 {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "a cable needs exactly one %s end, got %d", models.EndTypeA, aEnds)
	}

	return nil
}

// resolveShortID assigns the endpoint's label: claim a pinned number, bind a
// pre-printed pool label, or allocate fresh.
func (s *Service) resolveShortID(ctx context.Context, tenantID, endpointID string, req models.CreateCableEndpointRequest) (models.ShortID, bool, error) {
	switch {
	case req.PinnedShortID != nil:
		shortID, err := s.allocator.AllocatePinned(ctx, tenantID, *req.PinnedShortID, models.EntityTypeCableEndpoint, endpointID)
		return shortID, false, err
	case req.PoolShortID != nil:
		if _, err := s.pool.Bind(ctx, tenantID, *req.PoolShortID, models.EntityTypeCableEndpoint, endpointID); err != nil {
			return 0, false, err
		}
		return *req.PoolShortID, true, nil
	default:
		shortID, err := s.allocator.Allocate(ctx, tenantID, models.EntityTypeCableEndpoint, endpointID)
		return shortID, false, err
	}
}

// CreateCable creates the cable row, its labelled endpoints and, when at
// least two ends are plugged into ports, the graph hyperedge. Everything
// happens in one transaction: a failed graph connect rolls the rows and the
// label claims back.
func (s *Service) CreateCable(ctx context.Context, tenantID string, req models.CreateCableRequest) (*models.CableResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "cabling.Service.CreateCable")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"endpoints": len(req.Endpoints),
	})

	if err := validateEndpoints(req.Endpoints); err != nil {
		return nil, err
	}

	// Verify ports exist and are not already wired before writing anything.
	for _, ep := range req.Endpoints {
		if ep.PortID == nil {
			continue
		}
		if _, err := s.ports.Get(ctx, tenantID, *ep.PortID); err != nil {
			return nil, err
		}
		existing, err := s.cables.GetEndpointByPort(ctx, tenantID, *ep.PortID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, httperror.NewHTTPErrorf(http.StatusConflict, "port %s is already connected to cable %s", *ep.PortID, existing.CableID)
		}
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	cable := &models.Cable{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Label:     req.Label,
		Category:  req.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.cables.InsertCable(ctx, cable); err != nil {
		return nil, err
	}

	type boundLabel struct {
		shortID    models.ShortID
		endpointID string
	}
	var (
		saved      []models.CableEndpoint
		bindings   []connectivity.EndpointBinding
		poolClaims []boundLabel
	)
	for _, epReq := range req.Endpoints {
		ep := models.CableEndpoint{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			CableID:   cable.ID,
			EndType:   epReq.EndType,
			PortID:    epReq.PortID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		shortID, fromPool, err := s.resolveShortID(ctx, tenantID, ep.ID, epReq)
		if err != nil {
			return nil, err
		}
		ep.ShortID = &shortID
		if fromPool {
			poolClaims = append(poolClaims, boundLabel{shortID: shortID, endpointID: ep.ID})
		}

		if err := s.cables.InsertEndpoint(ctx, &ep); err != nil {
			return nil, err
		}
		saved = append(saved, ep)

		if ep.PortID != nil {
			bindings = append(bindings, connectivity.EndpointBinding{
				PortID:  *ep.PortID,
				Role:    ep.EndType,
				ShortID: shortID,
			})
		}
	}

	connected := len(bindings) >= 2
	if connected {
		if err := s.graph.Connect(ctx, tenantID, cable.ID, cable.Category, bindings); err != nil {
			log.WithError(err).Error("Failed to connect cable in graph, rolling back")
			return nil, err
		}
		for _, b := range bindings {
			if err := s.ports.SetStatus(ctx, tenantID, b.PortID, models.PortStatusOccupied); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit cable creation")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create cable")
	}

	for _, claim := range poolClaims {
		if err := s.events.EmitLabelBound(ctx, tenantID, claim.shortID, s.allocator.Label(claim.shortID), models.EntityTypeCableEndpoint, claim.endpointID); err != nil {
			log.WithError(err).Warn("Label bound but event emission failed")
		}
	}
	if connected {
		eventEndpoints := make([]kafka.CableEventEndpoint, 0, len(bindings))
		for _, b := range bindings {
			eventEndpoints = append(eventEndpoints, kafka.CableEventEndpoint{
				PortID:  b.PortID,
				EndType: string(b.Role),
				ShortID: b.ShortID,
			})
		}
		if err := s.events.EmitCableConnected(ctx, tenantID, cable.ID, cable.Category, eventEndpoints); err != nil {
			log.WithError(err).Warn("Cable connected but event emission failed")
		}
	}

	if connected {
		metrics.RecordCable(tenantID, "connected")
	}
	log.WithFields(map[string]any{"cable_id": cable.ID, "connected": connected}).Info("Created cable")
	return &models.CableResponse{Cable: *cable, Endpoints: saved}, nil
}

// GetCable retrieves a cable with its endpoints.
func (s *Service) GetCable(ctx context.Context, tenantID, id string) (*models.CableResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "cabling.Service.GetCable")
	defer span.End()

	cable, err := s.cables.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	endpoints, err := s.cables.GetEndpoints(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	return &models.CableResponse{Cable: *cable, Endpoints: endpoints}, nil
}

// ListCables lists cables with their endpoints.
func (s *Service) ListCables(ctx context.Context, tenantID string, page, pageSize int) (*models.CableListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "cabling.Service.ListCables")
	defer span.End()

	cables, total, err := s.cables.List(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]models.CableResponse, 0, len(cables))
	for _, c := range cables {
		endpoints, err := s.cables.GetEndpoints(ctx, tenantID, c.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, models.CableResponse{Cable: c, Endpoints: endpoints})
	}

	return &models.CableListResponse{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// DeleteCable retires a cable: the rows are soft-deleted, the hyperedge is
// removed, endpoint labels are released and the freed ports go back to free.
func (s *Service) DeleteCable(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "cabling.Service.DeleteCable")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"cable_id":  id,
	})

	if _, err := s.cables.Get(ctx, tenantID, id); err != nil {
		return err
	}
	endpoints, err := s.cables.GetEndpoints(ctx, tenantID, id)
	if err != nil {
		return err
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	deleted, err := s.cables.SoftDelete(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("cable %s not found", id))
	}

	for _, ep := range endpoints {
		if ep.ShortID != nil {
			if err := s.allocator.Release(ctx, tenantID, *ep.ShortID); err != nil {
				return err
			}
		}
		if ep.PortID != nil {
			if err := s.ports.SetStatus(ctx, tenantID, *ep.PortID, models.PortStatusFree); err != nil {
				return err
			}
		}
	}

	if err := s.graph.Disconnect(ctx, tenantID, id); err != nil {
		log.WithError(err).Error("Failed to disconnect cable in graph, rolling back")
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit cable deletion")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete cable")
	}

	if err := s.events.EmitCableDisconnected(ctx, tenantID, id); err != nil {
		log.WithError(err).Warn("Cable deleted but event emission failed")
	}

	metrics.RecordCable(tenantID, "disconnected")
	log.Info("Deleted cable")
	return nil
}

// scannedEnd is one resolved scan of the intake workflow: an existing port,
// or a fresh pre-printed label when port is nil.
type scannedEnd struct {
	port    *models.Port
	shortID models.ShortID
}

// resolveScan turns a scanned label into an intake endpoint. A label bound
// to a port connects that port; a pool label that was never bound is a fresh
// cable-end label and is claimed during creation. A cancelled pool label is
// permanently retired and rejected.
func (s *Service) resolveScan(ctx context.Context, tenantID, scan string) (*scannedEnd, error) {
	shortID, err := models.ParseShortID(scan)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid scan %q: %v", scan, err)
	}

	record, err := s.allocator.Lookup(ctx, tenantID, shortID)
	if err == nil {
		if record.EntityType != models.EntityTypePort {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "label %s belongs to a %s, not a port", s.allocator.Label(shortID), record.EntityType)
		}
		port, err := s.ports.Get(ctx, tenantID, record.EntityID)
		if err != nil {
			return nil, err
		}
		return &scannedEnd{port: port, shortID: shortID}, nil
	}
	if !identity.IsNotFound(err) {
		return nil, err
	}

	pool, poolErr := s.pool.Get(ctx, tenantID, shortID)
	if poolErr != nil {
		if identity.IsNotFound(poolErr) {
			return nil, err
		}
		return nil, poolErr
	}
	if pool.Status == models.PoolStatusCancelled {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "label %s is cancelled and cannot be reused", s.allocator.Label(shortID))
	}
	return &scannedEnd{shortID: shortID}, nil
}

// ScanIntake is the handheld-scanner workflow: two labels are scanned and
// joined with a fresh point-to-point cable. A scan may be a port label or an
// unbound pre-printed label; the latter becomes the new endpoint's ShortID,
// left unplugged until the port side is digitized.
func (s *Service) ScanIntake(ctx context.Context, tenantID string, req models.ScanIntakeRequest) (*models.CableResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "cabling.Service.ScanIntake")
	defer span.End()

	endA, err := s.resolveScan(ctx, tenantID, req.ScanA)
	if err != nil {
		return nil, err
	}
	endB, err := s.resolveScan(ctx, tenantID, req.ScanB)
	if err != nil {
		return nil, err
	}
	if endA.port != nil && endB.port != nil && endA.port.ID == endB.port.ID {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "both scans resolve to the same port")
	}
	if endA.port == nil && endB.port == nil && endA.shortID == endB.shortID {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "both scans are the same label")
	}

	toRequest := func(end *scannedEnd, endType models.EndType) models.CreateCableEndpointRequest {
		ep := models.CreateCableEndpointRequest{EndType: endType}
		if end.port != nil {
			ep.PortID = &end.port.ID
		} else {
			shortID := end.shortID
			ep.PoolShortID = &shortID
		}
		return ep
	}

	return s.CreateCable(ctx, tenantID, models.CreateCableRequest{
		Label:    req.Label,
		Category: req.Category,
		Endpoints: []models.CreateCableEndpointRequest{
			toRequest(endA, models.EndTypeA),
			toRequest(endB, models.EndType("B")),
		},
	})
}
