// Package assets orchestrates the lifecycle of labelled physical assets:
// rooms, cabinets, panels and ports. Every create allocates a ShortID (or
// claims a pinned one), every delete releases it, and port changes are
// mirrored into the connectivity graph.
package assets

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

// RoomStore persists room rows.
type RoomStore interface {
	Insert(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, tenantID, id string) (*models.Room, error)
	List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Room, int, error)
	Update(ctx context.Context, tenantID, id string, req models.UpdateRoomRequest) (*models.Room, error)
	SoftDelete(ctx context.Context, tenantID, id string) (bool, error)
}

// CabinetStore persists cabinet rows.
type CabinetStore interface {
	Insert(ctx context.Context, cabinet *models.Cabinet) error
	Get(ctx context.Context, tenantID, id string) (*models.Cabinet, error)
	List(ctx context.Context, tenantID string, roomID *string, page, pageSize int) ([]models.Cabinet, int, error)
	CountByRoom(ctx context.Context, tenantID, roomID string) (int, error)
	Update(ctx context.Context, tenantID, id string, req models.UpdateCabinetRequest) (*models.Cabinet, error)
	SoftDelete(ctx context.Context, tenantID, id string) (bool, error)
}

// PanelStore persists panel rows.
type PanelStore interface {
	Insert(ctx context.Context, panel *models.Panel) error
	Get(ctx context.Context, tenantID, id string) (*models.Panel, error)
	List(ctx context.Context, tenantID string, cabinetID *string, page, pageSize int) ([]models.Panel, int, error)
	CountByCabinet(ctx context.Context, tenantID, cabinetID string) (int, error)
	Update(ctx context.Context, tenantID, id string, req models.UpdatePanelRequest) (*models.Panel, error)
	SoftDelete(ctx context.Context, tenantID, id string) (bool, error)
}

// PortStore persists port rows.
type PortStore interface {
	Insert(ctx context.Context, port *models.Port) error
	Get(ctx context.Context, tenantID, id string) (*models.Port, error)
	ListByPanel(ctx context.Context, tenantID, panelID string) ([]models.Port, error)
	Update(ctx context.Context, tenantID, id string, req models.UpdatePortRequest) (*models.Port, error)
	CountByPanel(ctx context.Context, tenantID, panelID string) (int, error)
	SoftDelete(ctx context.Context, tenantID, id string) (bool, error)
}

// EndpointStore answers whether a port is wired to a cable end.
type EndpointStore interface {
	GetEndpointByPort(ctx context.Context, tenantID, portID string) (*models.CableEndpoint, error)
}

// Allocator is the ShortID identity service backing asset creation.
type Allocator interface {
	Allocate(ctx context.Context, tenantID string, entityType models.EntityType, entityID string) (models.ShortID, error)
	AllocatePinned(ctx context.Context, tenantID string, shortID models.ShortID, entityType models.EntityType, entityID string) (models.ShortID, error)
	Release(ctx context.Context, tenantID string, shortID models.ShortID) error
	Label(shortID models.ShortID) string
}

// GraphSync mirrors port rows into the connectivity graph.
type GraphSync interface {
	SyncPort(ctx context.Context, tenantID string, info models.PortNodeInfo) error
	SyncPanel(ctx context.Context, tenantID, panelID, panelName, deviceName string) error
	RemovePort(ctx context.Context, tenantID, portID string) error
}

// EventSink receives asset lifecycle events. Emission is best-effort.
type EventSink interface {
	EmitAssetCreated(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, shortID models.ShortID, label string, data any) error
	EmitAssetUpdated(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, data any) error
	EmitAssetDeleted(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, shortID models.ShortID) error
}

// Service implements the asset lifecycle.
type Service struct {
	db        database.DB
	rooms     RoomStore
	cabinets  CabinetStore
	panels    PanelStore
	ports     PortStore
	endpoints EndpointStore
	allocator Allocator
	graph     GraphSync
	events    EventSink
	logger    ectologger.Logger
}

// NewService creates a new asset service
func NewService(
	db database.DB,
	rooms RoomStore,
	cabinets CabinetStore,
	panels PanelStore,
	ports PortStore,
	endpoints EndpointStore,
	allocator Allocator,
	graph GraphSync,
	events EventSink,
	logger ectologger.Logger,
) *Service {
	return &Service{
		db:        db,
		rooms:     rooms,
		cabinets:  cabinets,
		panels:    panels,
		ports:     ports,
		endpoints: endpoints,
		allocator: allocator,
		graph:     graph,
		events:    events,
		logger:    logger,
	}
}

// allocate assigns a ShortID for a new asset, honoring a pinned label when
// the request carries one.
func (s *Service) allocate(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, pinned *models.ShortID) (models.ShortID, error) {
	if pinned != nil {
		return s.allocator.AllocatePinned(ctx, tenantID, *pinned, entityType, entityID)
	}
	return s.allocator.Allocate(ctx, tenantID, entityType, entityID)
}
