package assets

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
)

// In-memory stores backing the service under test. The fake DB hands out
// no-op transactions; atomicity is exercised in the integration suite.

type fakeTx struct{}

func (fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error { return nil }
func (fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (fakeTx) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, nil
}
func (fakeTx) IsOpen() bool                       { return true }
func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeDB struct{}

func (fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (fakeDB) GetContext(ctx context.Context, dest any, query string, args ...any) error { return nil }
func (fakeDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (fakeDB) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, nil
}
func (fakeDB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) { return nil, nil }
func (fakeDB) Ping() error                                                         { return nil }
func (fakeDB) PingContext(ctx context.Context) error                               { return nil }
func (fakeDB) SetMaxOpenConns(n int)                                               {}
func (fakeDB) SetMaxIdleConns(n int)                                               {}
func (fakeDB) SetConnMaxLifetime(d time.Duration)                                  {}
func (fakeDB) Close() error                                                        { return nil }
func (fakeDB) Unwrap() *sqlx.DB                                                    { return nil }
func (fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	return ctx, fakeTx{}, nil
}

type memRooms struct {
	rooms map[string]*models.Room
}

func newMemRooms() *memRooms { return &memRooms{rooms: make(map[string]*models.Room)} }

func (m *memRooms) Insert(ctx context.Context, room *models.Room) error {
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

func (m *memRooms) Get(ctx context.Context, tenantID, id string) (*models.Room, error) {
	r, ok := m.rooms[id]
	if !ok || r.TenantID != tenantID || r.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "room %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *memRooms) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Room, int, error) {
	var out []models.Room
	for _, r := range m.rooms {
		if r.TenantID == tenantID && r.DeletedAt == nil {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *memRooms) Update(ctx context.Context, tenantID, id string, req models.UpdateRoomRequest) (*models.Room, error) {
	r, err := m.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		r.Name = *req.Name
	}
	if req.Metadata != nil {
		r.Metadata = *req.Metadata
	}
	m.rooms[id] = r
	cp := *r
	return &cp, nil
}

func (m *memRooms) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	r, ok := m.rooms[id]
	if !ok || r.TenantID != tenantID || r.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	r.DeletedAt = &now
	return true, nil
}

type memCabinets struct {
	cabinets map[string]*models.Cabinet
}

func newMemCabinets() *memCabinets { return &memCabinets{cabinets: make(map[string]*models.Cabinet)} }

func (m *memCabinets) Insert(ctx context.Context, cabinet *models.Cabinet) error {
	cp := *cabinet
	m.cabinets[cabinet.ID] = &cp
	return nil
}

func (m *memCabinets) Get(ctx context.Context, tenantID, id string) (*models.Cabinet, error) {
	c, ok := m.cabinets[id]
	if !ok || c.TenantID != tenantID || c.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "cabinet %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (m *memCabinets) List(ctx context.Context, tenantID string, roomID *string, page, pageSize int) ([]models.Cabinet, int, error) {
	var out []models.Cabinet
	for _, c := range m.cabinets {
		if c.TenantID != tenantID || c.DeletedAt != nil {
			continue
		}
		if roomID != nil && c.RoomID != *roomID {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *memCabinets) CountByRoom(ctx context.Context, tenantID, roomID string) (int, error) {
	count := 0
	for _, c := range m.cabinets {
		if c.TenantID == tenantID && c.RoomID == roomID && c.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memCabinets) Update(ctx context.Context, tenantID, id string, req models.UpdateCabinetRequest) (*models.Cabinet, error) {
	c, err := m.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Metadata != nil {
		c.Metadata = *req.Metadata
	}
	m.cabinets[id] = c
	cp := *c
	return &cp, nil
}

func (m *memCabinets) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	c, ok := m.cabinets[id]
	if !ok || c.TenantID != tenantID || c.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	return true, nil
}

type memPanels struct {
	panels map[string]*models.Panel
}

func newMemPanels() *memPanels { return &memPanels{panels: make(map[string]*models.Panel)} }

func (m *memPanels) Insert(ctx context.Context, panel *models.Panel) error {
	cp := *panel
	m.panels[panel.ID] = &cp
	return nil
}

func (m *memPanels) Get(ctx context.Context, tenantID, id string) (*models.Panel, error) {
	p, ok := m.panels[id]
	if !ok || p.TenantID != tenantID || p.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "panel %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memPanels) List(ctx context.Context, tenantID string, cabinetID *string, page, pageSize int) ([]models.Panel, int, error) {
	var out []models.Panel
	for _, p := range m.panels {
		if p.TenantID != tenantID || p.DeletedAt != nil {
			continue
		}
		if cabinetID != nil && p.CabinetID != *cabinetID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *memPanels) CountByCabinet(ctx context.Context, tenantID, cabinetID string) (int, error) {
	count := 0
	for _, p := range m.panels {
		if p.TenantID == tenantID && p.CabinetID == cabinetID && p.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memPanels) Update(ctx context.Context, tenantID, id string, req models.UpdatePanelRequest) (*models.Panel, error) {
	p, err := m.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.PanelType != nil {
		p.PanelType = *req.PanelType
	}
	if req.DeviceName != nil {
		p.DeviceName = *req.DeviceName
	}
	if req.Metadata != nil {
		p.Metadata = *req.Metadata
	}
	m.panels[id] = p
	cp := *p
	return &cp, nil
}

func (m *memPanels) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	p, ok := m.panels[id]
	if !ok || p.TenantID != tenantID || p.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	return true, nil
}

type memPorts struct {
	ports map[string]*models.Port
}

func newMemPorts() *memPorts { return &memPorts{ports: make(map[string]*models.Port)} }

func (m *memPorts) Insert(ctx context.Context, port *models.Port) error {
	cp := *port
	m.ports[port.ID] = &cp
	return nil
}

func (m *memPorts) Get(ctx context.Context, tenantID, id string) (*models.Port, error) {
	p, ok := m.ports[id]
	if !ok || p.TenantID != tenantID || p.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "port %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memPorts) ListByPanel(ctx context.Context, tenantID, panelID string) ([]models.Port, error) {
	var out []models.Port
	for _, p := range m.ports {
		if p.TenantID == tenantID && p.PanelID == panelID && p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memPorts) Update(ctx context.Context, tenantID, id string, req models.UpdatePortRequest) (*models.Port, error) {
	p, err := m.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	m.ports[id] = p
	cp := *p
	return &cp, nil
}

func (m *memPorts) CountByPanel(ctx context.Context, tenantID, panelID string) (int, error) {
	count := 0
	for _, p := range m.ports {
		if p.TenantID == tenantID && p.PanelID == panelID && p.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memPorts) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	p, ok := m.ports[id]
	if !ok || p.TenantID != tenantID || p.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	return true, nil
}

type memEndpoints struct {
	byPort map[string]*models.CableEndpoint
}

func newMemEndpoints() *memEndpoints {
	return &memEndpoints{byPort: make(map[string]*models.CableEndpoint)}
}

func (m *memEndpoints) GetEndpointByPort(ctx context.Context, tenantID, portID string) (*models.CableEndpoint, error) {
	ep, ok := m.byPort[portID]
	if !ok || ep.TenantID != tenantID {
		return nil, nil
	}
	cp := *ep
	return &cp, nil
}

type fakeAllocator struct {
	next      models.ShortID
	allocated map[models.ShortID]models.AllocationRecord
	released  []models.ShortID
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{next: 1, allocated: make(map[models.ShortID]models.AllocationRecord)}
}

func (a *fakeAllocator) Allocate(ctx context.Context, tenantID string, entityType models.EntityType, entityID string) (models.ShortID, error) {
	id := a.next
	a.next++
	a.allocated[id] = models.AllocationRecord{TenantID: tenantID, ShortID: id, EntityType: entityType, EntityID: entityID}
	return id, nil
}

func (a *fakeAllocator) AllocatePinned(ctx context.Context, tenantID string, shortID models.ShortID, entityType models.EntityType, entityID string) (models.ShortID, error) {
	if _, taken := a.allocated[shortID]; taken {
		return 0, httperror.NewHTTPErrorf(http.StatusConflict, "short id %d is already allocated", shortID)
	}
	a.allocated[shortID] = models.AllocationRecord{TenantID: tenantID, ShortID: shortID, EntityType: entityType, EntityID: entityID}
	if shortID >= a.next {
		a.next = shortID + 1
	}
	return shortID, nil
}

func (a *fakeAllocator) Release(ctx context.Context, tenantID string, shortID models.ShortID) error {
	delete(a.allocated, shortID)
	a.released = append(a.released, shortID)
	return nil
}

func (a *fakeAllocator) Label(shortID models.ShortID) string {
	return models.FormatShortID(shortID, "E", 5)
}

type fakeGraph struct {
	synced       map[string]models.PortNodeInfo
	removed      []string
	panelSyncs   []string
	failSyncPort error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{synced: make(map[string]models.PortNodeInfo)}
}

func (g *fakeGraph) SyncPort(ctx context.Context, tenantID string, info models.PortNodeInfo) error {
	if g.failSyncPort != nil {
		return g.failSyncPort
	}
	g.synced[info.PortID] = info
	return nil
}

func (g *fakeGraph) SyncPanel(ctx context.Context, tenantID, panelID, panelName, deviceName string) error {
	g.panelSyncs = append(g.panelSyncs, fmt.Sprintf("%s:%s:%s", panelID, panelName, deviceName))
	return nil
}

func (g *fakeGraph) RemovePort(ctx context.Context, tenantID, portID string) error {
	delete(g.synced, portID)
	g.removed = append(g.removed, portID)
	return nil
}

type fakeEvents struct {
	emitted []string
}

func (e *fakeEvents) EmitAssetCreated(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, shortID models.ShortID, label string, data any) error {
	e.emitted = append(e.emitted, fmt.Sprintf("asset.created:%s:%s", entityType, entityID))
	return nil
}

func (e *fakeEvents) EmitAssetUpdated(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, data any) error {
	e.emitted = append(e.emitted, fmt.Sprintf("asset.updated:%s:%s", entityType, entityID))
	return nil
}

func (e *fakeEvents) EmitAssetDeleted(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, shortID models.ShortID) error {
	e.emitted = append(e.emitted, fmt.Sprintf("asset.deleted:%s:%s", entityType, entityID))
	return nil
}

type fixture struct {
	service   *Service
	rooms     *memRooms
	cabinets  *memCabinets
	panels    *memPanels
	ports     *memPorts
	endpoints *memEndpoints
	allocator *fakeAllocator
	graph     *fakeGraph
	events    *fakeEvents
}

func newFixture() *fixture {
	f := &fixture{
		rooms:     newMemRooms(),
		cabinets:  newMemCabinets(),
		panels:    newMemPanels(),
		ports:     newMemPorts(),
		endpoints: newMemEndpoints(),
		allocator: newFakeAllocator(),
		graph:     newFakeGraph(),
		events:    &fakeEvents{},
	}
	f.service = NewService(
		fakeDB{},
		f.rooms,
		f.cabinets,
		f.panels,
		f.ports,
		f.endpoints,
		f.allocator,
		f.graph,
		f.events,
		logging.NewNopLogger(),
	)
	return f
}
