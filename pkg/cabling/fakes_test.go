package cabling

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/fern/pkg/connectivity"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/kafka"
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

type memCables struct {
	cables    map[string]*models.Cable
	endpoints []*models.CableEndpoint
}

func newMemCables() *memCables {
	return &memCables{cables: make(map[string]*models.Cable)}
}

func (m *memCables) InsertCable(ctx context.Context, cable *models.Cable) error {
	cp := *cable
	m.cables[cable.ID] = &cp
	return nil
}

func (m *memCables) InsertEndpoint(ctx context.Context, ep *models.CableEndpoint) error {
	cp := *ep
	m.endpoints = append(m.endpoints, &cp)
	return nil
}

func (m *memCables) Get(ctx context.Context, tenantID, id string) (*models.Cable, error) {
	c, ok := m.cables[id]
	if !ok || c.TenantID != tenantID || c.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "cable %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (m *memCables) GetEndpoints(ctx context.Context, tenantID, cableID string) ([]models.CableEndpoint, error) {
	var out []models.CableEndpoint
	for _, ep := range m.endpoints {
		if ep.TenantID == tenantID && ep.CableID == cableID {
			out = append(out, *ep)
		}
	}
	return out, nil
}

func (m *memCables) GetEndpointByShortID(ctx context.Context, tenantID string, shortID models.ShortID) (*models.CableEndpoint, error) {
	for _, ep := range m.endpoints {
		if ep.TenantID == tenantID && ep.ShortID != nil && *ep.ShortID == shortID && m.cableLive(ep.CableID) {
			cp := *ep
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCables) GetEndpointByPort(ctx context.Context, tenantID, portID string) (*models.CableEndpoint, error) {
	for _, ep := range m.endpoints {
		if ep.TenantID == tenantID && ep.PortID != nil && *ep.PortID == portID && m.cableLive(ep.CableID) {
			cp := *ep
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCables) cableLive(cableID string) bool {
	c, ok := m.cables[cableID]
	return ok && c.DeletedAt == nil
}

func (m *memCables) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Cable, int, error) {
	var out []models.Cable
	for _, c := range m.cables {
		if c.TenantID == tenantID && c.DeletedAt == nil {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (m *memCables) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	c, ok := m.cables[id]
	if !ok || c.TenantID != tenantID || c.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	for _, ep := range m.endpoints {
		if ep.CableID == id {
			ep.PortID = nil
		}
	}
	return true, nil
}

type memPorts struct {
	ports map[string]*models.Port
}

func newMemPorts() *memPorts { return &memPorts{ports: make(map[string]*models.Port)} }

func (m *memPorts) add(tenantID, id string, shortID models.ShortID) *models.Port {
	p := &models.Port{
		ID:       id,
		TenantID: tenantID,
		PanelID:  "panel-1",
		Name:     id,
		Status:   models.PortStatusFree,
		ShortID:  shortID,
	}
	m.ports[id] = p
	return p
}

func (m *memPorts) Get(ctx context.Context, tenantID, id string) (*models.Port, error) {
	p, ok := m.ports[id]
	if !ok || p.TenantID != tenantID {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "port %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memPorts) SetStatus(ctx context.Context, tenantID, id string, status models.PortStatus) error {
	p, ok := m.ports[id]
	if !ok || p.TenantID != tenantID {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "port %s not found", id)
	}
	p.Status = status
	return nil
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

func (a *fakeAllocator) Lookup(ctx context.Context, tenantID string, shortID models.ShortID) (*models.AllocationRecord, error) {
	rec, ok := a.allocated[shortID]
	if !ok || rec.TenantID != tenantID {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "short id %d not found", shortID)
	}
	cp := rec
	return &cp, nil
}

func (a *fakeAllocator) Release(ctx context.Context, tenantID string, shortID models.ShortID) error {
	delete(a.allocated, shortID)
	a.released = append(a.released, shortID)
	return nil
}

func (a *fakeAllocator) Label(shortID models.ShortID) string {
	return models.FormatShortID(shortID, "E", 5)
}

type fakePool struct {
	records map[models.ShortID]*models.PoolRecord
}

func newFakePool() *fakePool {
	return &fakePool{records: make(map[models.ShortID]*models.PoolRecord)}
}

// seed registers a pre-printed label in the given status.
func (p *fakePool) seed(tenantID string, shortID models.ShortID, status models.PoolStatus) {
	p.records[shortID] = &models.PoolRecord{TenantID: tenantID, ShortID: shortID, Status: status}
}

func (p *fakePool) Get(ctx context.Context, tenantID string, shortID models.ShortID) (*models.PoolRecord, error) {
	rec, ok := p.records[shortID]
	if !ok || rec.TenantID != tenantID {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "short id %d not found", shortID)
	}
	cp := *rec
	return &cp, nil
}

func (p *fakePool) Bind(ctx context.Context, tenantID string, shortID models.ShortID, entityType models.EntityType, entityID string) (*models.PoolRecord, error) {
	rec, ok := p.records[shortID]
	if !ok {
		rec = &models.PoolRecord{TenantID: tenantID, ShortID: shortID, Status: models.PoolStatusGenerated}
		p.records[shortID] = rec
	}
	switch rec.Status {
	case models.PoolStatusBound:
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "short id %d is already bound", shortID)
	case models.PoolStatusCancelled:
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "short id %d is cancelled", shortID)
	}
	now := time.Now().UTC()
	rec.Status = models.PoolStatusBound
	rec.EntityType = &entityType
	rec.EntityID = &entityID
	rec.BoundAt = &now
	cp := *rec
	return &cp, nil
}

type fakeGraph struct {
	connected    map[string][]connectivity.EndpointBinding
	disconnected []string
	failConnect  error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{connected: make(map[string][]connectivity.EndpointBinding)}
}

func (g *fakeGraph) Connect(ctx context.Context, tenantID, cableID, category string, endpoints []connectivity.EndpointBinding) error {
	if g.failConnect != nil {
		return g.failConnect
	}
	g.connected[cableID] = endpoints
	return nil
}

func (g *fakeGraph) Disconnect(ctx context.Context, tenantID, cableID string) error {
	delete(g.connected, cableID)
	g.disconnected = append(g.disconnected, cableID)
	return nil
}

type fakeEvents struct {
	emitted []string
}

func (e *fakeEvents) EmitCableConnected(ctx context.Context, tenantID, cableID, category string, endpoints []kafka.CableEventEndpoint) error {
	e.emitted = append(e.emitted, "cable.connected:"+cableID)
	return nil
}

func (e *fakeEvents) EmitCableDisconnected(ctx context.Context, tenantID, cableID string) error {
	e.emitted = append(e.emitted, "cable.disconnected:"+cableID)
	return nil
}

func (e *fakeEvents) EmitLabelBound(ctx context.Context, tenantID string, shortID models.ShortID, label string, entityType models.EntityType, entityID string) error {
	e.emitted = append(e.emitted, fmt.Sprintf("label.bound:%d", shortID))
	return nil
}

type fixture struct {
	service   *Service
	cables    *memCables
	ports     *memPorts
	allocator *fakeAllocator
	pool      *fakePool
	graph     *fakeGraph
	events    *fakeEvents
}

func newFixture() *fixture {
	f := &fixture{
		cables:    newMemCables(),
		ports:     newMemPorts(),
		allocator: newFakeAllocator(),
		pool:      newFakePool(),
		graph:     newFakeGraph(),
		events:    &fakeEvents{},
	}
	f.service = NewService(
		fakeDB{},
		f.cables,
		f.ports,
		f.allocator,
		f.pool,
		f.graph,
		f.events,
		logging.NewNopLogger(),
	)
	return f
}
