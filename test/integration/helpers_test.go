package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/assets"
	"github.com/Ramsey-B/fern/pkg/cabling"
	"github.com/Ramsey-B/fern/pkg/connectivity"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	cabinetroute "github.com/Ramsey-B/fern/pkg/routes/cabinet"
	cableroute "github.com/Ramsey-B/fern/pkg/routes/cable"
	panelroute "github.com/Ramsey-B/fern/pkg/routes/panel"
	poolroute "github.com/Ramsey-B/fern/pkg/routes/pool"
	portroute "github.com/Ramsey-B/fern/pkg/routes/port"
	printtaskroute "github.com/Ramsey-B/fern/pkg/routes/printtask"
	roomroute "github.com/Ramsey-B/fern/pkg/routes/room"
	shortidroute "github.com/Ramsey-B/fern/pkg/routes/shortid"
)

// The suite drives the real handlers, services and resolver over in-memory
// stores and an in-memory graph, so a scenario exercises the same code path
// a deployed instance runs minus the drivers.

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

// identity stores

type memSequence struct {
	mu   sync.Mutex
	next map[string]int64
}

func (s *memSequence) Next(ctx context.Context, tenantID string) (models.ShortID, error) {
	return s.NextBlock(ctx, tenantID, 1)
}

func (s *memSequence) NextBlock(ctx context.Context, tenantID string, count int) (models.ShortID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.next[tenantID]
	if !ok {
		v = 1
	}
	s.next[tenantID] = v + int64(count)
	return models.ShortID(v), nil
}

func (s *memSequence) Bump(ctx context.Context, tenantID string, floor models.ShortID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.next[tenantID]
	if !ok {
		v = 1
	}
	if v <= int64(floor) {
		s.next[tenantID] = int64(floor) + 1
	}
	return nil
}

func (s *memSequence) Current(ctx context.Context, tenantID string) (models.ShortID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.next[tenantID]; ok {
		return models.ShortID(v), nil
	}
	return 1, nil
}

type memAllocations struct {
	mu   sync.Mutex
	recs map[string]map[models.ShortID]models.AllocationRecord
}

func (a *memAllocations) tenant(tenantID string) map[models.ShortID]models.AllocationRecord {
	t, ok := a.recs[tenantID]
	if !ok {
		t = make(map[models.ShortID]models.AllocationRecord)
		a.recs[tenantID] = t
	}
	return t
}

func (a *memAllocations) Insert(ctx context.Context, rec models.AllocationRecord) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.tenant(rec.TenantID)
	if _, taken := t[rec.ShortID]; taken {
		return false, nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	t[rec.ShortID] = rec
	return true, nil
}

func (a *memAllocations) Get(ctx context.Context, tenantID string, shortID models.ShortID) (*models.AllocationRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.recs[tenantID][shortID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (a *memAllocations) GetByEntity(ctx context.Context, tenantID, entityType, entityID string) (*models.AllocationRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, rec := range a.recs[tenantID] {
		if string(rec.EntityType) == entityType && rec.EntityID == entityID {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

func (a *memAllocations) Delete(ctx context.Context, tenantID string, shortID models.ShortID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.recs[tenantID][shortID]; !ok {
		return false, nil
	}
	delete(a.recs[tenantID], shortID)
	return true, nil
}

type memPool struct {
	mu   sync.Mutex
	recs map[string]map[models.ShortID]models.PoolRecord
}

func (p *memPool) tenant(tenantID string) map[models.ShortID]models.PoolRecord {
	t, ok := p.recs[tenantID]
	if !ok {
		t = make(map[models.ShortID]models.PoolRecord)
		p.recs[tenantID] = t
	}
	return t
}

func (p *memPool) InsertBatch(ctx context.Context, records []models.PoolRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rec := range records {
		p.tenant(rec.TenantID)[rec.ShortID] = rec
	}
	return nil
}

func (p *memPool) Get(ctx context.Context, tenantID string, shortID models.ShortID) (*models.PoolRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.recs[tenantID][shortID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (p *memPool) ListByTask(ctx context.Context, tenantID, printTaskID string) ([]models.PoolRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PoolRecord
	for _, rec := range p.recs[tenantID] {
		if rec.PrintTaskID != nil && *rec.PrintTaskID == printTaskID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortID < out[j].ShortID })
	return out, nil
}

func (p *memPool) MarkPrintedByTask(ctx context.Context, tenantID, printTaskID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for id, rec := range p.recs[tenantID] {
		if rec.PrintTaskID != nil && *rec.PrintTaskID == printTaskID && rec.Status == models.PoolStatusGenerated {
			rec.Status = models.PoolStatusPrinted
			rec.UpdatedAt = time.Now().UTC()
			p.recs[tenantID][id] = rec
			n++
		}
	}
	return n, nil
}

func (p *memPool) Bind(ctx context.Context, tenantID string, shortID models.ShortID, entityType, entityID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.recs[tenantID][shortID]
	if !ok || (rec.Status != models.PoolStatusGenerated && rec.Status != models.PoolStatusPrinted) {
		return false, nil
	}
	now := time.Now().UTC()
	et := models.EntityType(entityType)
	rec.Status = models.PoolStatusBound
	rec.EntityType = &et
	rec.EntityID = &entityID
	rec.BoundAt = &now
	rec.UpdatedAt = now
	p.recs[tenantID][shortID] = rec
	return true, nil
}

func (p *memPool) Cancel(ctx context.Context, tenantID string, shortID models.ShortID, reason string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.recs[tenantID][shortID]
	if !ok || (rec.Status != models.PoolStatusGenerated && rec.Status != models.PoolStatusPrinted) {
		return false, nil
	}
	rec.Status = models.PoolStatusCancelled
	rec.CancelledReason = &reason
	rec.UpdatedAt = time.Now().UTC()
	p.recs[tenantID][shortID] = rec
	return true, nil
}

type memTasks struct {
	mu    sync.Mutex
	seq   int
	tasks map[string]map[string]models.PrintTask
}

func (m *memTasks) Create(ctx context.Context, tenantID string, req models.CreatePrintTaskRequest) (*models.PrintTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	task := models.PrintTask{
		ID:         fmt.Sprintf("task-%d", m.seq),
		TenantID:   tenantID,
		Name:       req.Name,
		EntityType: req.EntityType,
		Count:      req.Count,
		Status:     models.PrintTaskStatusPending,
		CreatedBy:  req.CreatedBy,
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
	}
	t, ok := m.tasks[tenantID]
	if !ok {
		t = make(map[string]models.PrintTask)
		m.tasks[tenantID] = t
	}
	t[task.ID] = task
	return &task, nil
}

func (m *memTasks) Get(ctx context.Context, tenantID, id string) (*models.PrintTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[tenantID][id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (m *memTasks) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.PrintTask, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PrintTask
	for _, task := range m.tasks[tenantID] {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memTasks) UpdateStatus(ctx context.Context, tenantID, id string, to models.PrintTaskStatus, from ...models.PrintTaskStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[tenantID][id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if task.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	task.Status = to
	if to == models.PrintTaskStatusCompleted {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}
	m.tasks[tenantID][id] = task
	return true, nil
}

// asset stores

type memRooms struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func (m *memRooms) Insert(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

func (m *memRooms) Get(ctx context.Context, tenantID, id string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok || room.TenantID != tenantID || room.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "room %s not found", id)
	}
	cp := *room
	return &cp, nil
}

func (m *memRooms) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Room, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Room
	for _, room := range m.rooms {
		if room.TenantID == tenantID && room.DeletedAt == nil {
			out = append(out, *room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortID < out[j].ShortID })
	return out, len(out), nil
}

func (m *memRooms) Update(ctx context.Context, tenantID, id string, req models.UpdateRoomRequest) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok || room.TenantID != tenantID || room.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "room %s not found", id)
	}
	if req.Name != nil {
		room.Name = *req.Name
	}
	if req.Metadata != nil {
		room.Metadata = *req.Metadata
	}
	room.UpdatedAt = time.Now().UTC()
	cp := *room
	return &cp, nil
}

func (m *memRooms) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok || room.TenantID != tenantID || room.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	room.DeletedAt = &now
	return true, nil
}

type memCabinets struct {
	mu       sync.Mutex
	cabinets map[string]*models.Cabinet
}

func (m *memCabinets) Insert(ctx context.Context, cabinet *models.Cabinet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	cabinet.CreatedAt = now
	cabinet.UpdatedAt = now
	cp := *cabinet
	m.cabinets[cabinet.ID] = &cp
	return nil
}

func (m *memCabinets) Get(ctx context.Context, tenantID, id string) (*models.Cabinet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cab, ok := m.cabinets[id]
	if !ok || cab.TenantID != tenantID || cab.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "cabinet %s not found", id)
	}
	cp := *cab
	return &cp, nil
}

func (m *memCabinets) List(ctx context.Context, tenantID string, roomID *string, page, pageSize int) ([]models.Cabinet, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Cabinet
	for _, cab := range m.cabinets {
		if cab.TenantID != tenantID || cab.DeletedAt != nil {
			continue
		}
		if roomID != nil && cab.RoomID != *roomID {
			continue
		}
		out = append(out, *cab)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortID < out[j].ShortID })
	return out, len(out), nil
}

func (m *memCabinets) CountByRoom(ctx context.Context, tenantID, roomID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, cab := range m.cabinets {
		if cab.TenantID == tenantID && cab.RoomID == roomID && cab.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (m *memCabinets) Update(ctx context.Context, tenantID, id string, req models.UpdateCabinetRequest) (*models.Cabinet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cab, ok := m.cabinets[id]
	if !ok || cab.TenantID != tenantID || cab.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "cabinet %s not found", id)
	}
	if req.Name != nil {
		cab.Name = *req.Name
	}
	if req.Metadata != nil {
		cab.Metadata = *req.Metadata
	}
	cab.UpdatedAt = time.Now().UTC()
	cp := *cab
	return &cp, nil
}

func (m *memCabinets) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cab, ok := m.cabinets[id]
	if !ok || cab.TenantID != tenantID || cab.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	cab.DeletedAt = &now
	return true, nil
}

type memPanels struct {
	mu     sync.Mutex
	panels map[string]*models.Panel
}

func (m *memPanels) Insert(ctx context.Context, panel *models.Panel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	panel.CreatedAt = now
	panel.UpdatedAt = now
	cp := *panel
	m.panels[panel.ID] = &cp
	return nil
}

func (m *memPanels) Get(ctx context.Context, tenantID, id string) (*models.Panel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	panel, ok := m.panels[id]
	if !ok || panel.TenantID != tenantID || panel.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "panel %s not found", id)
	}
	cp := *panel
	return &cp, nil
}

func (m *memPanels) List(ctx context.Context, tenantID string, cabinetID *string, page, pageSize int) ([]models.Panel, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Panel
	for _, panel := range m.panels {
		if panel.TenantID != tenantID || panel.DeletedAt != nil {
			continue
		}
		if cabinetID != nil && panel.CabinetID != *cabinetID {
			continue
		}
		out = append(out, *panel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortID < out[j].ShortID })
	return out, len(out), nil
}

func (m *memPanels) CountByCabinet(ctx context.Context, tenantID, cabinetID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, panel := range m.panels {
		if panel.TenantID == tenantID && panel.CabinetID == cabinetID && panel.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (m *memPanels) Update(ctx context.Context, tenantID, id string, req models.UpdatePanelRequest) (*models.Panel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	panel, ok := m.panels[id]
	if !ok || panel.TenantID != tenantID || panel.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "panel %s not found", id)
	}
	if req.Name != nil {
		panel.Name = *req.Name
	}
	if req.PanelType != nil {
		panel.PanelType = *req.PanelType
	}
	if req.DeviceName != nil {
		panel.DeviceName = *req.DeviceName
	}
	if req.Metadata != nil {
		panel.Metadata = *req.Metadata
	}
	panel.UpdatedAt = time.Now().UTC()
	cp := *panel
	return &cp, nil
}

func (m *memPanels) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	panel, ok := m.panels[id]
	if !ok || panel.TenantID != tenantID || panel.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	panel.DeletedAt = &now
	return true, nil
}

type memPorts struct {
	mu    sync.Mutex
	ports map[string]*models.Port
}

func (m *memPorts) Insert(ctx context.Context, port *models.Port) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	port.CreatedAt = now
	port.UpdatedAt = now
	cp := *port
	m.ports[port.ID] = &cp
	return nil
}

func (m *memPorts) Get(ctx context.Context, tenantID, id string) (*models.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	port, ok := m.ports[id]
	if !ok || port.TenantID != tenantID || port.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "port %s not found", id)
	}
	cp := *port
	return &cp, nil
}

func (m *memPorts) ListByPanel(ctx context.Context, tenantID, panelID string) ([]models.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Port
	for _, port := range m.ports {
		if port.TenantID == tenantID && port.PanelID == panelID && port.DeletedAt == nil {
			out = append(out, *port)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortID < out[j].ShortID })
	return out, nil
}

func (m *memPorts) Update(ctx context.Context, tenantID, id string, req models.UpdatePortRequest) (*models.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	port, ok := m.ports[id]
	if !ok || port.TenantID != tenantID || port.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "port %s not found", id)
	}
	if req.Name != nil {
		port.Name = *req.Name
	}
	if req.Status != nil {
		port.Status = *req.Status
	}
	port.UpdatedAt = time.Now().UTC()
	cp := *port
	return &cp, nil
}

func (m *memPorts) CountByPanel(ctx context.Context, tenantID, panelID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, port := range m.ports {
		if port.TenantID == tenantID && port.PanelID == panelID && port.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (m *memPorts) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	port, ok := m.ports[id]
	if !ok || port.TenantID != tenantID || port.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	port.DeletedAt = &now
	return true, nil
}

func (m *memPorts) SetStatus(ctx context.Context, tenantID, id string, status models.PortStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	port, ok := m.ports[id]
	if !ok || port.TenantID != tenantID || port.DeletedAt != nil {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "port %s not found", id)
	}
	port.Status = status
	port.UpdatedAt = time.Now().UTC()
	return nil
}

type memCables struct {
	mu        sync.Mutex
	cables    map[string]*models.Cable
	endpoints []*models.CableEndpoint
}

func (m *memCables) live(cableID string) bool {
	cable, ok := m.cables[cableID]
	return ok && cable.DeletedAt == nil
}

func (m *memCables) InsertCable(ctx context.Context, cable *models.Cable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	cable.CreatedAt = now
	cable.UpdatedAt = now
	cp := *cable
	m.cables[cable.ID] = &cp
	return nil
}

func (m *memCables) InsertEndpoint(ctx context.Context, ep *models.CableEndpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	ep.CreatedAt = now
	ep.UpdatedAt = now
	cp := *ep
	m.endpoints = append(m.endpoints, &cp)
	return nil
}

func (m *memCables) Get(ctx context.Context, tenantID, id string) (*models.Cable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cable, ok := m.cables[id]
	if !ok || cable.TenantID != tenantID || cable.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "cable %s not found", id)
	}
	cp := *cable
	return &cp, nil
}

func (m *memCables) GetEndpoints(ctx context.Context, tenantID, cableID string) ([]models.CableEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CableEndpoint
	for _, ep := range m.endpoints {
		if ep.TenantID == tenantID && ep.CableID == cableID {
			out = append(out, *ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndType < out[j].EndType })
	return out, nil
}

func (m *memCables) GetEndpointByShortID(ctx context.Context, tenantID string, shortID models.ShortID) (*models.CableEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ep := range m.endpoints {
		if ep.TenantID == tenantID && ep.ShortID != nil && *ep.ShortID == shortID && m.live(ep.CableID) {
			cp := *ep
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCables) GetEndpointByPort(ctx context.Context, tenantID, portID string) (*models.CableEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ep := range m.endpoints {
		if ep.TenantID == tenantID && ep.PortID != nil && *ep.PortID == portID && m.live(ep.CableID) {
			cp := *ep
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCables) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Cable, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Cable
	for _, cable := range m.cables {
		if cable.TenantID == tenantID && cable.DeletedAt == nil {
			out = append(out, *cable)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memCables) SoftDelete(ctx context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cable, ok := m.cables[id]
	if !ok || cable.TenantID != tenantID || cable.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	cable.DeletedAt = &now
	return true, nil
}

// memGraph is the in-memory stand-in for the graph database: it backs both
// the write side (GraphSync, GraphConnector) and the read side (Source) so
// topology queries observe exactly what cabling wrote.
type memGraph struct {
	mu     sync.Mutex
	ports  map[string]models.PortNodeInfo
	cables map[string][]connectivity.EndpointBinding
}

func newMemGraph() *memGraph {
	return &memGraph{
		ports:  make(map[string]models.PortNodeInfo),
		cables: make(map[string][]connectivity.EndpointBinding),
	}
}

func (g *memGraph) SyncPort(ctx context.Context, tenantID string, info models.PortNodeInfo) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ports[info.PortID] = info
	return nil
}

func (g *memGraph) SyncPanel(ctx context.Context, tenantID, panelID, panelName, deviceName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, info := range g.ports {
		if info.PanelID == panelID {
			info.PanelName = panelName
			info.DeviceName = deviceName
			g.ports[id] = info
		}
	}
	return nil
}

func (g *memGraph) RemovePort(ctx context.Context, tenantID, portID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.ports, portID)
	return nil
}

func (g *memGraph) Connect(ctx context.Context, tenantID, cableID, category string, endpoints []connectivity.EndpointBinding) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for otherID, bindings := range g.cables {
		if otherID == cableID {
			continue
		}
		for _, b := range bindings {
			for _, ep := range endpoints {
				if b.PortID == ep.PortID {
					return connectivity.NewPortAlreadyConnectedError(ep.PortID, otherID)
				}
			}
		}
	}
	g.cables[cableID] = endpoints
	return nil
}

func (g *memGraph) Disconnect(ctx context.Context, tenantID, cableID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.cables, cableID)
	return nil
}

func (g *memGraph) CableForPort(ctx context.Context, tenantID, portID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for cableID, bindings := range g.cables {
		for _, b := range bindings {
			if b.PortID == portID {
				return cableID, nil
			}
		}
	}
	return "", nil
}

func (g *memGraph) PortsOnCable(ctx context.Context, tenantID, cableID string) ([]models.PortNodeInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.PortNodeInfo
	for _, b := range g.cables[cableID] {
		if info, ok := g.ports[b.PortID]; ok {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PortID < out[j].PortID })
	return out, nil
}

func (g *memGraph) PortsOnPanel(ctx context.Context, tenantID, panelID string) ([]models.PortNodeInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.PortNodeInfo
	for _, info := range g.ports {
		if info.PanelID == panelID {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PortID < out[j].PortID })
	return out, nil
}

// nopSink drops all lifecycle events.
type nopSink struct{}

func (nopSink) EmitAssetCreated(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, shortID models.ShortID, label string, data any) error {
	return nil
}
func (nopSink) EmitAssetUpdated(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, data any) error {
	return nil
}
func (nopSink) EmitAssetDeleted(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, shortID models.ShortID) error {
	return nil
}
func (nopSink) EmitCableConnected(ctx context.Context, tenantID, cableID, category string, endpoints []kafka.CableEventEndpoint) error {
	return nil
}
func (nopSink) EmitCableDisconnected(ctx context.Context, tenantID, cableID string) error {
	return nil
}
func (nopSink) EmitLabelBound(ctx context.Context, tenantID string, shortID models.ShortID, label string, entityType models.EntityType, entityID string) error {
	return nil
}

// TestApp is one fully wired instance over fresh in-memory state.
type TestApp struct {
	t     *testing.T
	e     *echo.Echo
	graph *memGraph
}

func NewTestApp(t *testing.T) *TestApp {
	logger := logging.NewNopLogger()
	db := fakeDB{}

	seq := &memSequence{next: make(map[string]int64)}
	allocs := &memAllocations{recs: make(map[string]map[models.ShortID]models.AllocationRecord)}
	poolStore := &memPool{recs: make(map[string]map[models.ShortID]models.PoolRecord)}
	taskStore := &memTasks{tasks: make(map[string]map[string]models.PrintTask)}
	rooms := &memRooms{rooms: make(map[string]*models.Room)}
	cabinets := &memCabinets{cabinets: make(map[string]*models.Cabinet)}
	panels := &memPanels{panels: make(map[string]*models.Panel)}
	ports := &memPorts{ports: make(map[string]*models.Port)}
	cables := &memCables{cables: make(map[string]*models.Cable)}
	graph := newMemGraph()

	allocator := identity.NewAllocator(db, seq, allocs, poolStore, logger, identity.Config{Prefix: "E", Width: 5})
	ledger := identity.NewLedger(db, seq, allocs, poolStore, logger)
	printTasks := identity.NewPrintTasks(db, taskStore, poolStore, ledger, allocator, logger)
	resolver := connectivity.NewResolver(graph, logger, connectivity.ResolverConfig{DefaultDepth: 3, MaxDepth: 10})

	assetSvc := assets.NewService(db, rooms, cabinets, panels, ports, cables, allocator, graph, nopSink{}, logger)
	cablingSvc := cabling.NewService(db, cables, ports, allocator, ledger, graph, nopSink{}, logger)

	// The container registry is process-global and rejects duplicate IDs, so
	// reuse the default container across tests; re-registering the instances
	// below replaces the previous test's dependencies with fresh ones.
	container := ectoinject.GetDefaultContainer()
	if container == nil {
		var err error
		container, err = ectoinject.NewDIDefaultContainer()
		require.NoError(t, err)
	}
	require.NoError(t, ectoinject.RegisterInstance[*identity.Allocator](container, allocator))
	require.NoError(t, ectoinject.RegisterInstance[*identity.Ledger](container, ledger))
	require.NoError(t, ectoinject.RegisterInstance[*identity.PrintTasks](container, printTasks))
	require.NoError(t, ectoinject.RegisterInstance[*connectivity.Resolver](container, resolver))
	require.NoError(t, ectoinject.RegisterInstance[*assets.Service](container, assetSvc))
	require.NoError(t, ectoinject.RegisterInstance[*cabling.Service](container, cablingSvc))

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())

	api := e.Group("/api/v1")
	shortidroute.Register(api.Group("/shortids"))
	poolroute.Register(api.Group("/pool"))
	printtaskroute.Register(api.Group("/print-tasks"))
	roomroute.Register(api.Group("/rooms"))
	cabinetroute.Register(api.Group("/cabinets"))
	panelroute.Register(api.Group("/panels"))
	portroute.Register(api.Group("/ports"))
	cableroute.Register(api.Group("/cables"))

	return &TestApp{t: t, e: e, graph: graph}
}

// Request sends a JSON request with the given tenant and returns the recorder.
func (a *TestApp) Request(method, path, tenantID string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderTenantID, tenantID)
	req.Header.Set(middleware.HeaderUserID, "tester")

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
