package identity

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
)

// In-memory stores backing the services under test. The fake DB hands out
// no-op transactions; atomicity is exercised against the real stores in the
// integration suite.

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

type memSequence struct {
	mu   sync.Mutex
	next map[string]int64
}

func newMemSequence() *memSequence {
	return &memSequence{next: make(map[string]int64)}
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

func newMemAllocations() *memAllocations {
	return &memAllocations{recs: make(map[string]map[models.ShortID]models.AllocationRecord)}
}

func (a *memAllocations) Insert(ctx context.Context, rec models.AllocationRecord) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tenant, ok := a.recs[rec.TenantID]
	if !ok {
		tenant = make(map[models.ShortID]models.AllocationRecord)
		a.recs[rec.TenantID] = tenant
	}
	if _, taken := tenant[rec.ShortID]; taken {
		return false, nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	tenant[rec.ShortID] = rec
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

func newMemPool() *memPool {
	return &memPool{recs: make(map[string]map[models.ShortID]models.PoolRecord)}
}

func (p *memPool) InsertBatch(ctx context.Context, records []models.PoolRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rec := range records {
		tenant, ok := p.recs[rec.TenantID]
		if !ok {
			tenant = make(map[models.ShortID]models.PoolRecord)
			p.recs[rec.TenantID] = tenant
		}
		tenant[rec.ShortID] = rec
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

func newMemTasks() *memTasks {
	return &memTasks{tasks: make(map[string]map[string]models.PrintTask)}
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
	tenant, ok := m.tasks[tenantID]
	if !ok {
		tenant = make(map[string]models.PrintTask)
		m.tasks[tenantID] = tenant
	}
	tenant[task.ID] = task
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

type fixture struct {
	sequence    *memSequence
	allocations *memAllocations
	pool        *memPool
	tasks       *memTasks
	allocator   *Allocator
	ledger      *Ledger
	printTasks  *PrintTasks
}

func newFixture() *fixture {
	logger := logging.NewNopLogger()
	db := fakeDB{}
	f := &fixture{
		sequence:    newMemSequence(),
		allocations: newMemAllocations(),
		pool:        newMemPool(),
		tasks:       newMemTasks(),
	}
	f.allocator = NewAllocator(db, f.sequence, f.allocations, f.pool, logger, Config{Prefix: "E", Width: 5})
	f.ledger = NewLedger(db, f.sequence, f.allocations, f.pool, logger)
	f.printTasks = NewPrintTasks(db, f.tasks, f.pool, f.ledger, f.allocator, logger)
	return f
}
