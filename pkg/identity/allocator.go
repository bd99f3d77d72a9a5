// Package identity hands out the small integer ShortIDs that end up on
// physical labels. The allocator is the only component other subsystems call
// to obtain, pin, look up or release a ShortID; the ledger manages the
// pre-printed label pool behind it.
package identity

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SequenceStore is the per-tenant forward-only counter.
type SequenceStore interface {
	Next(ctx context.Context, tenantID string) (models.ShortID, error)
	NextBlock(ctx context.Context, tenantID string, count int) (models.ShortID, error)
	Bump(ctx context.Context, tenantID string, floor models.ShortID) error
	Current(ctx context.Context, tenantID string) (models.ShortID, error)
}

// AllocationStore records current ShortID ownership.
type AllocationStore interface {
	Insert(ctx context.Context, rec models.AllocationRecord) (bool, error)
	Get(ctx context.Context, tenantID string, shortID models.ShortID) (*models.AllocationRecord, error)
	GetByEntity(ctx context.Context, tenantID, entityType, entityID string) (*models.AllocationRecord, error)
	Delete(ctx context.Context, tenantID string, shortID models.ShortID) (bool, error)
}

// PoolStore records label lifecycle for pre-generated ShortIDs.
type PoolStore interface {
	InsertBatch(ctx context.Context, records []models.PoolRecord) error
	Get(ctx context.Context, tenantID string, shortID models.ShortID) (*models.PoolRecord, error)
	ListByTask(ctx context.Context, tenantID, printTaskID string) ([]models.PoolRecord, error)
	MarkPrintedByTask(ctx context.Context, tenantID, printTaskID string) (int64, error)
	Bind(ctx context.Context, tenantID string, shortID models.ShortID, entityType, entityID string) (bool, error)
	Cancel(ctx context.Context, tenantID string, shortID models.ShortID, reason string) (bool, error)
}

// Config carries the label formatting settings.
type Config struct {
	Prefix string
	Width  int
}

// Allocator is the facade over the counter, the allocation table and the pool
// ledger. Every mutating method runs its counter movement and table writes in
// one transaction; two concurrent callers can never observe the same value.
type Allocator struct {
	db          database.DB
	sequence    SequenceStore
	allocations AllocationStore
	pool        PoolStore
	logger      ectologger.Logger
	cfg         Config
}

// NewAllocator creates the identity allocator.
func NewAllocator(db database.DB, sequence SequenceStore, allocations AllocationStore, pool PoolStore, logger ectologger.Logger, cfg Config) *Allocator {
	if cfg.Width <= 0 {
		cfg.Width = 5
	}
	return &Allocator{
		db:          db,
		sequence:    sequence,
		allocations: allocations,
		pool:        pool,
		logger:      logger,
		cfg:         cfg,
	}
}

// Label renders the printable fixed-width form of a ShortID.
func (a *Allocator) Label(shortID models.ShortID) string {
	return models.FormatShortID(shortID, a.cfg.Prefix, a.cfg.Width)
}

// Allocate reserves the next counter value for an entity and records the
// ownership, atomically.
func (a *Allocator) Allocate(ctx context.Context, tenantID string, entityType models.EntityType, entityID string) (models.ShortID, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Allocator.Allocate")
	defer span.End()

	log := a.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Allocate",
		"tenant_id":   tenantID,
		"entity_type": entityType,
		"entity_id":   entityID,
	})

	if !models.ValidEntityType(entityType) {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", entityType)
	}

	ctx, tx, err := a.db.GetTx(ctx, nil)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	shortID, err := a.sequence.Next(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	inserted, err := a.allocations.Insert(ctx, models.AllocationRecord{
		TenantID:   tenantID,
		ShortID:    shortID,
		EntityType: entityType,
		EntityID:   entityID,
	})
	if err != nil {
		return 0, err
	}
	if !inserted {
		// Pinned allocations bump the counter past themselves, so a fresh
		// counter value landing on a taken row means the invariant broke.
		log.WithFields(map[string]any{"short_id": shortID}).Error("Counter issued an already-allocated short id")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "counter issued taken short id %d", shortID)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit allocation")
	}

	metrics.RecordAllocation(tenantID, string(entityType), "auto")
	log.WithFields(map[string]any{"short_id": shortID}).Info("Allocated short id")
	return shortID, nil
}

// AllocatePinned claims a caller-chosen ShortID, used when the physical label
// already exists. The conflict check, the write and the counter bump are one
// transaction, so two operators pinning the same legacy number concurrently
// cannot both win, and a future Allocate can never reissue the number.
func (a *Allocator) AllocatePinned(ctx context.Context, tenantID string, shortID models.ShortID, entityType models.EntityType, entityID string) (models.ShortID, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Allocator.AllocatePinned")
	defer span.End()

	log := a.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "AllocatePinned",
		"tenant_id":   tenantID,
		"short_id":    shortID,
		"entity_type": entityType,
		"entity_id":   entityID,
	})

	if shortID <= 0 {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "short id must be positive, got %d", shortID)
	}
	if !models.ValidEntityType(entityType) {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", entityType)
	}

	ctx, tx, err := a.db.GetTx(ctx, nil)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	existing, err := a.allocations.Get(ctx, tenantID, shortID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, NewConflictError(shortID, existing.EntityType)
	}

	inserted, err := a.allocations.Insert(ctx, models.AllocationRecord{
		TenantID:   tenantID,
		ShortID:    shortID,
		EntityType: entityType,
		EntityID:   entityID,
	})
	if err != nil {
		return 0, err
	}
	if !inserted {
		return 0, NewConflictError(shortID, "")
	}

	if err := a.sequence.Bump(ctx, tenantID, shortID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit pinned allocation")
	}

	metrics.RecordAllocation(tenantID, string(entityType), "pinned")
	log.Info("Pinned short id")
	return shortID, nil
}

// Lookup resolves a ShortID to the entity that owns it: the allocation table
// first, then BOUND pool records for older bindings only ever recorded in the
// ledger. Pure read.
func (a *Allocator) Lookup(ctx context.Context, tenantID string, shortID models.ShortID) (*models.AllocationRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Allocator.Lookup")
	defer span.End()

	rec, err := a.allocations.Get(ctx, tenantID, shortID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	pooled, err := a.pool.Get(ctx, tenantID, shortID)
	if err != nil {
		return nil, err
	}
	if pooled != nil && pooled.Status == models.PoolStatusBound && pooled.EntityType != nil && pooled.EntityID != nil {
		return &models.AllocationRecord{
			TenantID:   pooled.TenantID,
			ShortID:    pooled.ShortID,
			EntityType: *pooled.EntityType,
			EntityID:   *pooled.EntityID,
			CreatedAt:  pooled.CreatedAt,
		}, nil
	}

	return nil, NewNotFoundError(shortID)
}

// LookupEntity is the reverse lookup: the ShortID an entity currently holds.
func (a *Allocator) LookupEntity(ctx context.Context, tenantID string, entityType models.EntityType, entityID string) (*models.AllocationRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Allocator.LookupEntity")
	defer span.End()

	rec, err := a.allocations.GetByEntity(ctx, tenantID, string(entityType), entityID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no short id allocated to %s %s", entityType, entityID)
	}
	return rec, nil
}

// Current reads the next counter value without advancing it.
func (a *Allocator) Current(ctx context.Context, tenantID string) (models.ShortID, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Allocator.Current")
	defer span.End()

	return a.sequence.Current(ctx, tenantID)
}

// Release deletes the allocation record. Releasing a never allocated or
// already released ShortID is a no-op, since deletion races with
// entity removal must not fail the caller. Pool state is never touched: a
// bound, pool-sourced label stays permanently retired.
func (a *Allocator) Release(ctx context.Context, tenantID string, shortID models.ShortID) error {
	ctx, span := tracing.StartSpan(ctx, "identity.Allocator.Release")
	defer span.End()

	deleted, err := a.allocations.Delete(ctx, tenantID, shortID)
	if err != nil {
		return err
	}

	if deleted {
		metrics.RecordRelease(tenantID)
		a.logger.WithContext(ctx).WithFields(map[string]any{
			"tenant_id": tenantID,
			"short_id":  shortID,
		}).Info("Released short id")
	}
	return nil
}
