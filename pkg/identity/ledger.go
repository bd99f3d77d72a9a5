package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Ledger manages the pre-printed label pool: blocks of ShortIDs reserved
// before any entity exists, carried through GENERATED, PRINTED, BOUND and
// CANCELLED.
type Ledger struct {
	db          database.DB
	sequence    SequenceStore
	allocations AllocationStore
	pool        PoolStore
	logger      ectologger.Logger
}

// NewLedger creates the pool ledger.
func NewLedger(db database.DB, sequence SequenceStore, allocations AllocationStore, pool PoolStore, logger ectologger.Logger) *Ledger {
	return &Ledger{
		db:          db,
		sequence:    sequence,
		allocations: allocations,
		pool:        pool,
		logger:      logger,
	}
}

// Generate reserves count fresh ShortIDs as one contiguous counter block and
// records them in the pool as GENERATED. The counter advance and the pool
// insert are one transaction.
func (l *Ledger) Generate(ctx context.Context, tenantID string, count int, batchLabel string, printTaskID *string) ([]models.ShortID, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Ledger.Generate")
	defer span.End()

	log := l.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Generate",
		"tenant_id":   tenantID,
		"count":       count,
		"batch_label": batchLabel,
	})

	if count <= 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "count must be positive, got %d", count)
	}

	ctx, tx, err := l.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	start, err := l.sequence.NextBlock(ctx, tenantID, count)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ids := make([]models.ShortID, 0, count)
	records := make([]models.PoolRecord, 0, count)
	for i := 0; i < count; i++ {
		id := start + models.ShortID(i)
		ids = append(ids, id)
		records = append(records, models.PoolRecord{
			TenantID:    tenantID,
			ShortID:     id,
			Status:      models.PoolStatusGenerated,
			BatchLabel:  batchLabel,
			PrintTaskID: printTaskID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if err := l.pool.InsertBatch(ctx, records); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit pool generation")
	}

	metrics.RecordPoolLabels(tenantID, "generated", count)
	log.WithFields(map[string]any{"start": start}).Info("Generated pool block")
	return ids, nil
}

// Get retrieves a single pool record.
func (l *Ledger) Get(ctx context.Context, tenantID string, shortID models.ShortID) (*models.PoolRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Ledger.Get")
	defer span.End()

	rec, err := l.pool.Get(ctx, tenantID, shortID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NewNotFoundError(shortID)
	}
	return rec, nil
}

// Bind claims a pre-printed label for a real entity: the pool record moves to
// BOUND and ownership is mirrored into the allocation table, atomically. A
// BOUND pool record and an allocation record can therefore never disagree.
func (l *Ledger) Bind(ctx context.Context, tenantID string, shortID models.ShortID, entityType models.EntityType, entityID string) (*models.PoolRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Ledger.Bind")
	defer span.End()

	log := l.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Bind",
		"tenant_id":   tenantID,
		"short_id":    shortID,
		"entity_type": entityType,
		"entity_id":   entityID,
	})

	if !models.ValidEntityType(entityType) {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", entityType)
	}

	ctx, tx, err := l.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	rec, err := l.pool.Get(ctx, tenantID, shortID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NewNotFoundError(shortID)
	}
	switch rec.Status {
	case models.PoolStatusBound:
		return nil, NewAlreadyBoundError(shortID)
	case models.PoolStatusCancelled:
		return nil, NewCancelledError(shortID)
	}

	ok, err := l.pool.Bind(ctx, tenantID, shortID, string(entityType), entityID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewAlreadyBoundError(shortID)
	}

	inserted, err := l.allocations.Insert(ctx, models.AllocationRecord{
		TenantID:   tenantID,
		ShortID:    shortID,
		EntityType: entityType,
		EntityID:   entityID,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		existing, err := l.allocations.Get(ctx, tenantID, shortID)
		if err != nil {
			return nil, err
		}
		ownerType := models.EntityType("")
		if existing != nil {
			ownerType = existing.EntityType
		}
		return nil, NewConflictError(shortID, ownerType)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit bind")
	}

	metrics.RecordPoolLabels(tenantID, "bound", 1)
	log.Info("Bound pool label")

	bound, err := l.pool.Get(ctx, tenantID, shortID)
	if err != nil {
		return nil, err
	}
	return bound, nil
}

// Cancel retires a label permanently. Bound labels must be released through
// their owning entity first; cancellation is terminal and never reversed.
func (l *Ledger) Cancel(ctx context.Context, tenantID string, shortID models.ShortID, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "identity.Ledger.Cancel")
	defer span.End()

	rec, err := l.pool.Get(ctx, tenantID, shortID)
	if err != nil {
		return err
	}
	if rec == nil {
		return NewNotFoundError(shortID)
	}
	switch rec.Status {
	case models.PoolStatusBound:
		return NewAlreadyBoundError(shortID)
	case models.PoolStatusCancelled:
		return NewCancelledError(shortID)
	}

	ok, err := l.pool.Cancel(ctx, tenantID, shortID, reason)
	if err != nil {
		return err
	}
	if !ok {
		return NewAlreadyBoundError(shortID)
	}

	metrics.RecordPoolLabels(tenantID, "cancelled", 1)
	l.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"short_id":  shortID,
		"reason":    reason,
	}).Info("Cancelled pool label")
	return nil
}

// BatchCancel expands a range expression and cancels each member
// independently, returning a partial-success report. One bad number in a
// 200-item range never blocks the other 199.
func (l *Ledger) BatchCancel(ctx context.Context, tenantID, rangeExpr, reason string) (*models.BatchCancelResult, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Ledger.BatchCancel")
	defer span.End()

	ids, err := ParseRangeExpr(rangeExpr)
	if err != nil {
		return nil, err
	}

	result := &models.BatchCancelResult{
		FailedDetails: []models.BatchCancelFailure{},
	}
	for _, id := range ids {
		if err := l.Cancel(ctx, tenantID, id, reason); err != nil {
			result.FailedDetails = append(result.FailedDetails, models.BatchCancelFailure{
				ShortID: id,
				Reason:  err.Error(),
			})
			continue
		}
		result.SuccessCount++
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"range":     rangeExpr,
		"success":   result.SuccessCount,
		"failed":    len(result.FailedDetails),
	}).Info("Batch cancelled pool labels")
	return result, nil
}
