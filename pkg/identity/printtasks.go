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

// PrintTaskStore records print task rows.
type PrintTaskStore interface {
	Create(ctx context.Context, tenantID string, req models.CreatePrintTaskRequest) (*models.PrintTask, error)
	Get(ctx context.Context, tenantID, id string) (*models.PrintTask, error)
	List(ctx context.Context, tenantID string, page, pageSize int) ([]models.PrintTask, int, error)
	UpdateStatus(ctx context.Context, tenantID, id string, to models.PrintTaskStatus, from ...models.PrintTaskStatus) (bool, error)
}

// PrintTasks manages batch label print requests: each task reserves a pool
// block up front, exports it to printing software, and walks PENDING,
// PRINTING, COMPLETED.
type PrintTasks struct {
	db        database.DB
	tasks     PrintTaskStore
	pool      PoolStore
	ledger    *Ledger
	allocator *Allocator
	logger    ectologger.Logger
}

// NewPrintTasks creates the print task service.
func NewPrintTasks(db database.DB, tasks PrintTaskStore, pool PoolStore, ledger *Ledger, allocator *Allocator, logger ectologger.Logger) *PrintTasks {
	return &PrintTasks{
		db:        db,
		tasks:     tasks,
		pool:      pool,
		ledger:    ledger,
		allocator: allocator,
		logger:    logger,
	}
}

// Create records the task and generates exactly Count pool records tagged
// with it, in one transaction.
func (p *PrintTasks) Create(ctx context.Context, tenantID string, req models.CreatePrintTaskRequest) (*models.PrintTask, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.PrintTasks.Create")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Create",
		"tenant_id":   tenantID,
		"name":        req.Name,
		"entity_type": req.EntityType,
		"count":       req.Count,
	})

	if !models.ValidEntityType(req.EntityType) {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", req.EntityType)
	}

	ctx, tx, err := p.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	task, err := p.tasks.Create(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	if _, err := p.ledger.Generate(ctx, tenantID, req.Count, req.Name, &task.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit print task")
	}

	metrics.RecordPrintTask(tenantID, string(models.PrintTaskStatusPending))
	log.WithFields(map[string]any{"id": task.ID}).Info("Created print task")
	return task, nil
}

// Get retrieves a print task.
func (p *PrintTasks) Get(ctx context.Context, tenantID, id string) (*models.PrintTask, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.PrintTasks.Get")
	defer span.End()

	task, err := p.tasks.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "print task %s not found", id)
	}
	return task, nil
}

// List retrieves print tasks, newest first.
func (p *PrintTasks) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.PrintTask, int, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.PrintTasks.List")
	defer span.End()

	return p.tasks.List(ctx, tenantID, page, pageSize)
}

// Export produces one row per still-printable pool record of the task, in
// short ID order, for label printing software. Read-only: a physical print
// can be re-run, so exporting never advances status.
func (p *PrintTasks) Export(ctx context.Context, tenantID, id string) (*models.PrintTaskExportResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.PrintTasks.Export")
	defer span.End()

	if _, err := p.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}

	records, err := p.pool.ListByTask(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	rows := make([]models.PrintTaskExportRow, 0, len(records))
	for _, rec := range records {
		if rec.Status != models.PoolStatusGenerated && rec.Status != models.PoolStatusPrinted {
			continue
		}
		rows = append(rows, models.PrintTaskExportRow{
			ShortID: rec.ShortID,
			Label:   p.allocator.Label(rec.ShortID),
			Status:  rec.Status,
		})
	}

	return &models.PrintTaskExportResponse{TaskID: id, Rows: rows}, nil
}

// ConfirmPrinted records that the physical print run happened: the task moves
// to PRINTING and its still-GENERATED records become PRINTED.
func (p *PrintTasks) ConfirmPrinted(ctx context.Context, tenantID, id string) (*models.PrintTask, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.PrintTasks.ConfirmPrinted")
	defer span.End()

	ctx, tx, err := p.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	task, err := p.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	ok, err := p.tasks.UpdateStatus(ctx, tenantID, id, models.PrintTaskStatusPrinting, models.PrintTaskStatusPending)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "print task %s is %s, not PENDING", id, task.Status)
	}

	printed, err := p.pool.MarkPrintedByTask(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit print confirmation")
	}

	metrics.RecordPrintTask(tenantID, string(models.PrintTaskStatusPrinting))
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"task_id":   id,
		"printed":   printed,
	}).Info("Confirmed print run")

	return p.Get(ctx, tenantID, id)
}

// Complete closes the task. Unbound records are advanced to PRINTED; bound
// ones are left BOUND.
func (p *PrintTasks) Complete(ctx context.Context, tenantID, id string) (*models.PrintTask, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.PrintTasks.Complete")
	defer span.End()

	ctx, tx, err := p.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	task, err := p.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	ok, err := p.tasks.UpdateStatus(ctx, tenantID, id, models.PrintTaskStatusCompleted, models.PrintTaskStatusPending, models.PrintTaskStatusPrinting)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "print task %s is %s and cannot be completed", id, task.Status)
	}

	if _, err := p.pool.MarkPrintedByTask(ctx, tenantID, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit task completion")
	}

	metrics.RecordPrintTask(tenantID, string(models.PrintTaskStatusCompleted))
	return p.Get(ctx, tenantID, id)
}

// MarkFailed records that the print run failed. Pool records are left as they
// are; they can be re-exported under a new task or cancelled.
func (p *PrintTasks) MarkFailed(ctx context.Context, tenantID, id string) (*models.PrintTask, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.PrintTasks.MarkFailed")
	defer span.End()

	task, err := p.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	ok, err := p.tasks.UpdateStatus(ctx, tenantID, id, models.PrintTaskStatusFailed, models.PrintTaskStatusPending, models.PrintTaskStatusPrinting)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "print task %s is %s and cannot be failed", id, task.Status)
	}

	return p.Get(ctx, tenantID, id)
}
