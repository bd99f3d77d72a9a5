package pool

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	ctxmiddleware "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

// Register registers label pool routes
func Register(g *echo.Group) {
	g.POST("/generate", Generate)
	g.POST("/batch-cancel", BatchCancel)
	g.GET("/:shortID", Get)
	g.POST("/:shortID/bind", Bind)
	g.POST("/:shortID/cancel", Cancel)
}

// Generate reserves a block of fresh short IDs into the pool
func Generate(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "pool_handler.Generate")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.GeneratePoolRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, ledger, err := ectoinject.GetContext[*identity.Ledger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ledger")
	}

	ctx, allocator, err := ectoinject.GetContext[*identity.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	shortIDs, err := ledger.Generate(ctx, tenantID, req.Count, req.BatchLabel, nil)
	if err != nil {
		return err
	}

	labels := make([]string, 0, len(shortIDs))
	for _, id := range shortIDs {
		labels = append(labels, allocator.Label(id))
	}

	return c.JSON(http.StatusCreated, models.GeneratePoolResponse{
		ShortIDs: shortIDs,
		Labels:   labels,
	})
}

// Get returns the pool record for a label
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "pool_handler.Get")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	shortID, err := models.ParseShortID(c.Param("shortID"))
	if err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid short id %q", c.Param("shortID"))
	}

	ctx, ledger, err := ectoinject.GetContext[*identity.Ledger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ledger")
	}

	record, err := ledger.Get(ctx, tenantID, shortID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, record)
}

// Bind attaches a pre-printed label to a real entity
func Bind(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "pool_handler.Bind")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	shortID, err := models.ParseShortID(c.Param("shortID"))
	if err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid short id %q", c.Param("shortID"))
	}

	var req models.BindPoolRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, ledger, err := ectoinject.GetContext[*identity.Ledger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ledger")
	}

	record, err := ledger.Bind(ctx, tenantID, shortID, req.EntityType, req.EntityID)
	if err != nil {
		return err
	}

	ctx, allocator, err := ectoinject.GetContext[*identity.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	// Emission failures are logged by the emitter; a bound label is never
	// rolled back for a missed event.
	if ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx); err == nil {
		_ = emitter.EmitLabelBound(ctx, tenantID, shortID, allocator.Label(shortID), req.EntityType, req.EntityID)
	}

	return c.JSON(http.StatusOK, record)
}

// Cancel permanently retires a label
func Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "pool_handler.Cancel")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	shortID, err := models.ParseShortID(c.Param("shortID"))
	if err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid short id %q", c.Param("shortID"))
	}

	var req models.CancelPoolRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, ledger, err := ectoinject.GetContext[*identity.Ledger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ledger")
	}

	if err := ledger.Cancel(ctx, tenantID, shortID, req.Reason); err != nil {
		return err
	}

	ctx, allocator, err := ectoinject.GetContext[*identity.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	if ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx); err == nil {
		_ = emitter.EmitLabelCancelled(ctx, tenantID, shortID, allocator.Label(shortID), req.Reason)
	}

	return c.NoContent(http.StatusNoContent)
}

// BatchCancel retires every label in a range expression, reporting per-label
// failures without aborting the batch
func BatchCancel(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "pool_handler.BatchCancel")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.BatchCancelRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, ledger, err := ectoinject.GetContext[*identity.Ledger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ledger")
	}

	result, err := ledger.BatchCancel(ctx, tenantID, req.Range, req.Reason)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
