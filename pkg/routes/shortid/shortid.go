package shortid

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	ctxmiddleware "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

// Register registers short ID allocation routes
func Register(g *echo.Group) {
	g.POST("/allocate", Allocate)
	g.POST("/allocate-pinned", AllocatePinned)
	g.GET("/counter", Counter)
	g.GET("/entity/:entityType/:entityID", LookupEntity)
	g.GET("/:shortID", Lookup)
	g.DELETE("/:shortID", Release)
}

// Allocate assigns the next sequential short ID to an entity
func Allocate(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "shortid_handler.Allocate")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.AllocateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, allocator, err := ectoinject.GetContext[*identity.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	shortID, err := allocator.Allocate(ctx, tenantID, req.EntityType, req.EntityID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, models.AllocationResponse{
		ShortID:    shortID,
		Label:      allocator.Label(shortID),
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
	})
}

// AllocatePinned claims a caller-chosen short ID for an entity
func AllocatePinned(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "shortid_handler.AllocatePinned")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.AllocatePinnedRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, allocator, err := ectoinject.GetContext[*identity.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	shortID, err := allocator.AllocatePinned(ctx, tenantID, req.ShortID, req.EntityType, req.EntityID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, models.AllocationResponse{
		ShortID:    shortID,
		Label:      allocator.Label(shortID),
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
	})
}

// Lookup resolves a scanned label or raw number to its owning entity
func Lookup(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "shortid_handler.Lookup")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	shortID, err := models.ParseShortID(c.Param("shortID"))
	if err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid short id %q", c.Param("shortID"))
	}

	ctx, allocator, err := ectoinject.GetContext[*identity.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	record, err := allocator.Lookup(ctx, tenantID, shortID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.AllocationResponse{
		ShortID:    record.ShortID,
		Label:      allocator.Label(record.ShortID),
		EntityType: record.EntityType,
		EntityID:   record.EntityID,
	})
}

// Counter reports the next value the tenant's sequence will hand out
func Counter(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "shortid_handler.Counter")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, allocator, err := ectoinject.GetContext[*identity.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	next, err := allocator.Current(ctx, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.CounterResponse{
		NextValue: next,
		NextLabel: allocator.Label(next),
	})
}

// LookupEntity resolves an entity to the short ID it carries
func LookupEntity(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "shortid_handler.LookupEntity")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, allocator, err := ectoinject.GetContext[*identity.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	record, err := allocator.LookupEntity(ctx, tenantID, models.EntityType(c.Param("entityType")), c.Param("entityID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.AllocationResponse{
		ShortID:    record.ShortID,
		Label:      allocator.Label(record.ShortID),
		EntityType: record.EntityType,
		EntityID:   record.EntityID,
	})
}

// Release retires a short ID from circulation
func Release(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "shortid_handler.Release")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	shortID, err := models.ParseShortID(c.Param("shortID"))
	if err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid short id %q", c.Param("shortID"))
	}

	ctx, allocator, err := ectoinject.GetContext[*identity.Allocator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get allocator")
	}

	if err := allocator.Release(ctx, tenantID, shortID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
