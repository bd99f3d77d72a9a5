package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	ctxutil "github.com/Ramsey-B/fern/pkg/context"
)

const (
	// HeaderTenantID scopes every operation to one tenant.
	HeaderTenantID = "X-Tenant-ID"
	// HeaderUserID identifies the operator for audit fields like CreatedBy.
	HeaderUserID = "X-User-ID"
)

// Context seeds the request context with the request id, tenant and caller
// identity. The request id is echoed back in the response header so API
// errors can be correlated with log lines.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = ctxutil.SetRequestID(ctx, requestID)
			ctx = ctxutil.SetTenantID(ctx, req.Header.Get(HeaderTenantID))
			ctx = ctxutil.SetUserID(ctx, req.Header.Get(HeaderUserID))
			ctx = ctxutil.SetMethod(ctx, req.Method)
			ctx = ctxutil.SetRoute(ctx, req.URL.Path)
			ctx = ctxutil.SetRemoteIP(ctx, c.RealIP())

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
