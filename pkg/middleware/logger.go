package middleware

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	ctxutil "github.com/Ramsey-B/fern/pkg/context"
)

// Logger emits one structured line per request after the handler returns.
// Runs after Context(), so the request id and tenant are already in ctx.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			ctx := req.Context()

			logger.WithContext(ctx).WithFields(map[string]any{
				"request_id": ctxutil.GetRequestID(ctx),
				"tenant_id":  ctxutil.GetTenantID(ctx),
				"method":     req.Method,
				"route":      c.Path(),
				"uri":        req.RequestURI,
				"status":     res.Status,
				"remote_ip":  c.RealIP(),
				"latency_ms": time.Since(start).Milliseconds(),
				"bytes_out":  res.Size,
			}).Info("Request")

			return nil
		}
	}
}
