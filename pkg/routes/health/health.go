package health

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/connectivity"
	"github.com/Ramsey-B/fern/pkg/database"
)

// Checker probes the service's backing stores for the health endpoints.
type Checker struct {
	db        database.DB
	graph     *connectivity.Client
	version   string
	startTime time.Time
	ready     atomic.Bool
}

func NewChecker(db database.DB, graph *connectivity.Client, version string) *Checker {
	return &Checker{
		db:        db,
		graph:     graph,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady flips the readiness gate, flipped on after startup completes and
// off again during shutdown.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

type HealthStatus struct {
	Status     string                 `json:"status"`
	Version    string                 `json:"version"`
	Uptime     string                 `json:"uptime"`
	Checks     map[string]CheckResult `json:"checks"`
	ReportedAt time.Time              `json:"reported_at"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

func runCheck(probe func() error) CheckResult {
	start := time.Now()
	if err := probe(); err != nil {
		return CheckResult{Status: "unhealthy", Message: err.Error()}
	}
	return CheckResult{Status: "healthy", Latency: time.Since(start).String()}
}

// Health pings Postgres and Neo4j and reports per-store latency. Any failed
// probe makes the whole response a 503.
func (c *Checker) Health(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	status := &HealthStatus{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]CheckResult),
		ReportedAt: time.Now(),
	}

	probes := map[string]func() error{
		"postgres": func() error {
			if c.db == nil {
				return errors.New("postgres not configured")
			}
			return c.db.PingContext(reqCtx)
		},
	}
	if c.graph != nil {
		probes["neo4j"] = func() error {
			return c.graph.VerifyConnectivity(reqCtx)
		}
	}

	for name, probe := range probes {
		result := runCheck(probe)
		status.Checks[name] = result
		if result.Status != "healthy" {
			status.Status = "unhealthy"
		}
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	return ctx.JSON(httpStatus, status)
}

// Live answers as long as the process serves requests.
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready reports whether startup finished and traffic should be routed here.
func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready.Load() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
