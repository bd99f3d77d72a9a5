package startup

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/routes/cabinet"
	"github.com/Ramsey-B/fern/pkg/routes/cable"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/panel"
	"github.com/Ramsey-B/fern/pkg/routes/pool"
	"github.com/Ramsey-B/fern/pkg/routes/port"
	"github.com/Ramsey-B/fern/pkg/routes/printtask"
	"github.com/Ramsey-B/fern/pkg/routes/room"
	"github.com/Ramsey-B/fern/pkg/routes/shortid"
)

// ServerDependency owns the HTTP server. It starts last and stops first.
type ServerDependency struct {
	Config   *config.Config
	Logger   ectologger.Logger
	Database *DatabaseDependency
	Graph    *GraphDependency

	echo    *echo.Echo
	checker *health.Checker
}

func (d *ServerDependency) GetName() string { return "http-server" }
func (d *ServerDependency) DependsOn() []string {
	return []string{"container"}
}

func (d *ServerDependency) Start(ctx context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = middleware.Error(d.Logger)
	e.Use(middleware.Context())
	e.Use(otelecho.Middleware(d.Config.AppName))
	e.Use(middleware.Logger(d.Logger))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: d.Config.AllowOrigins,
		AllowMethods: d.Config.AllowMethods,
	}))

	d.checker = health.NewChecker(d.Database.DB, d.Graph.Client, d.Config.AppVersion)
	d.checker.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	shortid.Register(api.Group("/shortids"))
	pool.Register(api.Group("/pool"))
	printtask.Register(api.Group("/print-tasks"))
	room.Register(api.Group("/rooms"))
	cabinet.Register(api.Group("/cabinets"))
	panel.Register(api.Group("/panels"))
	port.Register(api.Group("/ports"))
	cable.Register(api.Group("/cables"))

	d.echo = e

	go func() {
		addr := fmt.Sprintf(":%d", d.Config.Port)
		d.Logger.WithField("addr", addr).Info("HTTP server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			d.Logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()

	d.checker.SetReady(true)
	return nil
}

func (d *ServerDependency) Stop(ctx context.Context) error {
	if d.echo == nil {
		return nil
	}
	d.checker.SetReady(false)
	return d.echo.Shutdown(ctx)
}
