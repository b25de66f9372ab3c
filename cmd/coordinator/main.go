package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stylehub/coordinator/cmd/coordinator/container"
	"github.com/stylehub/coordinator/cmd/coordinator/middleware"
	"github.com/stylehub/coordinator/cmd/coordinator/repository"
	"github.com/stylehub/coordinator/cmd/coordinator/routes"
	"github.com/stylehub/coordinator/common/bootstrap"
	"github.com/stylehub/coordinator/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, queue, cache, telemetry)
	// and apply the embedded schema before anything touches the tables.
	components, err := bootstrap.Setup(ctx, "coordinator",
		bootstrap.WithDBInitHook(repository.ApplySchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap coordinator: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Refresh events flow through the in-process queue; the consumer
	// stops with the server context.
	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()
	if err := serviceContainer.StyleGroupService.StartRefreshConsumer(consumerCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start refresh consumer: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, serviceContainer)
	registerRoutes(e, serviceContainer)

	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestID())
	e.Use(middleware.ExtractUsername())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, ct *container.Container) {
	e.GET("/health", func(c echo.Context) error {
		if err := ct.Components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		acquired, idle, total := ct.Components.DB.PoolStat()
		return c.JSON(http.StatusOK, map[string]any{
			"status":  "ok",
			"service": "coordinator",
			"db_pool": map[string]int32{
				"acquired": acquired,
				"idle":     idle,
				"total":    total,
			},
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterAgentRoutes(e, serviceContainer)
	routes.RegisterIngestRoutes(e, serviceContainer)
	routes.RegisterScanRoutes(e, serviceContainer)
	routes.RegisterJobRoutes(e, serviceContainer)
	routes.RegisterAssetRoutes(e, serviceContainer)
	routes.RegisterAdminRoutes(e, serviceContainer)
}

// startServer starts the HTTP server with graceful shutdown
func startServer(e *echo.Echo, components *bootstrap.Components) {
	srv := server.New("coordinator", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
