package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/stylehub/coordinator/cmd/coordinator/container"
	"github.com/stylehub/coordinator/cmd/coordinator/handlers"
	"github.com/stylehub/coordinator/cmd/coordinator/middleware"
)

// RegisterIngestRoutes registers the agent ingest endpoint
func RegisterIngestRoutes(e *echo.Echo, ct *container.Container) {
	h := handlers.NewIngestHandler(ct.IngestService)

	agents := e.Group("/api/v1/agents", middleware.AgentAuth(ct.AgentRepo))
	{
		agents.POST("/ingest", h.Ingest)
	}
}
