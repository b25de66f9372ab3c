package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/stylehub/coordinator/cmd/coordinator/container"
	"github.com/stylehub/coordinator/cmd/coordinator/handlers"
	"github.com/stylehub/coordinator/cmd/coordinator/middleware"
)

// RegisterScanRoutes registers operator scan control and the agent
// progress endpoint.
func RegisterScanRoutes(e *echo.Echo, ct *container.Container) {
	h := handlers.NewScanHandler(ct.ScanService)

	scan := e.Group("/api/v1/scan", middleware.RequireUser())
	{
		scan.POST("/request", h.Request)
		scan.POST("/stop", h.Stop)
		scan.POST("/reset", h.Reset)
		scan.GET("/status", h.Status)
	}

	agents := e.Group("/api/v1/agents", middleware.AgentAuth(ct.AgentRepo))
	{
		agents.POST("/scan/progress", h.Progress)
	}
}
