package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/stylehub/coordinator/cmd/coordinator/container"
	"github.com/stylehub/coordinator/cmd/coordinator/handlers"
	"github.com/stylehub/coordinator/cmd/coordinator/middleware"
)

// RegisterAdminRoutes registers the batched maintenance operations
func RegisterAdminRoutes(e *echo.Echo, ct *container.Container) {
	h := handlers.NewAdminHandler(ct.MaintenanceService)

	admin := e.Group("/api/v1/admin", middleware.RequireUser())
	{
		admin.POST("/retention/purge", h.Purge)
		admin.POST("/stylegroups/rebuild", h.RebuildGroups)
		admin.POST("/assets/reclassify", h.Reclassify)
	}
}
