package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/stylehub/coordinator/cmd/coordinator/container"
	"github.com/stylehub/coordinator/cmd/coordinator/handlers"
	"github.com/stylehub/coordinator/cmd/coordinator/middleware"
)

// RegisterAssetRoutes registers read access to assets and style groups
func RegisterAssetRoutes(e *echo.Echo, ct *container.Container) {
	h := handlers.NewAssetHandler(ct.IngestService, ct.StyleGroupService)

	e.GET("/api/v1/assets/:id", h.GetAsset, middleware.RequireUser())
	e.GET("/api/v1/stylegroups/:id", h.GetStyleGroup, middleware.RequireUser())
}
