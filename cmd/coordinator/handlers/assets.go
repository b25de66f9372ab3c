package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stylehub/coordinator/cmd/coordinator/service"
)

// AssetHandler serves read access to assets and style groups
type AssetHandler struct {
	ingest *service.IngestService
	groups *service.StyleGroupService
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(ingest *service.IngestService, groups *service.StyleGroupService) *AssetHandler {
	return &AssetHandler{
		ingest: ingest,
		groups: groups,
	}
}

// GetAsset returns one asset with its move history
// GET /api/v1/assets/:id
func (h *AssetHandler) GetAsset(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid asset id"})
	}

	asset, history, err := h.ingest.GetAsset(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"asset":        asset,
		"path_history": history,
	})
}

// GetStyleGroup returns one style group with its live members
// GET /api/v1/stylegroups/:id
func (h *AssetHandler) GetStyleGroup(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid style group id"})
	}

	group, members, err := h.groups.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"style_group": group,
		"members":     members,
	})
}
