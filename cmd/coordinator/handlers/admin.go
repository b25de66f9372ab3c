package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stylehub/coordinator/cmd/coordinator/service"
)

// AdminHandler hosts the offset-batched maintenance operations.
// Callers loop each endpoint, feeding next_offset back in, until done.
type AdminHandler struct {
	maintenance *service.MaintenanceService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(maintenance *service.MaintenanceService) *AdminHandler {
	return &AdminHandler{maintenance: maintenance}
}

type purgeRequest struct {
	OlderThanDays int `json:"older_than_days"`
	Offset        int `json:"offset"`
	Limit         int `json:"limit"`
}

// Purge soft-deletes one batch of assets not seen within the window
// POST /api/v1/admin/retention/purge
func (h *AdminHandler) Purge(c echo.Context) error {
	var req purgeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	olderThan := time.Duration(req.OlderThanDays) * 24 * time.Hour
	result, err := h.maintenance.PurgeRetention(c.Request().Context(), olderThan, req.Offset, req.Limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type batchRequest struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RebuildGroups re-derives cluster membership for one batch of assets
// POST /api/v1/admin/stylegroups/rebuild
func (h *AdminHandler) RebuildGroups(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.maintenance.RebuildGroups(c.Request().Context(), req.Offset, req.Limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Reclassify re-runs classification for one batch of assets
// POST /api/v1/admin/assets/reclassify
func (h *AdminHandler) Reclassify(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.maintenance.ReclassifyAssets(c.Request().Context(), req.Offset, req.Limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
