package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	agentmw "github.com/stylehub/coordinator/cmd/coordinator/middleware"
	"github.com/stylehub/coordinator/cmd/coordinator/service"
)

// ScanHandler drives the scan request lifecycle
type ScanHandler struct {
	scan *service.ScanService
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scan *service.ScanService) *ScanHandler {
	return &ScanHandler{scan: scan}
}

// Request asks for a scan on behalf of the calling operator
// POST /api/v1/scan/request
func (h *ScanHandler) Request(c echo.Context) error {
	requestedBy := agentmw.GetUsername(c)
	if requestedBy == "" {
		requestedBy = "operator"
	}

	req, err := h.scan.Request(c.Request().Context(), requestedBy)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, req)
}

// Stop cancels the active scan and flags scanners to abort
// POST /api/v1/scan/stop
func (h *ScanHandler) Stop(c echo.Context) error {
	stoppedBy := agentmw.GetUsername(c)
	if stoppedBy == "" {
		stoppedBy = "operator"
	}

	if err := h.scan.Stop(c.Request().Context(), stoppedBy); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopped"})
}

// Reset force-clears scan state, the recovery path for stale scans
// POST /api/v1/scan/reset
func (h *ScanHandler) Reset(c echo.Context) error {
	if err := h.scan.Reset(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

// Status returns the scan request with a staleness verdict
// GET /api/v1/scan/status
func (h *ScanHandler) Status(c echo.Context) error {
	view, err := h.scan.Status(c.Request().Context(), time.Now())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Progress applies one scan progress report from an agent
// POST /api/v1/agents/scan/progress
func (h *ScanHandler) Progress(c echo.Context) error {
	agent := agentmw.GetAgent(c)

	var report service.ProgressReport
	if err := c.Bind(&report); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.scan.ReportProgress(c.Request().Context(), agent.ID, &report); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
