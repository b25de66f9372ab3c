package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	agentmw "github.com/stylehub/coordinator/cmd/coordinator/middleware"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/cmd/coordinator/service"
)

// IngestHandler accepts file observations from scanning agents
type IngestHandler struct {
	ingest *service.IngestService
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type ingestBatchRequest struct {
	Files []service.IngestRequest `json:"files"`
}

type ingestBatchResponse struct {
	Results []service.IngestResult `json:"results"`
}

// Ingest processes a batch of file observations. Each file succeeds or
// fails on its own; one bad file never aborts the batch.
// POST /api/v1/agents/ingest
func (h *IngestHandler) Ingest(c echo.Context) error {
	agent := agentmw.GetAgent(c)
	if agent.Type != models.AgentScanner {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "only scanning agents may ingest"})
	}

	var req ingestBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Files) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "files is required"})
	}

	ctx := c.Request().Context()
	results := make([]service.IngestResult, 0, len(req.Files))
	for i := range req.Files {
		result, err := h.ingest.Process(ctx, &req.Files[i])
		if err != nil {
			results = append(results, service.IngestResult{
				Outcome: service.OutcomeRejected,
				Reason:  err.Error(),
			})
			continue
		}
		results = append(results, *result)
	}

	return c.JSON(http.StatusOK, ingestBatchResponse{Results: results})
}
