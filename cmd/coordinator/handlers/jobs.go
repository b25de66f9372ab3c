package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	agentmw "github.com/stylehub/coordinator/cmd/coordinator/middleware"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/cmd/coordinator/service"
)

// JobsHandler fronts both work queues for agents and admins
type JobsHandler struct {
	jobs *service.JobService
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(jobs *service.JobService) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// ClaimPost claims a batch of post-processing jobs
// POST /api/v1/agents/jobs/claim?batch=10
func (h *JobsHandler) ClaimPost(c echo.Context) error {
	agent := agentmw.GetAgent(c)
	batch, _ := strconv.Atoi(c.QueryParam("batch"))

	jobs, err := h.jobs.ClaimPost(c.Request().Context(), agent.ID, batch)
	if err != nil {
		return writeError(c, err)
	}
	if jobs == nil {
		jobs = []*models.PostJob{}
	}
	return c.JSON(http.StatusOK, map[string]any{"jobs": jobs})
}

type completePostRequest struct {
	Success bool    `json:"success"`
	Error   *string `json:"error,omitempty"`
}

// CompletePost records a post job outcome
// POST /api/v1/agents/jobs/:id/complete
func (h *JobsHandler) CompletePost(c echo.Context) error {
	agent := agentmw.GetAgent(c)
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid job id"})
	}

	var req completePostRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.jobs.CompletePost(c.Request().Context(), jobID, agent.ID, req.Success, req.Error); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ClaimRender claims a batch of render jobs with fresh leases
// POST /api/v1/agents/render-jobs/claim?batch=5
func (h *JobsHandler) ClaimRender(c echo.Context) error {
	agent := agentmw.GetAgent(c)
	if agent.Type != models.AgentRenderer {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "only rendering agents may claim render jobs"})
	}
	batch, _ := strconv.Atoi(c.QueryParam("batch"))

	claims, err := h.jobs.ClaimRender(c.Request().Context(), agent.ID, batch)
	if err != nil {
		return writeError(c, err)
	}
	if claims == nil {
		claims = []*models.RenderJobClaim{}
	}
	return c.JSON(http.StatusOK, map[string]any{"jobs": claims})
}

// CompleteRender records a render outcome and applies it to the asset
// POST /api/v1/agents/render-jobs/:id/complete
func (h *JobsHandler) CompleteRender(c echo.Context) error {
	agent := agentmw.GetAgent(c)
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid job id"})
	}

	var req service.CompleteRenderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.jobs.CompleteRender(c.Request().Context(), jobID, agent.ID, &req); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// RetryRender requeues a failed render job
// POST /api/v1/admin/render-jobs/:id/retry
func (h *JobsHandler) RetryRender(c echo.Context) error {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid job id"})
	}

	if err := h.jobs.RetryRender(c.Request().Context(), jobID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "requeued"})
}

// Sweep requeues stuck post jobs and fails exhausted render jobs
// POST /api/v1/admin/jobs/sweep
func (h *JobsHandler) Sweep(c echo.Context) error {
	result, err := h.jobs.Sweep(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
