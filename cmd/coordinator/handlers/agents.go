package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	agentmw "github.com/stylehub/coordinator/cmd/coordinator/middleware"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/cmd/coordinator/service"
	"github.com/stylehub/coordinator/common/logger"
	"github.com/stylehub/coordinator/common/ratelimit"
)

// AgentHandler handles pairing, heartbeats, and agent administration
type AgentHandler struct {
	pairing   *service.PairingService
	heartbeat *service.HeartbeatService
	agents    service.AgentStore
	limiter   *ratelimit.Limiter
	limit     int64
	windowSec int
	log       *logger.Logger
}

// NewAgentHandler creates a new agent handler. limiter may be nil when
// redis is unavailable; heartbeats are then unthrottled.
func NewAgentHandler(pairing *service.PairingService, heartbeat *service.HeartbeatService, agents service.AgentStore, limiter *ratelimit.Limiter, limit int64, windowSec int, log *logger.Logger) *AgentHandler {
	return &AgentHandler{
		pairing:   pairing,
		heartbeat: heartbeat,
		agents:    agents,
		limiter:   limiter,
		limit:     limit,
		windowSec: windowSec,
		log:       log,
	}
}

type createPairingCodeRequest struct {
	AgentName string           `json:"agent_name"`
	AgentType models.AgentType `json:"agent_type"`
}

// CreatePairingCode issues a pairing code for a new agent
// POST /api/v1/admin/pairing-codes
func (h *AgentHandler) CreatePairingCode(c echo.Context) error {
	var req createPairingCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	code, err := h.pairing.CreateCode(c.Request().Context(), req.AgentName, req.AgentType)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, code)
}

type exchangeRequest struct {
	Code string `json:"code"`
}

// Exchange trades a pairing code for permanent agent credentials
// POST /api/v1/agents/pair
func (h *AgentHandler) Exchange(c echo.Context) error {
	var req exchangeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.pairing.Exchange(c.Request().Context(), req.Code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Heartbeat absorbs an agent report and returns policy plus commands
// POST /api/v1/agents/heartbeat
func (h *AgentHandler) Heartbeat(c echo.Context) error {
	agent := agentmw.GetAgent(c)
	ctx := c.Request().Context()

	if h.limiter != nil {
		result, err := h.limiter.CheckAgentLimit(ctx, agent.ID.String(), h.limit, h.windowSec)
		if err != nil {
			// Redis outage must not ground the agent fleet.
			h.log.Warn("heartbeat rate limit check failed", "agent_id", agent.ID, "error", err)
		} else if !result.Allowed {
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "heartbeat rate limit exceeded",
				"retry_after": result.RetryAfterSeconds,
			})
		}
	}

	var req service.HeartbeatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.heartbeat.Process(ctx, agent, &req, time.Now())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

type agentView struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	Type            models.AgentType `json:"type"`
	LastHeartbeatAt *time.Time       `json:"last_heartbeat_at,omitempty"`
	Health          json.RawMessage  `json:"health,omitempty"`
	Counters        json.RawMessage  `json:"counters,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// List returns all registered agents with their latest health
// GET /api/v1/agents
func (h *AgentHandler) List(c echo.Context) error {
	agents, err := h.agents.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, agentView{
			ID:              a.ID,
			Name:            a.Name,
			Type:            a.Type,
			LastHeartbeatAt: a.LastHeartbeatAt,
			Health:          service.ExtractHealth(a.State),
			Counters:        service.ExtractCounters(a.State),
			CreatedAt:       a.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"agents": views})
}

// Delete revokes an agent registration
// DELETE /api/v1/admin/agents/:id
func (h *AgentHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid agent id"})
	}

	if err := h.agents.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}

	h.log.Info("agent revoked", "agent_id", id)
	return c.NoContent(http.StatusNoContent)
}
