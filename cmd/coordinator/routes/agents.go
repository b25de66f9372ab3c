// Package routes wires handlers to URL groups.
package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/stylehub/coordinator/cmd/coordinator/container"
	"github.com/stylehub/coordinator/cmd/coordinator/handlers"
	"github.com/stylehub/coordinator/cmd/coordinator/middleware"
)

// RegisterAgentRoutes registers pairing, heartbeat, and agent admin
// routes. Pairing exchange is the only unauthenticated agent endpoint;
// everything else under /agents requires agent credentials.
func RegisterAgentRoutes(e *echo.Echo, ct *container.Container) {
	cfg := ct.Components.Config.Agent
	h := handlers.NewAgentHandler(
		ct.PairingService,
		ct.HeartbeatService,
		ct.AgentRepo,
		ct.Limiter,
		cfg.HeartbeatLimit,
		cfg.HeartbeatWindowSec,
		ct.Components.Logger,
	)

	e.POST("/api/v1/agents/pair", h.Exchange)

	agents := e.Group("/api/v1/agents", middleware.AgentAuth(ct.AgentRepo))
	{
		agents.POST("/heartbeat", h.Heartbeat)
	}

	e.GET("/api/v1/agents", h.List, middleware.RequireUser())

	admin := e.Group("/api/v1/admin", middleware.RequireUser())
	{
		admin.POST("/pairing-codes", h.CreatePairingCode)
		admin.DELETE("/agents/:id", h.Delete)
	}
}
