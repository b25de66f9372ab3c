package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/stylehub/coordinator/cmd/coordinator/container"
	"github.com/stylehub/coordinator/cmd/coordinator/handlers"
	"github.com/stylehub/coordinator/cmd/coordinator/middleware"
)

// RegisterJobRoutes registers the agent job queues and job admin
func RegisterJobRoutes(e *echo.Echo, ct *container.Container) {
	h := handlers.NewJobsHandler(ct.JobService)

	agents := e.Group("/api/v1/agents", middleware.AgentAuth(ct.AgentRepo))
	{
		agents.POST("/jobs/claim", h.ClaimPost)
		agents.POST("/jobs/:id/complete", h.CompletePost)
		agents.POST("/render-jobs/claim", h.ClaimRender)
		agents.POST("/render-jobs/:id/complete", h.CompleteRender)
	}

	admin := e.Group("/api/v1/admin", middleware.RequireUser())
	{
		admin.POST("/jobs/sweep", h.Sweep)
		admin.POST("/render-jobs/:id/retry", h.RetryRender)
	}
}
