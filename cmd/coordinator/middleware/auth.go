package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/cmd/coordinator/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// AgentKey is the context key for the authenticated agent
	AgentKey ContextKey = "agent"
	// UsernameKey is the context key for the operator username
	UsernameKey ContextKey = "username"
)

// AgentAuth authenticates agent requests from the X-Agent-ID and
// X-Agent-Secret headers. The secret digest comparison is constant
// time; every failure mode returns the same 401 so probing cannot
// distinguish unknown agents from wrong secrets.
func AgentAuth(agents service.AgentStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idHeader := c.Request().Header.Get("X-Agent-ID")
			secret := c.Request().Header.Get("X-Agent-Secret")
			if idHeader == "" || secret == "" {
				return unauthorized(c)
			}

			agentID, err := uuid.Parse(idHeader)
			if err != nil {
				return unauthorized(c)
			}

			agent, err := agents.GetByID(c.Request().Context(), agentID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "failed to authenticate agent",
				})
			}
			if agent == nil {
				return unauthorized(c)
			}

			provided := []byte(service.HashSecret(secret))
			stored := []byte(agent.SecretHash)
			if subtle.ConstantTimeCompare(provided, stored) != 1 {
				return unauthorized(c)
			}

			c.Set(string(AgentKey), agent)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": "invalid agent credentials",
	})
}

// GetAgent retrieves the authenticated agent from the request context.
// Only meaningful behind AgentAuth.
func GetAgent(c echo.Context) *models.Agent {
	agent, _ := c.Get(string(AgentKey)).(*models.Agent)
	return agent
}

// RequireUser guards operator and admin endpoints: requests without an
// X-User-ID header are rejected. Identity only; the header is set by
// the fronting gateway, which owns authentication of human users.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-User-ID") == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing user identity",
				})
			}
			return next(c)
		}
	}
}

// ExtractUsername stores the X-User-ID header in the request context
// for operator attribution on scan requests.
func ExtractUsername() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if username := c.Request().Header.Get("X-User-ID"); username != "" {
				c.Set(string(UsernameKey), username)
			}
			return next(c)
		}
	}
}

// GetUsername retrieves the operator username, empty when absent
func GetUsername(c echo.Context) string {
	username, _ := c.Get(string(UsernameKey)).(string)
	return username
}
