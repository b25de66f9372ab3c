package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/db"
)

// AgentRepository handles database operations for agent registrations
type AgentRepository struct {
	db *db.DB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(database *db.DB) *AgentRepository {
	return &AgentRepository{db: database}
}

// Create inserts a new agent registration
func (r *AgentRepository) Create(ctx context.Context, a *models.Agent) error {
	query := `
		INSERT INTO agents (id, name, type, secret_hash, state)
		VALUES ($1, $2, $3, $4, COALESCE($5, '{}'::jsonb))
	`

	_, err := r.db.Exec(ctx, query, a.ID, a.Name, a.Type, a.SecretHash, a.State)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

// GetByID retrieves an agent, nil when not found
func (r *AgentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	query := `
		SELECT id, name, type, secret_hash, state, last_heartbeat_at, created_at
		FROM agents
		WHERE id = $1
	`

	a := &models.Agent{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.Type, &a.SecretHash, &a.State, &a.LastHeartbeatAt, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return a, nil
}

// List returns all registered agents
func (r *AgentRepository) List(ctx context.Context) ([]*models.Agent, error) {
	query := `
		SELECT id, name, type, secret_hash, state, last_heartbeat_at, created_at
		FROM agents
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		a := &models.Agent{}
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.SecretHash, &a.State, &a.LastHeartbeatAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return agents, nil
}

// UpdateState replaces the agent's state bag and stamps the heartbeat
func (r *AgentRepository) UpdateState(ctx context.Context, id uuid.UUID, state []byte, heartbeatAt time.Time) error {
	query := `UPDATE agents SET state = $2, last_heartbeat_at = $3 WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, state, heartbeatAt)
	if err != nil {
		return fmt.Errorf("failed to update agent state: %w", err)
	}
	return nil
}

// MergeState merges a JSON object into the agent's state bag using
// jsonb concatenation, atomic in the database. Used for flag flips
// that must not race with heartbeat merges.
func (r *AgentRepository) MergeState(ctx context.Context, id uuid.UUID, patch []byte) error {
	query := `UPDATE agents SET state = COALESCE(state, '{}'::jsonb) || $2::jsonb WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, patch)
	if err != nil {
		return fmt.Errorf("failed to merge agent state: %w", err)
	}
	return nil
}

// MergeStateByType merges a JSON object into the state of every agent
// of the given type (e.g. abort flags for all scanners on stop).
func (r *AgentRepository) MergeStateByType(ctx context.Context, agentType models.AgentType, patch []byte) error {
	query := `UPDATE agents SET state = COALESCE(state, '{}'::jsonb) || $2::jsonb WHERE type = $1`

	_, err := r.db.Exec(ctx, query, agentType, patch)
	if err != nil {
		return fmt.Errorf("failed to merge agent state by type: %w", err)
	}
	return nil
}

// ClearStateKeys removes keys from the state bag of every agent of the
// given type. Used by scan reset to drop stale flags and checkpoints.
func (r *AgentRepository) ClearStateKeys(ctx context.Context, agentType models.AgentType, keys []string) error {
	query := `UPDATE agents SET state = COALESCE(state, '{}'::jsonb) - $2::text[] WHERE type = $1`

	_, err := r.db.Exec(ctx, query, agentType, keys)
	if err != nil {
		return fmt.Errorf("failed to clear agent state keys: %w", err)
	}
	return nil
}

// Delete revokes an agent registration
func (r *AgentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM agents WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}
