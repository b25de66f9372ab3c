package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/db"
)

// PairingRepository handles database operations for pairing codes
type PairingRepository struct {
	db *db.DB
}

// NewPairingRepository creates a new pairing repository
func NewPairingRepository(database *db.DB) *PairingRepository {
	return &PairingRepository{db: database}
}

// Create inserts a new pending pairing code
func (r *PairingRepository) Create(ctx context.Context, p *models.PairingCode) error {
	query := `
		INSERT INTO pairing_codes (code, agent_name, agent_type, status, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query, p.Code, p.AgentName, p.AgentType, p.Status, p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create pairing code: %w", err)
	}
	return nil
}

// Consume atomically consumes a pending, unexpired code. The status
// guard makes a retried exchange a no-op instead of a double
// registration. Returns nil when the code is unknown, expired, or
// already consumed.
func (r *PairingRepository) Consume(ctx context.Context, code string) (*models.PairingCode, error) {
	query := `
		UPDATE pairing_codes
		SET status = 'consumed', consumed_at = now()
		WHERE code = $1 AND status = 'pending' AND expires_at > now()
		RETURNING code, agent_name, agent_type, status, expires_at, created_at, consumed_at
	`

	p := &models.PairingCode{}
	err := r.db.QueryRow(ctx, query, code).Scan(
		&p.Code, &p.AgentName, &p.AgentType, &p.Status, &p.ExpiresAt, &p.CreatedAt, &p.ConsumedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume pairing code: %w", err)
	}
	return p, nil
}
