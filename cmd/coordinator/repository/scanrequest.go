package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/db"
)

const scanRequestColumns = `
	name, status, requested_by, claimed_by, session_id, checkpoint,
	message, requested_at, claimed_at, updated_at
`

// ScanRequestRepository handles the singleton scan request row. Every
// transition is a conditional update keyed on the current status so
// concurrent agents and operators cannot double-apply one.
type ScanRequestRepository struct {
	db *db.DB
}

// NewScanRequestRepository creates a new scan request repository
func NewScanRequestRepository(database *db.DB) *ScanRequestRepository {
	return &ScanRequestRepository{db: database}
}

func scanScanRequest(row pgx.Row) (*models.ScanRequest, error) {
	s := &models.ScanRequest{}
	err := row.Scan(
		&s.Name, &s.Status, &s.RequestedBy, &s.ClaimedBy, &s.SessionID,
		&s.Checkpoint, &s.Message, &s.RequestedAt, &s.ClaimedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the singleton scan request row
func (r *ScanRequestRepository) Get(ctx context.Context) (*models.ScanRequest, error) {
	query := `SELECT` + scanRequestColumns + `FROM scan_requests WHERE name = $1`

	s, err := scanScanRequest(r.db.QueryRow(ctx, query, models.ScanRequestName))
	if err != nil {
		return nil, fmt.Errorf("failed to get scan request: %w", err)
	}
	return s, nil
}

// Request transitions idle/terminal -> pending. Returns false when a
// request is already pending or claimed.
func (r *ScanRequestRepository) Request(ctx context.Context, requestedBy string) (bool, error) {
	query := `
		UPDATE scan_requests
		SET status = 'pending', requested_by = $2, requested_at = now(),
			claimed_by = NULL, session_id = NULL, message = NULL, updated_at = now()
		WHERE name = $1 AND status NOT IN ('pending', 'claimed')
	`

	tag, err := r.db.Exec(ctx, query, models.ScanRequestName, requestedBy)
	if err != nil {
		return false, fmt.Errorf("failed to request scan: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Claim atomically transitions pending -> claimed for one agent,
// recording a fresh session id. Exactly one of N concurrent claimers
// wins; the rest see (nil, nil).
func (r *ScanRequestRepository) Claim(ctx context.Context, agentID, sessionID uuid.UUID) (*models.ScanRequest, error) {
	query := `
		UPDATE scan_requests
		SET status = 'claimed', claimed_by = $2, session_id = $3,
			claimed_at = now(), updated_at = now()
		WHERE name = $1 AND status = 'pending'
		RETURNING` + scanRequestColumns

	s, err := scanScanRequest(r.db.QueryRow(ctx, query, models.ScanRequestName, agentID, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim scan request: %w", err)
	}
	return s, nil
}

// Touch updates the checkpoint and freshness of a claimed request,
// matched by session id. Returns false when the session no longer owns
// the request.
func (r *ScanRequestRepository) Touch(ctx context.Context, sessionID uuid.UUID, checkpoint *string) (bool, error) {
	query := `
		UPDATE scan_requests
		SET checkpoint = COALESCE($2, checkpoint), updated_at = now()
		WHERE name = $1 AND session_id = $3 AND status = 'claimed'
	`

	tag, err := r.db.Exec(ctx, query, models.ScanRequestName, checkpoint, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to touch scan request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteBySession transitions claimed -> completed|failed, matched
// by session id.
func (r *ScanRequestRepository) CompleteBySession(ctx context.Context, sessionID uuid.UUID, status models.ScanStatus, message *string) (bool, error) {
	if status != models.ScanCompleted && status != models.ScanFailed {
		return false, fmt.Errorf("invalid terminal scan status: %s", status)
	}

	query := `
		UPDATE scan_requests
		SET status = $2, message = $3, updated_at = now()
		WHERE name = $1 AND session_id = $4 AND status = 'claimed'
	`

	tag, err := r.db.Exec(ctx, query, models.ScanRequestName, status, message, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to complete scan request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Cancel force-transitions pending/claimed -> canceled
func (r *ScanRequestRepository) Cancel(ctx context.Context, message string) (bool, error) {
	query := `
		UPDATE scan_requests
		SET status = 'canceled', message = $2, updated_at = now()
		WHERE name = $1 AND status IN ('pending', 'claimed')
	`

	tag, err := r.db.Exec(ctx, query, models.ScanRequestName, message)
	if err != nil {
		return false, fmt.Errorf("failed to cancel scan request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Reset unconditionally returns the request to idle and clears the
// resumable checkpoint. The designated recovery path for stale state.
func (r *ScanRequestRepository) Reset(ctx context.Context) error {
	query := `
		UPDATE scan_requests
		SET status = 'idle', claimed_by = NULL, session_id = NULL,
			checkpoint = NULL, message = NULL, updated_at = now()
		WHERE name = $1
	`

	_, err := r.db.Exec(ctx, query, models.ScanRequestName)
	if err != nil {
		return fmt.Errorf("failed to reset scan request: %w", err)
	}
	return nil
}
