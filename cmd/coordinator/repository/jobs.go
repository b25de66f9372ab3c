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

// JobRepository handles both work queues. Claims are single atomic
// statements (skip-locked subselect + update) so no two callers ever
// receive the same job.
type JobRepository struct {
	db *db.DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(database *db.DB) *JobRepository {
	return &JobRepository{db: database}
}

// EnqueuePost inserts a pending post-processing job
func (r *JobRepository) EnqueuePost(ctx context.Context, assetID uuid.UUID, kind models.PostJobKind) error {
	query := `
		INSERT INTO post_jobs (id, asset_id, kind)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Exec(ctx, query, uuid.New(), assetID, kind)
	if err != nil {
		return fmt.Errorf("failed to enqueue post job: %w", err)
	}
	return nil
}

// ClaimPostJobs atomically claims up to batch pending post jobs for an
// agent. Rows locked by a concurrent claimer are skipped, not waited on.
func (r *JobRepository) ClaimPostJobs(ctx context.Context, agentID uuid.UUID, batch int) ([]*models.PostJob, error) {
	query := `
		UPDATE post_jobs
		SET status = 'claimed', claimed_by = $1, claimed_at = now(), attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM post_jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, asset_id, kind, status, attempts, claimed_by, claimed_at, completed_at, last_error, created_at
	`

	rows, err := r.db.Query(ctx, query, agentID, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to claim post jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.PostJob
	for rows.Next() {
		j := &models.PostJob{}
		if err := rows.Scan(&j.ID, &j.AssetID, &j.Kind, &j.Status, &j.Attempts,
			&j.ClaimedBy, &j.ClaimedAt, &j.CompletedAt, &j.LastError, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post job: %w", err)
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post jobs: %w", err)
	}

	return jobs, nil
}

// CompletePostJob records the outcome of a claimed post job. The
// claimed_by guard keeps a worker from completing someone else's claim.
func (r *JobRepository) CompletePostJob(ctx context.Context, id, agentID uuid.UUID, success bool, errMsg *string) (bool, error) {
	status := models.JobCompleted
	if !success {
		status = models.JobFailed
	}

	query := `
		UPDATE post_jobs
		SET status = $3, completed_at = now(), last_error = $4
		WHERE id = $1 AND claimed_by = $2 AND status = 'claimed'
	`

	tag, err := r.db.Exec(ctx, query, id, agentID, status, errMsg)
	if err != nil {
		return false, fmt.Errorf("failed to complete post job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SweepStalePostJobs returns jobs claimed longer than timeout to
// pending so another agent can pick them up.
func (r *JobRepository) SweepStalePostJobs(ctx context.Context, timeout time.Duration) (int64, error) {
	query := `
		UPDATE post_jobs
		SET status = 'pending', claimed_by = NULL, claimed_at = NULL
		WHERE status = 'claimed' AND claimed_at < now() - make_interval(secs => $1)
	`

	tag, err := r.db.Exec(ctx, query, timeout.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale post jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EnqueueRender inserts a pending render job
func (r *JobRepository) EnqueueRender(ctx context.Context, assetID uuid.UUID) error {
	query := `
		INSERT INTO render_jobs (id, asset_id)
		VALUES ($1, $2)
	`

	_, err := r.db.Exec(ctx, query, uuid.New(), assetID)
	if err != nil {
		return fmt.Errorf("failed to enqueue render job: %w", err)
	}
	return nil
}

// ClaimRenderJobs atomically claims up to batch render jobs, stamping
// a fresh lease and bumping the attempt count. Pending jobs are always
// eligible; a lease-expired claimed job is only reclaimable below the
// attempt ceiling. Results are joined with the owning asset's display
// fields.
func (r *JobRepository) ClaimRenderJobs(ctx context.Context, agentID uuid.UUID, batch int, lease time.Duration, maxAttempts int) ([]*models.RenderJobClaim, error) {
	query := `
		WITH eligible AS (
			SELECT id FROM render_jobs
			WHERE status = 'pending'
				OR (status = 'claimed' AND lease_expires_at < now() AND attempts < $3)
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE render_jobs rj
		SET status = 'claimed', claimed_by = $1, claimed_at = now(),
			attempts = rj.attempts + 1,
			lease_expires_at = now() + make_interval(secs => $2)
		FROM eligible e, assets a
		WHERE rj.id = e.id AND a.id = rj.asset_id
		RETURNING rj.id, rj.asset_id, rj.status, rj.attempts, rj.lease_expires_at,
			rj.claimed_by, rj.claimed_at, rj.completed_at, rj.last_error, rj.created_at,
			a.path, a.filename, a.kind
	`

	rows, err := r.db.Query(ctx, query, agentID, lease.Seconds(), maxAttempts, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to claim render jobs: %w", err)
	}
	defer rows.Close()

	var claims []*models.RenderJobClaim
	for rows.Next() {
		c := &models.RenderJobClaim{}
		if err := rows.Scan(&c.ID, &c.AssetID, &c.Status, &c.Attempts, &c.LeaseExpiresAt,
			&c.ClaimedBy, &c.ClaimedAt, &c.CompletedAt, &c.LastError, &c.CreatedAt,
			&c.AssetPath, &c.AssetFilename, &c.AssetKind); err != nil {
			return nil, fmt.Errorf("failed to scan render job claim: %w", err)
		}
		claims = append(claims, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating render job claims: %w", err)
	}

	return claims, nil
}

// CompleteRenderJob records the outcome of a claimed render job and
// always clears the lease. Returns nil when the job is not claimed by
// this agent (lost lease, already completed).
func (r *JobRepository) CompleteRenderJob(ctx context.Context, id, agentID uuid.UUID, success bool, errMsg *string) (*models.RenderJob, error) {
	status := models.JobCompleted
	if !success {
		status = models.JobFailed
	}

	query := `
		UPDATE render_jobs
		SET status = $3, completed_at = now(), lease_expires_at = NULL, last_error = $4
		WHERE id = $1 AND claimed_by = $2 AND status = 'claimed'
		RETURNING id, asset_id, status, attempts, lease_expires_at,
			claimed_by, claimed_at, completed_at, last_error, created_at
	`

	j := &models.RenderJob{}
	err := r.db.QueryRow(ctx, query, id, agentID, status, errMsg).Scan(
		&j.ID, &j.AssetID, &j.Status, &j.Attempts, &j.LeaseExpiresAt,
		&j.ClaimedBy, &j.ClaimedAt, &j.CompletedAt, &j.LastError, &j.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete render job: %w", err)
	}
	return j, nil
}

// FailExhaustedRenderJobs marks lease-expired jobs at the attempt
// ceiling as failed so they stop matching claim queries.
func (r *JobRepository) FailExhaustedRenderJobs(ctx context.Context, maxAttempts int) (int64, error) {
	query := `
		UPDATE render_jobs
		SET status = 'failed', lease_expires_at = NULL,
			last_error = COALESCE(last_error, 'attempt ceiling reached')
		WHERE status = 'claimed' AND lease_expires_at < now() AND attempts >= $1
	`

	tag, err := r.db.Exec(ctx, query, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to fail exhausted render jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RetryRenderJob requeues a failed job: error, claim fields, and
// completion time are cleared; the attempt history is kept. A pending
// job is always claimable, so a retried job runs again even at the
// ceiling.
func (r *JobRepository) RetryRenderJob(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE render_jobs
		SET status = 'pending', last_error = NULL, claimed_by = NULL,
			claimed_at = NULL, completed_at = NULL, lease_expires_at = NULL
		WHERE id = $1 AND status = 'failed'
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to retry render job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
