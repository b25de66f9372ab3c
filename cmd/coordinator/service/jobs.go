package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/config"
	"github.com/stylehub/coordinator/common/logger"
)

const (
	defaultClaimBatch = 10
	maxClaimBatch     = 100
)

// CompleteRenderRequest reports the outcome of one render job
type CompleteRenderRequest struct {
	Success      bool    `json:"success"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
	Error        *string `json:"error,omitempty"`
}

// SweepResult summarizes one maintenance sweep over both queues
type SweepResult struct {
	PostRequeued int64 `json:"post_requeued"`
	RenderFailed int64 `json:"render_failed"`
}

// JobService fronts both work queues and folds render outcomes back
// onto assets.
type JobService struct {
	jobs   JobStore
	assets AssetStore
	groups *StyleGroupService
	cfg    config.AgentConfig
	log    *logger.Logger
}

// NewJobService creates a new job service
func NewJobService(jobs JobStore, assets AssetStore, groups *StyleGroupService, cfg config.AgentConfig, log *logger.Logger) *JobService {
	return &JobService{
		jobs:   jobs,
		assets: assets,
		groups: groups,
		cfg:    cfg,
		log:    log,
	}
}

// ClaimPost claims a batch of post-processing jobs for an agent. An
// empty result is normal, not an error.
func (s *JobService) ClaimPost(ctx context.Context, agentID uuid.UUID, batch int) ([]*models.PostJob, error) {
	return s.jobs.ClaimPostJobs(ctx, agentID, clampBatch(batch))
}

// CompletePost records a post job outcome. Losing the claim in the
// meantime is a conflict.
func (s *JobService) CompletePost(ctx context.Context, jobID, agentID uuid.UUID, success bool, errMsg *string) error {
	ok, err := s.jobs.CompletePostJob(ctx, jobID, agentID, success, errMsg)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job is not claimed by this agent", ErrConflict)
	}
	return nil
}

// ClaimRender claims a batch of render jobs with a fresh lease
func (s *JobService) ClaimRender(ctx context.Context, agentID uuid.UUID, batch int) ([]*models.RenderJobClaim, error) {
	return s.jobs.ClaimRenderJobs(ctx, agentID, clampBatch(batch), s.cfg.RenderLease, s.cfg.RenderMaxAttempts)
}

// CompleteRender records a render outcome and applies it to the owning
// asset: a delivered thumbnail replaces whatever was there, a failure
// is recorded only when it would not clobber a usable thumbnail.
// Either way the asset's group is asked to refresh, because both paths
// can change the primary choice.
func (s *JobService) CompleteRender(ctx context.Context, jobID, agentID uuid.UUID, req *CompleteRenderRequest) error {
	if req.Success && (req.ThumbnailURL == nil || *req.ThumbnailURL == "") {
		return fmt.Errorf("%w: successful render must carry thumbnail_url", ErrValidation)
	}

	job, err := s.jobs.CompleteRenderJob(ctx, jobID, agentID, req.Success, req.Error)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: job is not claimed by this agent", ErrConflict)
	}

	asset, err := s.assets.GetByID(ctx, job.AssetID)
	if err != nil {
		return err
	}
	if asset == nil || asset.Deleted {
		// Asset purged while the render ran; the outcome has nowhere to go.
		return nil
	}

	if req.Success {
		if err := s.assets.UpdateThumbnail(ctx, asset.ID, req.ThumbnailURL, nil); err != nil {
			return err
		}
	} else if !asset.HasUsableThumbnail() {
		failure := req.Error
		if failure == nil {
			msg := "render failed"
			failure = &msg
		}
		if err := s.assets.UpdateThumbnail(ctx, asset.ID, nil, failure); err != nil {
			return err
		}
	}

	if s.groups != nil && asset.StyleGroupID != nil {
		s.groups.PublishRefresh(ctx, *asset.StyleGroupID)
	}
	return nil
}

// RetryRender requeues one failed render job
func (s *JobService) RetryRender(ctx context.Context, jobID uuid.UUID) error {
	ok, err := s.jobs.RetryRenderJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job is not in a failed state", ErrConflict)
	}
	s.log.Info("render job requeued", "job_id", jobID)
	return nil
}

// Sweep requeues post jobs stuck past the claim timeout and fails
// render jobs whose lease expired at the attempt ceiling.
func (s *JobService) Sweep(ctx context.Context) (*SweepResult, error) {
	requeued, err := s.jobs.SweepStalePostJobs(ctx, s.cfg.PostClaimTimeout)
	if err != nil {
		return nil, err
	}

	failed, err := s.jobs.FailExhaustedRenderJobs(ctx, s.cfg.RenderMaxAttempts)
	if err != nil {
		return nil, err
	}

	if requeued > 0 || failed > 0 {
		s.log.Info("job sweep", "post_requeued", requeued, "render_failed", failed)
	}
	return &SweepResult{PostRequeued: requeued, RenderFailed: failed}, nil
}

func clampBatch(batch int) int {
	if batch <= 0 {
		return defaultClaimBatch
	}
	if batch > maxClaimBatch {
		return maxClaimBatch
	}
	return batch
}
