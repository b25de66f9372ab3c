// Package service implements the coordinator's business logic on top
// of the repositories. Services accept narrow store interfaces so the
// persistence layer can be swapped out in tests.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
)

// AssetStore is the persistence surface services need for assets.
// *repository.AssetRepository satisfies it.
type AssetStore interface {
	Create(ctx context.Context, a *models.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetLiveByPath(ctx context.Context, path string) (*models.Asset, error)
	GetLiveByHash(ctx context.Context, quickHash string) (*models.Asset, error)
	Update(ctx context.Context, a *models.Asset) error
	UpdateThumbnail(ctx context.Context, id uuid.UUID, url, failure *string) error
	SetStyleGroup(ctx context.Context, id uuid.UUID, groupID *uuid.UUID) error
	RecordMove(ctx context.Context, assetID uuid.UUID, oldPath, newPath string) error
	ListPathHistory(ctx context.Context, assetID uuid.UUID) ([]*models.PathHistoryEntry, error)
	ListByStyleGroup(ctx context.Context, groupID uuid.UUID) ([]*models.Asset, error)
	ListLiveChunk(ctx context.Context, offset, limit int) ([]*models.Asset, error)
	ListNotSeenSince(ctx context.Context, cutoff time.Time, offset, limit int) ([]*models.Asset, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// StyleGroupStore is the persistence surface for style groups
type StyleGroupStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.StyleGroup, error)
	GetByKey(ctx context.Context, key string) (*models.StyleGroup, error)
	UpsertByKey(ctx context.Context, g *models.StyleGroup) (*models.StyleGroup, error)
	UpdateAggregates(ctx context.Context, id uuid.UUID, primaryAssetID *uuid.UUID, memberCount int, bestStatus models.WorkflowStatus, latestFileAt *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AgentStore is the persistence surface for agent registrations
type AgentStore interface {
	Create(ctx context.Context, a *models.Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	List(ctx context.Context) ([]*models.Agent, error)
	UpdateState(ctx context.Context, id uuid.UUID, state []byte, heartbeatAt time.Time) error
	MergeState(ctx context.Context, id uuid.UUID, patch []byte) error
	MergeStateByType(ctx context.Context, agentType models.AgentType, patch []byte) error
	ClearStateKeys(ctx context.Context, agentType models.AgentType, keys []string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ScanRequestStore is the persistence surface for the scan request row
type ScanRequestStore interface {
	Get(ctx context.Context) (*models.ScanRequest, error)
	Request(ctx context.Context, requestedBy string) (bool, error)
	Claim(ctx context.Context, agentID, sessionID uuid.UUID) (*models.ScanRequest, error)
	Touch(ctx context.Context, sessionID uuid.UUID, checkpoint *string) (bool, error)
	CompleteBySession(ctx context.Context, sessionID uuid.UUID, status models.ScanStatus, message *string) (bool, error)
	Cancel(ctx context.Context, message string) (bool, error)
	Reset(ctx context.Context) error
}

// JobStore is the persistence surface for both work queues
type JobStore interface {
	EnqueuePost(ctx context.Context, assetID uuid.UUID, kind models.PostJobKind) error
	ClaimPostJobs(ctx context.Context, agentID uuid.UUID, batch int) ([]*models.PostJob, error)
	CompletePostJob(ctx context.Context, id, agentID uuid.UUID, success bool, errMsg *string) (bool, error)
	SweepStalePostJobs(ctx context.Context, timeout time.Duration) (int64, error)
	EnqueueRender(ctx context.Context, assetID uuid.UUID) error
	ClaimRenderJobs(ctx context.Context, agentID uuid.UUID, batch int, lease time.Duration, maxAttempts int) ([]*models.RenderJobClaim, error)
	CompleteRenderJob(ctx context.Context, id, agentID uuid.UUID, success bool, errMsg *string) (*models.RenderJob, error)
	FailExhaustedRenderJobs(ctx context.Context, maxAttempts int) (int64, error)
	RetryRenderJob(ctx context.Context, id uuid.UUID) (bool, error)
}

// PairingStore is the persistence surface for pairing codes
type PairingStore interface {
	Create(ctx context.Context, p *models.PairingCode) error
	Consume(ctx context.Context, code string) (*models.PairingCode, error)
}
