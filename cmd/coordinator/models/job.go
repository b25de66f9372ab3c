package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is shared by both queues
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobClaimed   JobStatus = "claimed"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// PostJobKind is the closed set of lightweight post-processing jobs
type PostJobKind string

const (
	PostJobThumbnail PostJobKind = "thumbnail"
	PostJobTagging   PostJobKind = "tagging"
)

// PostJob is a lightweight post-processing job (thumbnail fetch,
// tagging) claimed in batches by agents.
type PostJob struct {
	ID          uuid.UUID   `json:"id"`
	AssetID     uuid.UUID   `json:"asset_id"`
	Kind        PostJobKind `json:"kind"`
	Status      JobStatus   `json:"status"`
	Attempts    int         `json:"attempts"`
	ClaimedBy   *uuid.UUID  `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time  `json:"claimed_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	LastError   *string     `json:"last_error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RenderJob is a heavyweight rendering job with a time-boxed lease.
// A completed job's lease is always cleared; a job at the attempt
// ceiling is never reclaimed.
type RenderJob struct {
	ID             uuid.UUID  `json:"id"`
	AssetID        uuid.UUID  `json:"asset_id"`
	Status         JobStatus  `json:"status"`
	Attempts       int        `json:"attempts"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	ClaimedBy      *uuid.UUID `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RenderJobClaim is a claimed render job joined with the owning
// asset's display fields, returned to the rendering agent.
type RenderJobClaim struct {
	RenderJob
	AssetPath     string    `json:"asset_path"`
	AssetFilename string    `json:"asset_filename"`
	AssetKind     AssetKind `json:"asset_kind"`
}
