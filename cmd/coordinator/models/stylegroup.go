package models

import (
	"time"

	"github.com/google/uuid"
)

// StyleGroup is a cluster of assets sharing a SKU folder key. The
// aggregate columns are caches recomputed from the live member set.
type StyleGroup struct {
	ID             uuid.UUID      `json:"id"`
	GroupKey       string         `json:"group_key"`
	FolderPath     string         `json:"folder_path"`
	Taxonomy       Taxonomy       `json:"taxonomy"`
	Licensed       bool           `json:"licensed"`
	LicensorCode   *string        `json:"licensor_code,omitempty"`
	PropertyCode   *string        `json:"property_code,omitempty"`
	PrimaryAssetID *uuid.UUID     `json:"primary_asset_id,omitempty"`
	MemberCount    int            `json:"member_count"`
	BestStatus     WorkflowStatus `json:"best_status"`
	LatestFileAt   *time.Time     `json:"latest_file_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
