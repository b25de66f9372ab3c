package models

import (
	"time"

	"github.com/google/uuid"
)

// AssetKind is the closed set of file kinds the coordinator accepts
type AssetKind string

const (
	KindLayered AssetKind = "layered" // layered raster source (PSD-style)
	KindVector  AssetKind = "vector"
	KindImage   AssetKind = "image" // flat raster export
	KindOther   AssetKind = "other"
)

// Valid reports whether k is a known kind
func (k AssetKind) Valid() bool {
	switch k {
	case KindLayered, KindVector, KindImage, KindOther:
		return true
	}
	return false
}

// Previewable reports whether k is a design source kind (vector or
// layered raster), the kinds preferred as style group covers.
func (k AssetKind) Previewable() bool {
	return k == KindLayered || k == KindVector
}

// WorkflowStatus is an asset's position in the approval pipeline,
// derived from folder names during ingest.
type WorkflowStatus string

const (
	StatusApproved WorkflowStatus = "approved"
	StatusInReview WorkflowStatus = "in_review"
	StatusConcept  WorkflowStatus = "concept"
	StatusOther    WorkflowStatus = "other"
)

// StatusPriority lists workflow statuses most-advanced first. A style
// group's best status is the first of these held by any member.
var StatusPriority = []WorkflowStatus{StatusApproved, StatusInReview, StatusConcept}

// Valid reports whether s is a known workflow status
func (s WorkflowStatus) Valid() bool {
	switch s {
	case StatusApproved, StatusInReview, StatusConcept, StatusOther:
		return true
	}
	return false
}

// Taxonomy holds the classification fields produced by the SKU parser
// and path-derived licensing metadata.
type Taxonomy struct {
	TypeCode     *string `json:"type_code,omitempty"`
	TypeName     *string `json:"type_name,omitempty"`
	SubtypeCode  *string `json:"subtype_code,omitempty"`
	SubtypeName  *string `json:"subtype_name,omitempty"`
	GroupCode    *string `json:"group_code,omitempty"`
	GroupName    *string `json:"group_name,omitempty"`
	SizeCode     *string `json:"size_code,omitempty"`
	SizeName     *string `json:"size_name,omitempty"`
	SequenceCode *string `json:"sequence_code,omitempty"`
	Category     *string `json:"category,omitempty"`
	Division     *string `json:"division,omitempty"`
}

// Asset is one physical design file
type Asset struct {
	ID               uuid.UUID      `json:"id"`
	Path             string         `json:"path"` // canonical, forward-slash relative
	Filename         string         `json:"filename"`
	Kind             AssetKind      `json:"kind"`
	SizeBytes        int64          `json:"size_bytes"`
	Width            int            `json:"width"`
	Height           int            `json:"height"`
	FileModifiedAt   time.Time      `json:"file_modified_at"`
	FileCreatedAt    time.Time      `json:"file_created_at"`
	QuickHash        string         `json:"quick_hash"`
	QuickHashVersion int            `json:"quick_hash_version"`
	ThumbnailURL     *string        `json:"thumbnail_url,omitempty"`
	ThumbnailError   *string        `json:"thumbnail_error,omitempty"`
	Status           WorkflowStatus `json:"status"`
	Licensed         bool           `json:"licensed"`
	LicensorCode     *string        `json:"licensor_code,omitempty"`
	LicensorName     *string        `json:"licensor_name,omitempty"`
	PropertyCode     *string        `json:"property_code,omitempty"`
	PropertyName     *string        `json:"property_name,omitempty"`
	Taxonomy         Taxonomy       `json:"taxonomy"`
	StyleGroupID     *uuid.UUID     `json:"style_group_id,omitempty"`
	Deleted          bool           `json:"deleted"`
	LastSeenAt       time.Time      `json:"last_seen_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasUsableThumbnail reports whether the asset has a rendered
// thumbnail and no recorded failure.
func (a *Asset) HasUsableThumbnail() bool {
	return a.ThumbnailURL != nil && *a.ThumbnailURL != "" && a.ThumbnailError == nil
}

// PathHistoryEntry links an asset's old path to its new one after a
// detected move.
type PathHistoryEntry struct {
	ID      uuid.UUID `json:"id"`
	AssetID uuid.UUID `json:"asset_id"`
	OldPath string    `json:"old_path"`
	NewPath string    `json:"new_path"`
	MovedAt time.Time `json:"moved_at"`
}
