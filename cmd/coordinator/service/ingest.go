package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stylehub/coordinator/cmd/coordinator/clients"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/cmd/coordinator/policy"
	"github.com/stylehub/coordinator/cmd/coordinator/sku"
	"github.com/stylehub/coordinator/common/config"
	"github.com/stylehub/coordinator/common/logger"
)

// licensedMarker is the folder name that flags everything below it as
// licensed material. The next two deeper segments, when present, carry
// the licensor and property display names.
const licensedMarker = "character licensed"

// IngestOutcome labels what Process did with one reported file
type IngestOutcome string

const (
	OutcomeCreated  IngestOutcome = "created"
	OutcomeUpdated  IngestOutcome = "updated"
	OutcomeMoved    IngestOutcome = "moved"
	OutcomeSkipped  IngestOutcome = "skipped"
	OutcomeRejected IngestOutcome = "rejected"
)

// IngestRequest is one file observation reported by a scanning agent
type IngestRequest struct {
	Path             string           `json:"path"`
	Filename         string           `json:"filename"`
	Kind             models.AssetKind `json:"kind"`
	SizeBytes        int64            `json:"size_bytes"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	FileModifiedAt   time.Time        `json:"file_modified_at"`
	FileCreatedAt    time.Time        `json:"file_created_at"`
	QuickHash        string           `json:"quick_hash"`
	QuickHashVersion int              `json:"quick_hash_version"`
	ThumbnailURL     *string          `json:"thumbnail_url,omitempty"`
	ThumbnailError   *string          `json:"thumbnail_error,omitempty"`
}

// Validate checks the request shape
func (r *IngestRequest) Validate() error {
	if r.Path == "" {
		return fmt.Errorf("%w: path is required", ErrValidation)
	}
	if r.Filename == "" {
		return fmt.Errorf("%w: filename is required", ErrValidation)
	}
	if r.QuickHash == "" {
		return fmt.Errorf("%w: quick_hash is required", ErrValidation)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, r.Kind)
	}
	if r.ThumbnailURL != nil && r.ThumbnailError != nil {
		return fmt.Errorf("%w: thumbnail_url and thumbnail_error are mutually exclusive", ErrValidation)
	}
	return nil
}

// IngestResult reports the outcome for one file
type IngestResult struct {
	Outcome IngestOutcome `json:"outcome"`
	AssetID *uuid.UUID    `json:"asset_id,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// IngestService turns file observations into asset records. Reporting
// the same unchanged file twice converges on the same record; moved
// files keep their identity and history.
type IngestService struct {
	assets AssetStore
	jobs   JobStore
	groups *StyleGroupService
	lookup clients.NameLookup
	policy *policy.Evaluator
	cfg    config.IngestConfig
	log    *logger.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(assets AssetStore, jobs JobStore, groups *StyleGroupService, lookup clients.NameLookup, eval *policy.Evaluator, cfg config.IngestConfig, log *logger.Logger) *IngestService {
	return &IngestService{
		assets: assets,
		jobs:   jobs,
		groups: groups,
		lookup: lookup,
		policy: eval,
		cfg:    cfg,
		log:    log,
	}
}

// Process handles one reported file. Filter order is fixed: junk,
// scope, policy, then move detection before the path lookup so a moved
// file keeps its identity instead of spawning a duplicate.
func (s *IngestService) Process(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	path := normalizePath(req.Path)

	if isJunk(req.Filename) {
		return &IngestResult{Outcome: OutcomeSkipped, Reason: "junk file"}, nil
	}
	if !s.inScope(path) {
		return &IngestResult{Outcome: OutcomeRejected, Reason: "outside allowed subfolders"}, nil
	}

	accepted, err := s.policy.Accept(path, req.Filename, req.SizeBytes, string(req.Kind))
	if err != nil {
		s.log.Warn("ingest policy evaluation failed", "path", path, "error", err)
		return &IngestResult{Outcome: OutcomeRejected, Reason: "policy evaluation failed"}, nil
	}
	if !accepted {
		return &IngestResult{Outcome: OutcomeRejected, Reason: "rejected by policy"}, nil
	}

	candidate, err := s.assets.GetLiveByHash(ctx, req.QuickHash)
	if err != nil {
		return nil, err
	}
	if candidate != nil && candidate.Path != path {
		return s.applyMove(ctx, candidate, path, req)
	}

	existing, err := s.assets.GetLiveByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.applyUpdate(ctx, existing, req)
	}

	return s.create(ctx, path, req)
}

func (s *IngestService) applyMove(ctx context.Context, a *models.Asset, newPath string, req *IngestRequest) (*IngestResult, error) {
	oldPath := a.Path
	a.Path = newPath
	s.applyObservation(ctx, a, req)

	gainedThumbnail := s.applyThumbnail(a, req)

	if err := s.assets.Update(ctx, a); err != nil {
		return nil, err
	}
	if err := s.assets.RecordMove(ctx, a.ID, oldPath, newPath); err != nil {
		return nil, err
	}
	if gainedThumbnail {
		if err := s.jobs.EnqueuePost(ctx, a.ID, models.PostJobTagging); err != nil {
			return nil, err
		}
	}
	s.assignMembership(ctx, a)

	s.log.Info("asset moved", "asset_id", a.ID, "old_path", oldPath, "new_path", newPath)
	id := a.ID
	return &IngestResult{Outcome: OutcomeMoved, AssetID: &id}, nil
}

func (s *IngestService) applyUpdate(ctx context.Context, a *models.Asset, req *IngestRequest) (*IngestResult, error) {
	s.applyObservation(ctx, a, req)

	gainedThumbnail := s.applyThumbnail(a, req)

	if err := s.assets.Update(ctx, a); err != nil {
		return nil, err
	}
	if gainedThumbnail {
		if err := s.jobs.EnqueuePost(ctx, a.ID, models.PostJobTagging); err != nil {
			return nil, err
		}
	}
	s.assignMembership(ctx, a)

	id := a.ID
	return &IngestResult{Outcome: OutcomeUpdated, AssetID: &id}, nil
}

func (s *IngestService) create(ctx context.Context, path string, req *IngestRequest) (*IngestResult, error) {
	a := &models.Asset{
		ID:   uuid.New(),
		Path: path,
	}
	s.applyObservation(ctx, a, req)
	s.applyThumbnail(a, req)

	if err := s.assets.Create(ctx, a); err != nil {
		return nil, err
	}

	// New assets always get follow-up work: tag what already has a
	// preview, render source files, thumbnail the rest.
	switch {
	case a.HasUsableThumbnail():
		if err := s.jobs.EnqueuePost(ctx, a.ID, models.PostJobTagging); err != nil {
			return nil, err
		}
	case a.Kind.Previewable():
		if err := s.jobs.EnqueueRender(ctx, a.ID); err != nil {
			return nil, err
		}
	default:
		if err := s.jobs.EnqueuePost(ctx, a.ID, models.PostJobThumbnail); err != nil {
			return nil, err
		}
	}

	s.assignMembership(ctx, a)

	s.log.Info("asset created", "asset_id", a.ID, "path", path, "kind", a.Kind)
	id := a.ID
	return &IngestResult{Outcome: OutcomeCreated, AssetID: &id}, nil
}

// applyObservation copies the observed file attributes onto the asset
// and re-derives every classification field from the current path and
// filename. Thumbnail fields are handled separately.
func (s *IngestService) applyObservation(ctx context.Context, a *models.Asset, req *IngestRequest) {
	a.Filename = req.Filename
	a.Kind = req.Kind
	a.SizeBytes = req.SizeBytes
	a.Width = req.Width
	a.Height = req.Height
	a.FileModifiedAt = req.FileModifiedAt
	a.FileCreatedAt = req.FileCreatedAt
	a.QuickHash = req.QuickHash
	a.QuickHashVersion = req.QuickHashVersion

	s.classify(ctx, a)
}

// classify fills the taxonomy, workflow status, and licensing fields
// from the asset's path and filename. Path-derived display names win
// over lookup results; the lookup itself is best effort.
func (s *IngestService) classify(ctx context.Context, a *models.Asset) {
	res := sku.Parse(a.Filename)
	a.Taxonomy = models.Taxonomy{
		TypeCode:     strPtr(res.TypeCode),
		TypeName:     strPtr(res.TypeName),
		SubtypeCode:  strPtr(res.SubtypeCode),
		SubtypeName:  strPtr(res.SubtypeName),
		GroupCode:    strPtr(res.GroupCode),
		GroupName:    strPtr(res.GroupName),
		SizeCode:     strPtr(res.SizeCode),
		SizeName:     strPtr(res.SizeName),
		SequenceCode: strPtr(res.SequenceCode),
		Category:     strPtr(res.Category),
		Division:     strPtr(res.Division),
	}
	a.LicensorCode = strPtr(res.LicensorCode)
	a.PropertyCode = strPtr(res.PropertyCode)

	meta := derivePathMetadata(a.Path, s.cfg.StatusFolderMap)
	a.Status = meta.status
	a.Licensed = meta.licensed

	a.LicensorName = s.resolveName(ctx, "licensor", meta.licensorName, a.LicensorCode)
	a.PropertyName = s.resolveName(ctx, "property", meta.propertyName, a.PropertyCode)
}

// resolveName prefers the path-derived name, falling back to the
// external lookup for the parsed code.
func (s *IngestService) resolveName(ctx context.Context, kind string, pathName *string, code *string) *string {
	if pathName != nil {
		return pathName
	}
	if code == nil || s.lookup == nil {
		return nil
	}
	name, found, err := s.lookup.ResolveName(ctx, kind, *code)
	if err != nil || !found {
		return nil
	}
	return &name
}

// applyThumbnail folds the reported thumbnail fields into the asset
// under the preservation rule: a recorded failure never replaces a
// usable thumbnail. Returns true when the asset went from no usable
// thumbnail to having one.
func (s *IngestService) applyThumbnail(a *models.Asset, req *IngestRequest) bool {
	hadUsable := a.HasUsableThumbnail()

	if req.ThumbnailURL != nil && *req.ThumbnailURL != "" {
		a.ThumbnailURL = req.ThumbnailURL
		a.ThumbnailError = nil
	} else if req.ThumbnailError != nil && !hadUsable {
		a.ThumbnailURL = nil
		a.ThumbnailError = req.ThumbnailError
	}

	return !hadUsable && a.HasUsableThumbnail()
}

// assignMembership places the asset in its cluster. Best effort:
// clustering failures are logged, never surfaced, because the asset
// record itself is already durable.
func (s *IngestService) assignMembership(ctx context.Context, a *models.Asset) {
	if s.groups == nil {
		return
	}
	if err := s.groups.AssignMembership(ctx, a); err != nil {
		s.log.Warn("failed to assign style group", "asset_id", a.ID, "path", a.Path, "error", err)
	}
}

// Reclassify re-derives all classification fields for an existing
// asset and persists it. Used by the admin reclassify batch after
// taxonomy table changes.
func (s *IngestService) Reclassify(ctx context.Context, a *models.Asset) error {
	s.classify(ctx, a)
	return s.assets.Update(ctx, a)
}

// GetAsset returns one asset with its move history
func (s *IngestService) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, []*models.PathHistoryEntry, error) {
	a, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, fmt.Errorf("%w: asset %s", ErrNotFound, id)
	}

	history, err := s.assets.ListPathHistory(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return a, history, nil
}

// inScope applies the allowed-subfolder filter. An empty allowlist
// admits everything; otherwise some path segment must match.
func (s *IngestService) inScope(path string) bool {
	if len(s.cfg.AllowedSubfolders) == 0 {
		return true
	}
	for _, seg := range strings.Split(path, "/") {
		for _, allowed := range s.cfg.AllowedSubfolders {
			if strings.EqualFold(seg, allowed) {
				return true
			}
		}
	}
	return false
}

// normalizePath canonicalizes a reported path: forward slashes, no
// empty segments, no leading or trailing slash.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" && part != "." {
			out = append(out, part)
		}
	}
	return strings.Join(out, "/")
}

// isJunk filters hidden, system, and scratch files
func isJunk(filename string) bool {
	lower := strings.ToLower(filename)
	if strings.HasPrefix(lower, ".") || strings.HasPrefix(lower, "~") {
		return true
	}
	if strings.HasSuffix(lower, ".tmp") {
		return true
	}
	// Finder custom-icon files are literally named "Icon\r".
	return lower == "thumbs.db" || lower == "desktop.ini" || lower == "icon\r"
}

type pathMetadata struct {
	status       models.WorkflowStatus
	licensed     bool
	licensorName *string
	propertyName *string
}

// derivePathMetadata extracts the workflow status and licensing
// metadata from the directory segments of a canonical path. The
// deepest matching status folder wins. Directly below the licensed
// marker folder sit the licensor folder and, one deeper, the property
// folder; their names are taken verbatim.
func derivePathMetadata(path string, statusMap map[string]string) pathMetadata {
	meta := pathMetadata{status: models.StatusOther}
	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return meta
	}
	dirs := segments[:len(segments)-1]

	for i := len(dirs) - 1; i >= 0; i-- {
		if mapped, ok := statusMap[strings.ToLower(dirs[i])]; ok {
			if st := models.WorkflowStatus(mapped); st.Valid() {
				meta.status = st
				break
			}
		}
	}

	for i, dir := range dirs {
		if !strings.EqualFold(dir, licensedMarker) {
			continue
		}
		meta.licensed = true
		if i+1 < len(dirs) {
			name := dirs[i+1]
			meta.licensorName = &name
		}
		if i+2 < len(dirs) {
			name := dirs[i+2]
			meta.propertyName = &name
		}
		break
	}

	return meta
}

// strPtr returns nil for the empty string
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
