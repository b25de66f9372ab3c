package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/logger"
)

const defaultBatchLimit = 500

// Reclassifier re-derives and persists an asset's classification
type Reclassifier interface {
	Reclassify(ctx context.Context, a *models.Asset) error
}

// BatchResult reports progress of one offset-driven maintenance batch.
// Callers loop, feeding NextOffset back in, until Done.
type BatchResult struct {
	Processed  int  `json:"processed"`
	NextOffset int  `json:"next_offset"`
	Done       bool `json:"done"`
}

// MaintenanceService hosts the offset-batched admin operations:
// retention purge, cluster rebuild, and reclassification.
type MaintenanceService struct {
	assets     AssetStore
	groups     *StyleGroupService
	reclassify Reclassifier
	log        *logger.Logger
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(assets AssetStore, groups *StyleGroupService, reclassify Reclassifier, log *logger.Logger) *MaintenanceService {
	return &MaintenanceService{
		assets:     assets,
		groups:     groups,
		reclassify: reclassify,
		log:        log,
	}
}

// PurgeRetention soft-deletes one batch of live assets not seen since
// the cutoff and refreshes each affected group. Deleting shrinks the
// candidate set, so the next batch starts at the same offset.
func (s *MaintenanceService) PurgeRetention(ctx context.Context, olderThan time.Duration, offset, limit int) (*BatchResult, error) {
	if olderThan <= 0 {
		return nil, fmt.Errorf("%w: older_than must be positive", ErrValidation)
	}
	limit = clampLimit(limit)
	cutoff := time.Now().Add(-olderThan)

	chunk, err := s.assets.ListNotSeenSince(ctx, cutoff, offset, limit)
	if err != nil {
		return nil, err
	}

	touched := map[uuid.UUID]struct{}{}
	for _, a := range chunk {
		if err := s.assets.SoftDelete(ctx, a.ID); err != nil {
			return nil, err
		}
		if a.StyleGroupID != nil {
			touched[*a.StyleGroupID] = struct{}{}
		}
	}

	for groupID := range touched {
		if err := s.groups.Refresh(ctx, groupID); err != nil {
			s.log.Warn("failed to refresh group after purge", "group_id", groupID, "error", err)
		}
	}

	if len(chunk) > 0 {
		s.log.Info("retention purge batch", "purged", len(chunk), "cutoff", cutoff)
	}
	return &BatchResult{
		Processed:  len(chunk),
		NextOffset: offset,
		Done:       len(chunk) < limit,
	}, nil
}

// RebuildGroups re-derives cluster membership for one batch of live
// assets. Run over the full set after a grouping rule change.
func (s *MaintenanceService) RebuildGroups(ctx context.Context, offset, limit int) (*BatchResult, error) {
	limit = clampLimit(limit)

	chunk, err := s.assets.ListLiveChunk(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	for _, a := range chunk {
		if err := s.groups.AssignMembership(ctx, a); err != nil {
			return nil, fmt.Errorf("rebuild membership for asset %s: %w", a.ID, err)
		}
	}

	return &BatchResult{
		Processed:  len(chunk),
		NextOffset: offset + len(chunk),
		Done:       len(chunk) < limit,
	}, nil
}

// ReclassifyAssets re-runs classification for one batch of live
// assets. Run after taxonomy table or folder rule changes.
func (s *MaintenanceService) ReclassifyAssets(ctx context.Context, offset, limit int) (*BatchResult, error) {
	limit = clampLimit(limit)

	chunk, err := s.assets.ListLiveChunk(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	for _, a := range chunk {
		if err := s.reclassify.Reclassify(ctx, a); err != nil {
			return nil, fmt.Errorf("reclassify asset %s: %w", a.ID, err)
		}
	}

	return &BatchResult{
		Processed:  len(chunk),
		NextOffset: offset + len(chunk),
		Done:       len(chunk) < limit,
	}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultBatchLimit
	}
	return limit
}
