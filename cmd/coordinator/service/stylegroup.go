package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stylehub/coordinator/cmd/coordinator/cluster"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/logger"
	"github.com/stylehub/coordinator/common/queue"
)

// RefreshTopic carries style group refresh events. Delivery is best
// effort; a missed event only means a stale aggregate until the next
// refresh of the same group.
const RefreshTopic = "stylegroup.refresh"

// StyleGroupService maintains cluster membership and the cached group
// aggregates.
type StyleGroupService struct {
	groups StyleGroupStore
	assets AssetStore
	queue  queue.Queue
	log    *logger.Logger
}

// NewStyleGroupService creates a new style group service
func NewStyleGroupService(groups StyleGroupStore, assets AssetStore, q queue.Queue, log *logger.Logger) *StyleGroupService {
	return &StyleGroupService{
		groups: groups,
		assets: assets,
		queue:  q,
		log:    log,
	}
}

type refreshEvent struct {
	GroupID uuid.UUID `json:"group_id"`
}

// AssignMembership places an asset in the group derived from its path,
// creating the group on first sight of the key. A refresh event is
// published for every group whose member set changed, including the
// one the asset left. The asset's StyleGroupID field is updated in
// place.
func (s *StyleGroupService) AssignMembership(ctx context.Context, a *models.Asset) error {
	key := cluster.KeyFromPath(a.Path)
	prev := a.StyleGroupID

	if key == "" {
		if prev == nil {
			return nil
		}
		if err := s.assets.SetStyleGroup(ctx, a.ID, nil); err != nil {
			return err
		}
		a.StyleGroupID = nil
		s.PublishRefresh(ctx, *prev)
		return nil
	}

	seed := &models.StyleGroup{
		ID:           uuid.New(),
		GroupKey:     key,
		FolderPath:   cluster.FolderPathForKey(a.Path),
		Licensed:     a.Licensed,
		LicensorCode: a.LicensorCode,
		PropertyCode: a.PropertyCode,
		Taxonomy:     a.Taxonomy,
	}

	g, err := s.groups.UpsertByKey(ctx, seed)
	if err != nil {
		return err
	}

	if prev != nil && *prev == g.ID {
		// Same group; membership unchanged but attributes may have moved.
		s.PublishRefresh(ctx, g.ID)
		return nil
	}

	if err := s.assets.SetStyleGroup(ctx, a.ID, &g.ID); err != nil {
		return err
	}
	groupID := g.ID
	a.StyleGroupID = &groupID

	if prev != nil {
		s.PublishRefresh(ctx, *prev)
	}
	s.PublishRefresh(ctx, g.ID)
	return nil
}

// Refresh recomputes one group's aggregates from its full live member
// set. A group whose last member left is deleted. Idempotent, so
// redundant or reordered refresh events are harmless.
func (s *StyleGroupService) Refresh(ctx context.Context, groupID uuid.UUID) error {
	members, err := s.assets.ListByStyleGroup(ctx, groupID)
	if err != nil {
		return err
	}

	if len(members) == 0 {
		g, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return nil
		}
		s.log.Info("deleting empty style group", "group_id", groupID, "group_key", g.GroupKey)
		return s.groups.Delete(ctx, groupID)
	}

	agg := cluster.Aggregate(members)
	var primaryID *uuid.UUID
	if agg.Primary != nil {
		primaryID = &agg.Primary.ID
	}

	return s.groups.UpdateAggregates(ctx, groupID, primaryID, agg.MemberCount, agg.BestStatus, agg.LatestFileAt)
}

// PublishRefresh enqueues a refresh event for a group. Failures are
// logged and swallowed; aggregate staleness is preferable to failing
// the ingest that triggered the event.
func (s *StyleGroupService) PublishRefresh(ctx context.Context, groupID uuid.UUID) {
	payload, err := json.Marshal(refreshEvent{GroupID: groupID})
	if err != nil {
		s.log.Warn("failed to marshal refresh event", "group_id", groupID, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, RefreshTopic, groupID.String(), payload); err != nil {
		s.log.Warn("failed to publish refresh event", "group_id", groupID, "error", err)
	}
}

// StartRefreshConsumer subscribes to refresh events and applies them.
// Runs until ctx is canceled.
func (s *StyleGroupService) StartRefreshConsumer(ctx context.Context) error {
	return s.queue.Subscribe(ctx, RefreshTopic, func(ctx context.Context, key string, value []byte) error {
		var ev refreshEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("decode refresh event: %w", err)
		}
		return s.Refresh(ctx, ev.GroupID)
	})
}

// Get returns a style group, its live members, and its primary asset.
func (s *StyleGroupService) Get(ctx context.Context, id uuid.UUID) (*models.StyleGroup, []*models.Asset, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if g == nil {
		return nil, nil, fmt.Errorf("%w: style group %s", ErrNotFound, id)
	}

	members, err := s.assets.ListByStyleGroup(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return g, members, nil
}
