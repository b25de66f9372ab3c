package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/logger"
	"github.com/stylehub/coordinator/common/queue"
)

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

// fakeAssetStore is an in-memory AssetStore
type fakeAssetStore struct {
	assets  map[uuid.UUID]*models.Asset
	history []*models.PathHistoryEntry
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{assets: make(map[uuid.UUID]*models.Asset)}
}

func (f *fakeAssetStore) Create(ctx context.Context, a *models.Asset) error {
	cp := *a
	cp.LastSeenAt = time.Now()
	f.assets[a.ID] = &cp
	return nil
}

func (f *fakeAssetStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	a, ok := f.assets[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssetStore) GetLiveByPath(ctx context.Context, path string) (*models.Asset, error) {
	for _, a := range f.assets {
		if !a.Deleted && a.Path == path {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAssetStore) GetLiveByHash(ctx context.Context, quickHash string) (*models.Asset, error) {
	var best *models.Asset
	for _, a := range f.assets {
		if a.Deleted || a.QuickHash != quickHash {
			continue
		}
		if best == nil || a.LastSeenAt.After(best.LastSeenAt) {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeAssetStore) Update(ctx context.Context, a *models.Asset) error {
	cp := *a
	cp.LastSeenAt = time.Now()
	f.assets[a.ID] = &cp
	return nil
}

func (f *fakeAssetStore) UpdateThumbnail(ctx context.Context, id uuid.UUID, url, failure *string) error {
	if a, ok := f.assets[id]; ok {
		a.ThumbnailURL = url
		a.ThumbnailError = failure
	}
	return nil
}

func (f *fakeAssetStore) SetStyleGroup(ctx context.Context, id uuid.UUID, groupID *uuid.UUID) error {
	if a, ok := f.assets[id]; ok {
		a.StyleGroupID = groupID
	}
	return nil
}

func (f *fakeAssetStore) RecordMove(ctx context.Context, assetID uuid.UUID, oldPath, newPath string) error {
	f.history = append(f.history, &models.PathHistoryEntry{
		ID:      uuid.New(),
		AssetID: assetID,
		OldPath: oldPath,
		NewPath: newPath,
		MovedAt: time.Now(),
	})
	return nil
}

func (f *fakeAssetStore) ListPathHistory(ctx context.Context, assetID uuid.UUID) ([]*models.PathHistoryEntry, error) {
	var out []*models.PathHistoryEntry
	for _, e := range f.history {
		if e.AssetID == assetID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAssetStore) ListByStyleGroup(ctx context.Context, groupID uuid.UUID) ([]*models.Asset, error) {
	var out []*models.Asset
	for _, a := range f.assets {
		if !a.Deleted && a.StyleGroupID != nil && *a.StyleGroupID == groupID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAssetStore) sortedLive(filter func(*models.Asset) bool) []*models.Asset {
	var out []*models.Asset
	for _, a := range f.assets {
		if !a.Deleted && filter(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func chunk(all []*models.Asset, offset, limit int) []*models.Asset {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func (f *fakeAssetStore) ListLiveChunk(ctx context.Context, offset, limit int) ([]*models.Asset, error) {
	return chunk(f.sortedLive(func(*models.Asset) bool { return true }), offset, limit), nil
}

func (f *fakeAssetStore) ListNotSeenSince(ctx context.Context, cutoff time.Time, offset, limit int) ([]*models.Asset, error) {
	return chunk(f.sortedLive(func(a *models.Asset) bool { return a.LastSeenAt.Before(cutoff) }), offset, limit), nil
}

func (f *fakeAssetStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if a, ok := f.assets[id]; ok {
		a.Deleted = true
		a.StyleGroupID = nil
	}
	return nil
}

// fakeGroupStore is an in-memory StyleGroupStore
type fakeGroupStore struct {
	groups map[uuid.UUID]*models.StyleGroup
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{groups: make(map[uuid.UUID]*models.StyleGroup)}
}

func (f *fakeGroupStore) GetByID(ctx context.Context, id uuid.UUID) (*models.StyleGroup, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGroupStore) GetByKey(ctx context.Context, key string) (*models.StyleGroup, error) {
	for _, g := range f.groups {
		if g.GroupKey == key {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeGroupStore) UpsertByKey(ctx context.Context, g *models.StyleGroup) (*models.StyleGroup, error) {
	if existing, _ := f.GetByKey(ctx, g.GroupKey); existing != nil {
		return existing, nil
	}
	cp := *g
	f.groups[g.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeGroupStore) UpdateAggregates(ctx context.Context, id uuid.UUID, primaryAssetID *uuid.UUID, memberCount int, bestStatus models.WorkflowStatus, latestFileAt *time.Time) error {
	if g, ok := f.groups[id]; ok {
		g.PrimaryAssetID = primaryAssetID
		g.MemberCount = memberCount
		g.BestStatus = bestStatus
		g.LatestFileAt = latestFileAt
	}
	return nil
}

func (f *fakeGroupStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.groups, id)
	return nil
}

// fakeJobStore records enqueues and scripted claim results
type fakeJobStore struct {
	postJobs []struct {
		AssetID uuid.UUID
		Kind    models.PostJobKind
	}
	renderJobs     []uuid.UUID
	completeResult *models.RenderJob
	postCompleted  bool
	retryOK        bool
}

func (f *fakeJobStore) EnqueuePost(ctx context.Context, assetID uuid.UUID, kind models.PostJobKind) error {
	f.postJobs = append(f.postJobs, struct {
		AssetID uuid.UUID
		Kind    models.PostJobKind
	}{assetID, kind})
	return nil
}

func (f *fakeJobStore) ClaimPostJobs(ctx context.Context, agentID uuid.UUID, batch int) ([]*models.PostJob, error) {
	return nil, nil
}

func (f *fakeJobStore) CompletePostJob(ctx context.Context, id, agentID uuid.UUID, success bool, errMsg *string) (bool, error) {
	return f.postCompleted, nil
}

func (f *fakeJobStore) SweepStalePostJobs(ctx context.Context, timeout time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeJobStore) EnqueueRender(ctx context.Context, assetID uuid.UUID) error {
	f.renderJobs = append(f.renderJobs, assetID)
	return nil
}

func (f *fakeJobStore) ClaimRenderJobs(ctx context.Context, agentID uuid.UUID, batch int, lease time.Duration, maxAttempts int) ([]*models.RenderJobClaim, error) {
	return nil, nil
}

func (f *fakeJobStore) CompleteRenderJob(ctx context.Context, id, agentID uuid.UUID, success bool, errMsg *string) (*models.RenderJob, error) {
	return f.completeResult, nil
}

func (f *fakeJobStore) FailExhaustedRenderJobs(ctx context.Context, maxAttempts int) (int64, error) {
	return 0, nil
}

func (f *fakeJobStore) RetryRenderJob(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.retryOK, nil
}

// fakeAgentStore is an in-memory AgentStore capturing state mutations
type fakeAgentStore struct {
	agents      map[uuid.UUID]*models.Agent
	mergedType  []byte
	clearedKeys []string
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{agents: make(map[uuid.UUID]*models.Agent)}
}

func (f *fakeAgentStore) Create(ctx context.Context, a *models.Agent) error {
	cp := *a
	f.agents[a.ID] = &cp
	return nil
}

func (f *fakeAgentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAgentStore) List(ctx context.Context) ([]*models.Agent, error) {
	var out []*models.Agent
	for _, a := range f.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeAgentStore) UpdateState(ctx context.Context, id uuid.UUID, state []byte, heartbeatAt time.Time) error {
	if a, ok := f.agents[id]; ok {
		a.State = state
		at := heartbeatAt
		a.LastHeartbeatAt = &at
	}
	return nil
}

func (f *fakeAgentStore) MergeState(ctx context.Context, id uuid.UUID, patch []byte) error {
	return nil
}

func (f *fakeAgentStore) MergeStateByType(ctx context.Context, agentType models.AgentType, patch []byte) error {
	f.mergedType = patch
	return nil
}

func (f *fakeAgentStore) ClearStateKeys(ctx context.Context, agentType models.AgentType, keys []string) error {
	f.clearedKeys = keys
	return nil
}

func (f *fakeAgentStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.agents, id)
	return nil
}

// fakeScanStore scripts the singleton scan row transitions
type fakeScanStore struct {
	request      *models.ScanRequest
	requestOK    bool
	cancelOK     bool
	touchOK      bool
	completeOK   bool
	claimResult  *models.ScanRequest
	resetCalled  bool
	lastComplete models.ScanStatus
}

func (f *fakeScanStore) Get(ctx context.Context) (*models.ScanRequest, error) {
	return f.request, nil
}

func (f *fakeScanStore) Request(ctx context.Context, requestedBy string) (bool, error) {
	return f.requestOK, nil
}

func (f *fakeScanStore) Claim(ctx context.Context, agentID, sessionID uuid.UUID) (*models.ScanRequest, error) {
	if f.claimResult != nil {
		sid := sessionID
		f.claimResult.SessionID = &sid
	}
	return f.claimResult, nil
}

func (f *fakeScanStore) Touch(ctx context.Context, sessionID uuid.UUID, checkpoint *string) (bool, error) {
	return f.touchOK, nil
}

func (f *fakeScanStore) CompleteBySession(ctx context.Context, sessionID uuid.UUID, status models.ScanStatus, message *string) (bool, error) {
	f.lastComplete = status
	return f.completeOK, nil
}

func (f *fakeScanStore) Cancel(ctx context.Context, message string) (bool, error) {
	return f.cancelOK, nil
}

func (f *fakeScanStore) Reset(ctx context.Context) error {
	f.resetCalled = true
	return nil
}

// fakePairingStore scripts code consumption
type fakePairingStore struct {
	created *models.PairingCode
	consume *models.PairingCode
}

func (f *fakePairingStore) Create(ctx context.Context, p *models.PairingCode) error {
	f.created = p
	return nil
}

func (f *fakePairingStore) Consume(ctx context.Context, code string) (*models.PairingCode, error) {
	if f.consume != nil && f.consume.Code == code {
		out := f.consume
		f.consume = nil
		return out, nil
	}
	return nil, nil
}

// captureQueue records published messages without delivering them
type captureQueue struct {
	mu        sync.Mutex
	published []queue.Message
}

func (q *captureQueue) Publish(ctx context.Context, topic, key string, message []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, queue.Message{Topic: topic, Key: key, Value: message})
	return nil
}

func (q *captureQueue) Subscribe(ctx context.Context, topic string, handler queue.MessageHandler) error {
	return nil
}

func (q *captureQueue) Close() error { return nil }

func (q *captureQueue) keys(topic string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, m := range q.published {
		if m.Topic == topic {
			out = append(out, m.Key)
		}
	}
	return out
}
