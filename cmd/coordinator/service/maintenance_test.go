package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
)

type stubReclassifier struct {
	seen []uuid.UUID
}

func (s *stubReclassifier) Reclassify(ctx context.Context, a *models.Asset) error {
	s.seen = append(s.seen, a.ID)
	return nil
}

func newMaintenanceFixture() (*MaintenanceService, *fakeAssetStore, *fakeGroupStore, *stubReclassifier) {
	assets := newFakeAssetStore()
	groups := newFakeGroupStore()
	q := &captureQueue{}
	log := testLogger()
	reclass := &stubReclassifier{}
	groupSvc := NewStyleGroupService(groups, assets, q, log)
	return NewMaintenanceService(assets, groupSvc, reclass, log), assets, groups, reclass
}

func agedAsset(t *testing.T, assets *fakeAssetStore, path string, lastSeen time.Time) *models.Asset {
	t.Helper()
	a := &models.Asset{
		ID:       uuid.New(),
		Path:     path,
		Filename: "a.psd",
		Kind:     models.KindLayered,
	}
	require.NoError(t, assets.Create(context.Background(), a))
	assets.assets[a.ID].LastSeenAt = lastSeen
	return a
}

func TestPurgeRetention_SoftDeletesAndRefreshes(t *testing.T) {
	svc, assets, groups, _ := newMaintenanceFixture()
	ctx := context.Background()

	stale := agedAsset(t, assets, "designs/AB1234DS/old.psd", time.Now().Add(-60*24*time.Hour))
	fresh := agedAsset(t, assets, "designs/AB1234DS/new.psd", time.Now())

	groupID := uuid.New()
	_, err := groups.UpsertByKey(ctx, &models.StyleGroup{ID: groupID, GroupKey: "AB1234DS"})
	require.NoError(t, err)
	assets.assets[stale.ID].StyleGroupID = &groupID
	assets.assets[fresh.ID].StyleGroupID = &groupID

	result, err := svc.PurgeRetention(ctx, 30*24*time.Hour, 0, 100)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, 0, result.NextOffset)
	require.True(t, result.Done)

	gone, err := assets.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	require.True(t, gone.Deleted)

	kept, err := assets.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.False(t, kept.Deleted)

	// The group survived with its remaining member counted.
	g, err := groups.GetByID(ctx, groupID)
	require.NoError(t, err)
	require.NotNil(t, g)
	require.Equal(t, 1, g.MemberCount)
}

func TestPurgeRetention_Validation(t *testing.T) {
	svc, _, _, _ := newMaintenanceFixture()

	_, err := svc.PurgeRetention(context.Background(), 0, 0, 100)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRebuildGroups_AdvancesOffset(t *testing.T) {
	svc, assets, groups, _ := newMaintenanceFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		agedAsset(t, assets, "designs/AB1234DS/a.psd", time.Now())
	}

	first, err := svc.RebuildGroups(ctx, 0, 2)
	require.NoError(t, err)
	require.Equal(t, 2, first.Processed)
	require.Equal(t, 2, first.NextOffset)
	require.False(t, first.Done)

	second, err := svc.RebuildGroups(ctx, first.NextOffset, 2)
	require.NoError(t, err)
	require.Equal(t, 1, second.Processed)
	require.True(t, second.Done)

	g, err := groups.GetByKey(ctx, "AB1234DS")
	require.NoError(t, err)
	require.NotNil(t, g)
}

func TestReclassifyAssets_VisitsEveryLiveAsset(t *testing.T) {
	svc, assets, _, reclass := newMaintenanceFixture()
	ctx := context.Background()

	live := agedAsset(t, assets, "designs/AB1234DS/a.psd", time.Now())
	dead := agedAsset(t, assets, "designs/AB1234DS/b.psd", time.Now())
	require.NoError(t, assets.SoftDelete(ctx, dead.ID))

	result, err := svc.ReclassifyAssets(ctx, 0, 100)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.True(t, result.Done)
	require.Equal(t, []uuid.UUID{live.ID}, reclass.seen)
}
