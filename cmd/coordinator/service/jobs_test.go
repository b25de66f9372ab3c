package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
)

func newJobFixture() (*JobService, *fakeJobStore, *fakeAssetStore, *captureQueue) {
	jobs := &fakeJobStore{}
	assets := newFakeAssetStore()
	q := &captureQueue{}
	log := testLogger()
	groups := NewStyleGroupService(newFakeGroupStore(), assets, q, log)
	return NewJobService(jobs, assets, groups, testAgentConfig(), log), jobs, assets, q
}

func seedAsset(t *testing.T, assets *fakeAssetStore, opts ...func(*models.Asset)) *models.Asset {
	t.Helper()
	a := &models.Asset{
		ID:       uuid.New(),
		Path:     "designs/AB1234DS/a.psd",
		Filename: "a.psd",
		Kind:     models.KindLayered,
	}
	for _, opt := range opts {
		opt(a)
	}
	require.NoError(t, assets.Create(context.Background(), a))
	return a
}

func TestCompleteRender_SuccessAppliesThumbnailAndRefreshes(t *testing.T) {
	svc, jobs, assets, q := newJobFixture()
	groupID := uuid.New()
	a := seedAsset(t, assets, func(a *models.Asset) { a.StyleGroupID = &groupID })
	jobs.completeResult = &models.RenderJob{ID: uuid.New(), AssetID: a.ID, Status: models.JobCompleted}

	url := "https://cdn/thumb.png"
	err := svc.CompleteRender(context.Background(), jobs.completeResult.ID, uuid.New(), &CompleteRenderRequest{
		Success:      true,
		ThumbnailURL: &url,
	})
	require.NoError(t, err)

	stored, err := assets.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.True(t, stored.HasUsableThumbnail())
	require.Equal(t, []string{groupID.String()}, q.keys(RefreshTopic))
}

func TestCompleteRender_FailurePreservesUsableThumbnail(t *testing.T) {
	svc, jobs, assets, _ := newJobFixture()
	url := "https://cdn/old.png"
	a := seedAsset(t, assets, func(a *models.Asset) { a.ThumbnailURL = &url })
	jobs.completeResult = &models.RenderJob{ID: uuid.New(), AssetID: a.ID, Status: models.JobFailed}

	msg := "corrupt layer data"
	err := svc.CompleteRender(context.Background(), jobs.completeResult.ID, uuid.New(), &CompleteRenderRequest{
		Success: false,
		Error:   &msg,
	})
	require.NoError(t, err)

	stored, err := assets.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.True(t, stored.HasUsableThumbnail())
	require.Nil(t, stored.ThumbnailError)
}

func TestCompleteRender_FailureRecordedWithoutThumbnail(t *testing.T) {
	svc, jobs, assets, _ := newJobFixture()
	a := seedAsset(t, assets)
	jobs.completeResult = &models.RenderJob{ID: uuid.New(), AssetID: a.ID, Status: models.JobFailed}

	msg := "corrupt layer data"
	err := svc.CompleteRender(context.Background(), jobs.completeResult.ID, uuid.New(), &CompleteRenderRequest{
		Success: false,
		Error:   &msg,
	})
	require.NoError(t, err)

	stored, err := assets.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ThumbnailError)
	require.Equal(t, msg, *stored.ThumbnailError)
}

func TestCompleteRender_LostClaimIsConflict(t *testing.T) {
	svc, jobs, _, _ := newJobFixture()
	jobs.completeResult = nil

	url := "https://cdn/thumb.png"
	err := svc.CompleteRender(context.Background(), uuid.New(), uuid.New(), &CompleteRenderRequest{
		Success:      true,
		ThumbnailURL: &url,
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestCompleteRender_SuccessRequiresThumbnail(t *testing.T) {
	svc, _, _, _ := newJobFixture()

	err := svc.CompleteRender(context.Background(), uuid.New(), uuid.New(), &CompleteRenderRequest{Success: true})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRetryRender_Conflict(t *testing.T) {
	svc, jobs, _, _ := newJobFixture()
	jobs.retryOK = false

	err := svc.RetryRender(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrConflict)

	jobs.retryOK = true
	require.NoError(t, svc.RetryRender(context.Background(), uuid.New()))
}

func TestCompletePost_LostClaimIsConflict(t *testing.T) {
	svc, jobs, _, _ := newJobFixture()
	jobs.postCompleted = false

	err := svc.CompletePost(context.Background(), uuid.New(), uuid.New(), true, nil)
	require.ErrorIs(t, err, ErrConflict)
}

func TestClampBatch(t *testing.T) {
	require.Equal(t, defaultClaimBatch, clampBatch(0))
	require.Equal(t, defaultClaimBatch, clampBatch(-5))
	require.Equal(t, 25, clampBatch(25))
	require.Equal(t, maxClaimBatch, clampBatch(1000))
}
