package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/cmd/coordinator/policy"
	"github.com/stylehub/coordinator/common/config"
)

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		StatusFolderMap: map[string]string{
			"approved":  "approved",
			"in review": "in_review",
			"concepts":  "concept",
		},
	}
}

type ingestFixture struct {
	svc    *IngestService
	assets *fakeAssetStore
	jobs   *fakeJobStore
	groups *fakeGroupStore
	queue  *captureQueue
}

func newIngestFixture(t *testing.T, cfg config.IngestConfig, eval *policy.Evaluator) *ingestFixture {
	t.Helper()
	assets := newFakeAssetStore()
	jobs := &fakeJobStore{}
	groups := newFakeGroupStore()
	q := &captureQueue{}
	log := testLogger()

	groupSvc := NewStyleGroupService(groups, assets, q, log)
	return &ingestFixture{
		svc:    NewIngestService(assets, jobs, groupSvc, nil, eval, cfg, log),
		assets: assets,
		jobs:   jobs,
		groups: groups,
		queue:  q,
	}
}

func observation(path, filename string, kind models.AssetKind, hash string) *IngestRequest {
	return &IngestRequest{
		Path:             path,
		Filename:         filename,
		Kind:             kind,
		SizeBytes:        1024,
		FileModifiedAt:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		FileCreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		QuickHash:        hash,
		QuickHashVersion: 1,
	}
}

func TestIngest_CreateClassifiesAndEnqueuesRender(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)
	ctx := context.Background()

	result, err := f.svc.Process(ctx, observation("designs/Approved/AB1234DS/AB1234DS art.psd", "AB1234DS art.psd", models.KindLayered, "h1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, result.Outcome)
	require.NotNil(t, result.AssetID)

	a, err := f.assets.GetByID(ctx, *result.AssetID)
	require.NoError(t, err)
	require.NotNil(t, a)
	require.Equal(t, models.StatusApproved, a.Status)
	require.NotNil(t, a.Taxonomy.TypeCode)
	require.Equal(t, "A", *a.Taxonomy.TypeCode)
	require.NotNil(t, a.LicensorCode)
	require.Equal(t, "DS", *a.LicensorCode)

	// A source kind without a thumbnail goes to the render queue.
	require.Equal(t, []uuid.UUID{a.ID}, f.jobs.renderJobs)
	require.Empty(t, f.jobs.postJobs)

	// The SKU folder produced a style group membership.
	require.NotNil(t, a.StyleGroupID)
	g, err := f.groups.GetByID(ctx, *a.StyleGroupID)
	require.NoError(t, err)
	require.Equal(t, "AB1234DS", g.GroupKey)
}

func TestIngest_CreateFlatImageEnqueuesThumbnailJob(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)

	result, err := f.svc.Process(context.Background(), observation("designs/AB1234DS/AB1234DS.png", "AB1234DS.png", models.KindImage, "h1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, result.Outcome)

	require.Empty(t, f.jobs.renderJobs)
	require.Len(t, f.jobs.postJobs, 1)
	require.Equal(t, models.PostJobThumbnail, f.jobs.postJobs[0].Kind)
}

func TestIngest_Idempotent(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)
	ctx := context.Background()
	req := observation("designs/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1")

	first, err := f.svc.Process(ctx, req)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, first.Outcome)

	second, err := f.svc.Process(ctx, req)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, second.Outcome)
	require.Equal(t, *first.AssetID, *second.AssetID)

	require.Len(t, f.assets.assets, 1)
	// Only the create enqueued work.
	require.Len(t, f.jobs.renderJobs, 1)
}

func TestIngest_MoveKeepsIdentityAndHistory(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)
	ctx := context.Background()

	created, err := f.svc.Process(ctx, observation("designs/Concepts/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1"))
	require.NoError(t, err)

	moved, err := f.svc.Process(ctx, observation("designs/Approved/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeMoved, moved.Outcome)
	require.Equal(t, *created.AssetID, *moved.AssetID)

	a, err := f.assets.GetByID(ctx, *created.AssetID)
	require.NoError(t, err)
	require.Equal(t, "designs/Approved/AB1234DS/a.psd", a.Path)
	// Status follows the new folder.
	require.Equal(t, models.StatusApproved, a.Status)

	history, err := f.assets.ListPathHistory(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "designs/Concepts/AB1234DS/a.psd", history[0].OldPath)
	require.Equal(t, "designs/Approved/AB1234DS/a.psd", history[0].NewPath)
}

func TestIngest_JunkSkipped(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)

	for _, filename := range []string{".DS_Store", "~$draft.psd", "Thumbs.db", "export.tmp", "Icon\r"} {
		result, err := f.svc.Process(context.Background(), observation("designs/"+filename, filename, models.KindOther, "h-"+filename))
		require.NoError(t, err)
		require.Equal(t, OutcomeSkipped, result.Outcome, filename)
	}
	require.Empty(t, f.assets.assets)
}

func TestIngest_ScopeFilter(t *testing.T) {
	cfg := testIngestConfig()
	cfg.AllowedSubfolders = []string{"Designs"}
	f := newIngestFixture(t, cfg, nil)
	ctx := context.Background()

	out, err := f.svc.Process(ctx, observation("archive/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, out.Outcome)

	in, err := f.svc.Process(ctx, observation("designs/AB1234DS/a.psd", "a.psd", models.KindLayered, "h2"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, in.Outcome)
}

func TestIngest_PolicyRejects(t *testing.T) {
	eval, err := policy.NewEvaluator(`size < 100`)
	require.NoError(t, err)
	f := newIngestFixture(t, testIngestConfig(), eval)

	result, err := f.svc.Process(context.Background(), observation("designs/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)
	require.Empty(t, f.assets.assets)
}

func TestIngest_ThumbnailFailureNeverClobbersThumbnail(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)
	ctx := context.Background()

	req := observation("designs/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1")
	url := "https://cdn/thumb.png"
	req.ThumbnailURL = &url
	created, err := f.svc.Process(ctx, req)
	require.NoError(t, err)

	failing := observation("designs/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1")
	failure := "render crashed"
	failing.ThumbnailError = &failure
	_, err = f.svc.Process(ctx, failing)
	require.NoError(t, err)

	a, err := f.assets.GetByID(ctx, *created.AssetID)
	require.NoError(t, err)
	require.True(t, a.HasUsableThumbnail())
	require.Nil(t, a.ThumbnailError)
}

func TestIngest_TaggingJobWhenThumbnailArrives(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)
	ctx := context.Background()

	created, err := f.svc.Process(ctx, observation("designs/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1"))
	require.NoError(t, err)

	update := observation("designs/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1")
	url := "https://cdn/thumb.png"
	update.ThumbnailURL = &url
	_, err = f.svc.Process(ctx, update)
	require.NoError(t, err)

	require.Len(t, f.jobs.postJobs, 1)
	require.Equal(t, models.PostJobTagging, f.jobs.postJobs[0].Kind)
	require.Equal(t, *created.AssetID, f.jobs.postJobs[0].AssetID)
}

func TestIngest_LicensedPathMetadata(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)

	result, err := f.svc.Process(context.Background(),
		observation("designs/Character Licensed/Disney/Mickey/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1"))
	require.NoError(t, err)

	a, err := f.assets.GetByID(context.Background(), *result.AssetID)
	require.NoError(t, err)
	require.True(t, a.Licensed)
	require.NotNil(t, a.LicensorName)
	require.Equal(t, "Disney", *a.LicensorName)
	require.NotNil(t, a.PropertyName)
	require.Equal(t, "Mickey", *a.PropertyName)
}

func TestIngest_DeepestStatusFolderWins(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)

	result, err := f.svc.Process(context.Background(),
		observation("designs/Approved/legacy/Concepts/AB1234DS/a.psd", "a.psd", models.KindLayered, "h1"))
	require.NoError(t, err)

	a, err := f.assets.GetByID(context.Background(), *result.AssetID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConcept, a.Status)
}

func TestIngest_Validation(t *testing.T) {
	f := newIngestFixture(t, testIngestConfig(), nil)

	bad := observation("designs/a.psd", "a.psd", models.KindLayered, "h1")
	bad.Kind = "weird"
	_, err := f.svc.Process(context.Background(), bad)
	require.ErrorIs(t, err, ErrValidation)

	both := observation("designs/a.psd", "a.psd", models.KindLayered, "h1")
	url, msg := "https://cdn/t.png", "failed"
	both.ThumbnailURL = &url
	both.ThumbnailError = &msg
	_, err = f.svc.Process(context.Background(), both)
	require.ErrorIs(t, err, ErrValidation)
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"designs\\Approved\\a.psd": "designs/Approved/a.psd",
		"/designs//a.psd/":         "designs/a.psd",
		"designs/./a.psd":          "designs/a.psd",
		"designs/a.psd":            "designs/a.psd",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizePath(in), in)
	}
}
