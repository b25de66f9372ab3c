package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/tidwall/gjson"
)

func newScanFixture() (*ScanService, *fakeScanStore, *fakeAgentStore) {
	scans := &fakeScanStore{}
	agents := newFakeAgentStore()
	return NewScanService(scans, agents, testScanConfig(), testLogger()), scans, agents
}

func TestScan_RequestConflictWhenActive(t *testing.T) {
	svc, scans, _ := newScanFixture()
	scans.requestOK = false

	_, err := svc.Request(context.Background(), "alex")
	require.ErrorIs(t, err, ErrConflict)
}

func TestScan_RequestSucceeds(t *testing.T) {
	svc, scans, _ := newScanFixture()
	scans.requestOK = true
	scans.request = &models.ScanRequest{Name: models.ScanRequestName, Status: models.ScanPending, RequestedBy: "alex"}

	req, err := svc.Request(context.Background(), "alex")
	require.NoError(t, err)
	require.Equal(t, models.ScanPending, req.Status)
}

func TestScan_StopFlagsScanners(t *testing.T) {
	svc, scans, agents := newScanFixture()
	scans.cancelOK = true

	require.NoError(t, svc.Stop(context.Background(), "alex"))
	require.NotNil(t, agents.mergedType)
	require.True(t, gjson.GetBytes(agents.mergedType, "abort").Bool())
	require.True(t, gjson.GetBytes(agents.mergedType, "force_stop").Bool())
}

func TestScan_StopConflictWhenIdle(t *testing.T) {
	svc, scans, agents := newScanFixture()
	scans.cancelOK = false

	err := svc.Stop(context.Background(), "alex")
	require.ErrorIs(t, err, ErrConflict)
	require.Nil(t, agents.mergedType)
}

func TestScan_ResetClearsStateEverywhere(t *testing.T) {
	svc, scans, agents := newScanFixture()

	require.NoError(t, svc.Reset(context.Background()))
	require.True(t, scans.resetCalled)
	require.Contains(t, agents.clearedKeys, "force_stop")
	require.Contains(t, agents.clearedKeys, "abort")
	require.Contains(t, agents.clearedKeys, "scan_session_id")
}

func TestScan_StatusStaleness(t *testing.T) {
	svc, scans, _ := newScanFixture()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	scans.request = &models.ScanRequest{
		Name:      models.ScanRequestName,
		Status:    models.ScanClaimed,
		UpdatedAt: now.Add(-time.Hour),
	}
	view, err := svc.Status(context.Background(), now)
	require.NoError(t, err)
	require.True(t, view.Stale)
	require.NotEmpty(t, view.Hint)

	// A freshly touched claim is not stale.
	scans.request.UpdatedAt = now.Add(-time.Minute)
	view, err = svc.Status(context.Background(), now)
	require.NoError(t, err)
	require.False(t, view.Stale)

	// A pending request never goes stale; nobody owns it yet.
	scans.request.Status = models.ScanPending
	scans.request.UpdatedAt = now.Add(-time.Hour)
	view, err = svc.Status(context.Background(), now)
	require.NoError(t, err)
	require.False(t, view.Stale)
}

func TestScan_ProgressRunningTouches(t *testing.T) {
	svc, scans, _ := newScanFixture()
	scans.touchOK = true

	cp := "designs/AB1234DS"
	err := svc.ReportProgress(context.Background(), uuid.New(), &ProgressReport{
		SessionID:  uuid.New(),
		State:      ProgressRunning,
		Checkpoint: &cp,
	})
	require.NoError(t, err)
}

func TestScan_ProgressSessionMismatch(t *testing.T) {
	svc, scans, _ := newScanFixture()
	scans.completeOK = false

	err := svc.ReportProgress(context.Background(), uuid.New(), &ProgressReport{
		SessionID: uuid.New(),
		State:     ProgressCompleted,
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestScan_ProgressTerminalStates(t *testing.T) {
	svc, scans, _ := newScanFixture()
	scans.completeOK = true

	err := svc.ReportProgress(context.Background(), uuid.New(), &ProgressReport{
		SessionID: uuid.New(),
		State:     ProgressFailed,
	})
	require.NoError(t, err)
	require.Equal(t, models.ScanFailed, scans.lastComplete)
}

func TestScan_ProgressValidation(t *testing.T) {
	svc, _, _ := newScanFixture()

	err := svc.ReportProgress(context.Background(), uuid.New(), &ProgressReport{
		State: ProgressRunning,
	})
	require.ErrorIs(t, err, ErrValidation)

	err = svc.ReportProgress(context.Background(), uuid.New(), &ProgressReport{
		SessionID: uuid.New(),
		State:     "paused",
	})
	require.ErrorIs(t, err, ErrValidation)
}
