package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/config"
	"github.com/stylehub/coordinator/common/logger"
)

// scanStateKeys are the flags scan reset strips from every scanner's
// state bag, force_stop included.
var scanStateKeys = []string{"abort", "force_stop", "force_scan", "path_test", "update_check", "update_apply", "scan_session_id"}

// ProgressState is the lifecycle step a scanner reports
type ProgressState string

const (
	ProgressRunning   ProgressState = "running"
	ProgressCompleted ProgressState = "completed"
	ProgressFailed    ProgressState = "failed"
)

// ProgressReport is one scan progress update from an agent
type ProgressReport struct {
	SessionID  uuid.UUID     `json:"session_id"`
	State      ProgressState `json:"state"`
	Checkpoint *string       `json:"checkpoint,omitempty"`
	Message    *string       `json:"message,omitempty"`
}

// ScanStatusView is the operator-facing status of the scan request
type ScanStatusView struct {
	Request *models.ScanRequest `json:"request"`
	Stale   bool                `json:"stale"`
	Hint    string              `json:"hint,omitempty"`
}

// ScanService drives the singleton scan request lifecycle
type ScanService struct {
	scans  ScanRequestStore
	agents AgentStore
	cfg    config.ScanConfig
	log    *logger.Logger
}

// NewScanService creates a new scan service
func NewScanService(scans ScanRequestStore, agents AgentStore, cfg config.ScanConfig, log *logger.Logger) *ScanService {
	return &ScanService{
		scans:  scans,
		agents: agents,
		cfg:    cfg,
		log:    log,
	}
}

// Request asks for a scan. Fails with a conflict when one is already
// pending or running.
func (s *ScanService) Request(ctx context.Context, requestedBy string) (*models.ScanRequest, error) {
	if requestedBy == "" {
		return nil, fmt.Errorf("%w: requested_by is required", ErrValidation)
	}

	ok, err := s.scans.Request(ctx, requestedBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: a scan is already pending or running", ErrConflict)
	}

	s.log.Info("scan requested", "requested_by", requestedBy)
	return s.scans.Get(ctx)
}

// Stop cancels the active scan and flags every scanner to abort and
// hold. Fails with a conflict when nothing is active.
func (s *ScanService) Stop(ctx context.Context, stoppedBy string) error {
	ok, err := s.scans.Cancel(ctx, fmt.Sprintf("stopped by %s", stoppedBy))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no scan is pending or running", ErrConflict)
	}

	patch, _ := json.Marshal(map[string]bool{"abort": true, "force_stop": true})
	if err := s.agents.MergeStateByType(ctx, models.AgentScanner, patch); err != nil {
		return err
	}

	s.log.Info("scan stopped", "stopped_by", stoppedBy)
	return nil
}

// Reset unconditionally returns the scan request to idle and strips
// stale flags and checkpoints from every scanner. The recovery path
// for a scan stuck behind a dead agent.
func (s *ScanService) Reset(ctx context.Context) error {
	if err := s.scans.Reset(ctx); err != nil {
		return err
	}
	if err := s.agents.ClearStateKeys(ctx, models.AgentScanner, scanStateKeys); err != nil {
		return err
	}

	s.log.Info("scan state reset")
	return nil
}

// Status returns the scan request plus a staleness verdict: a claimed
// request untouched for longer than the staleness window likely sits
// behind a dead agent.
func (s *ScanService) Status(ctx context.Context, now time.Time) (*ScanStatusView, error) {
	req, err := s.scans.Get(ctx)
	if err != nil {
		return nil, err
	}

	view := &ScanStatusView{Request: req}
	if req.Status == models.ScanClaimed && now.Sub(req.UpdatedAt) > s.cfg.StalenessWindow {
		view.Stale = true
		view.Hint = "scan appears stale; reset scan state to recover"
	}
	return view, nil
}

// ReportProgress applies one progress update, matched by session id so
// a superseded agent cannot touch a request it no longer owns.
func (s *ScanService) ReportProgress(ctx context.Context, agentID uuid.UUID, report *ProgressReport) error {
	if report.SessionID == uuid.Nil {
		return fmt.Errorf("%w: session_id is required", ErrValidation)
	}

	var ok bool
	var err error
	switch report.State {
	case ProgressRunning:
		ok, err = s.scans.Touch(ctx, report.SessionID, report.Checkpoint)
	case ProgressCompleted:
		ok, err = s.scans.CompleteBySession(ctx, report.SessionID, models.ScanCompleted, report.Message)
	case ProgressFailed:
		ok, err = s.scans.CompleteBySession(ctx, report.SessionID, models.ScanFailed, report.Message)
	default:
		return fmt.Errorf("%w: unknown progress state %q", ErrValidation, report.State)
	}

	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: session does not own the scan request", ErrConflict)
	}

	if report.State != ProgressRunning {
		s.log.Info("scan finished", "agent_id", agentID, "session_id", report.SessionID, "state", report.State)
	}
	return nil
}
