package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/config"
	"github.com/stylehub/coordinator/common/logger"
	"github.com/tidwall/gjson"
)

// counterHistoryLimit bounds the per-agent rolling counter history
const counterHistoryLimit = 50

// oneShotFlags are delivered in exactly one heartbeat response and then
// cleared from the state bag. force_stop is deliberately absent: it
// holds until a scan reset.
var oneShotFlags = []string{"abort", "force_scan", "path_test", "update_check", "update_apply", "scan_session_id"}

// HeartbeatRequest is what an agent reports each beat
type HeartbeatRequest struct {
	Status    string           `json:"status,omitempty"`
	Counters  map[string]int64 `json:"counters,omitempty"`
	Health    map[string]any   `json:"health,omitempty"`
	LastError *string          `json:"last_error,omitempty"`
}

// AgentCommands are the one-shot instructions delivered with a
// heartbeat response.
type AgentCommands struct {
	ForceScan     bool       `json:"force_scan,omitempty"`
	ScanSessionID *uuid.UUID `json:"scan_session_id,omitempty"`
	Abort         bool       `json:"abort,omitempty"`
	PathTest      *string    `json:"path_test,omitempty"`
	UpdateCheck   bool       `json:"update_check,omitempty"`
	UpdateApply   bool       `json:"update_apply,omitempty"`
}

// StorageCredentials point agents at the object store for thumbnails
type StorageCredentials struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// HeartbeatResponse carries the full working policy back to the agent
// on every beat, so agents need no configuration beyond their secret.
type HeartbeatResponse struct {
	Storage          StorageCredentials        `json:"storage"`
	ScanRoots        []string                  `json:"scan_roots"`
	MountMap         map[string]string         `json:"mount_map,omitempty"`
	BatchSize        int                       `json:"batch_size"`
	DateCutoff       *time.Time                `json:"date_cutoff,omitempty"`
	Directives       config.ResourceDirectives `json:"directives"`
	AutoScanEnabled  bool                      `json:"auto_scan_enabled"`
	AutoScanInterval time.Duration             `json:"auto_scan_interval"`
	Commands         AgentCommands             `json:"commands"`
}

// HeartbeatService absorbs agent reports into the per-agent state bag
// and hands back policy plus pending commands.
type HeartbeatService struct {
	agents   AgentStore
	scans    ScanRequestStore
	agentCfg config.AgentConfig
	scanCfg  config.ScanConfig
	log      *logger.Logger
}

// NewHeartbeatService creates a new heartbeat service
func NewHeartbeatService(agents AgentStore, scans ScanRequestStore, agentCfg config.AgentConfig, scanCfg config.ScanConfig, log *logger.Logger) *HeartbeatService {
	return &HeartbeatService{
		agents:   agents,
		scans:    scans,
		agentCfg: agentCfg,
		scanCfg:  scanCfg,
		log:      log,
	}
}

// Process handles one heartbeat for an already-authenticated agent.
// The report is merged into the state bag, pending command flags are
// delivered and cleared, and scanners get a chance to claim a pending
// scan request.
func (s *HeartbeatService) Process(ctx context.Context, agent *models.Agent, req *HeartbeatRequest, now time.Time) (*HeartbeatResponse, error) {
	merged, err := s.mergeReport(agent.State, req, now)
	if err != nil {
		return nil, err
	}

	forceStop := gjson.GetBytes(merged, "force_stop").Bool()
	cmd := s.pendingCommands(merged)

	if agent.Type == models.AgentScanner && !forceStop && !cmd.ForceScan {
		claimed, err := s.scans.Claim(ctx, agent.ID, uuid.New())
		if err != nil {
			s.log.Warn("scan claim failed during heartbeat", "agent_id", agent.ID, "error", err)
		} else if claimed != nil {
			cmd.ForceScan = true
			cmd.ScanSessionID = claimed.SessionID
			s.log.Info("scan request claimed", "agent_id", agent.ID, "session_id", claimed.SessionID)
		}
	}

	persisted, err := clearKeys(merged, oneShotFlags)
	if err != nil {
		return nil, err
	}
	if err := s.agents.UpdateState(ctx, agent.ID, persisted, now); err != nil {
		return nil, err
	}

	resp := &HeartbeatResponse{
		Storage: StorageCredentials{
			Endpoint:  s.scanCfg.StorageEndpoint,
			AccessKey: s.scanCfg.StorageAccessKey,
			SecretKey: s.scanCfg.StorageSecretKey,
		},
		ScanRoots:        s.scanCfg.Roots,
		MountMap:         s.scanCfg.MountMap,
		BatchSize:        s.scanCfg.BatchSize,
		Directives:       EffectiveDirectives(s.agentCfg, now),
		AutoScanEnabled:  s.scanCfg.AutoScanEnabled,
		AutoScanInterval: s.scanCfg.AutoScanInterval,
		Commands:         cmd,
	}
	if s.scanCfg.DateCutoff > 0 {
		cutoff := now.Add(-s.scanCfg.DateCutoff)
		resp.DateCutoff = &cutoff
	}

	return resp, nil
}

// mergeReport folds one report into the state bag. Health and status
// merge via RFC 7386 so agents can send partial health objects;
// counters append to a bounded rolling history.
func (s *HeartbeatService) mergeReport(state []byte, req *HeartbeatRequest, now time.Time) ([]byte, error) {
	if len(state) == 0 {
		state = []byte("{}")
	}

	patch := map[string]any{}
	if req.Status != "" {
		patch["status"] = req.Status
	}
	if req.Health != nil {
		patch["health"] = req.Health
	}
	if req.LastError != nil {
		patch["last_error"] = *req.LastError
	}

	merged := state
	if len(patch) > 0 {
		patchBytes, err := json.Marshal(patch)
		if err != nil {
			return nil, fmt.Errorf("marshal heartbeat patch: %w", err)
		}
		merged, err = jsonpatch.MergePatch(state, patchBytes)
		if err != nil {
			return nil, fmt.Errorf("merge heartbeat state: %w", err)
		}
	}

	if len(req.Counters) == 0 {
		return merged, nil
	}

	var bag map[string]any
	if err := json.Unmarshal(merged, &bag); err != nil {
		return nil, fmt.Errorf("decode agent state: %w", err)
	}

	hist, _ := bag["counters_history"].([]any)
	hist = append(hist, map[string]any{
		"at":       now.UTC().Format(time.RFC3339),
		"counters": req.Counters,
	})
	if len(hist) > counterHistoryLimit {
		hist = hist[len(hist)-counterHistoryLimit:]
	}
	bag["counters_history"] = hist
	bag["counters"] = req.Counters

	out, err := json.Marshal(bag)
	if err != nil {
		return nil, fmt.Errorf("encode agent state: %w", err)
	}
	return out, nil
}

// pendingCommands reads the command flags out of the state bag
func (s *HeartbeatService) pendingCommands(state []byte) AgentCommands {
	cmd := AgentCommands{
		Abort:       gjson.GetBytes(state, "abort").Bool(),
		UpdateCheck: gjson.GetBytes(state, "update_check").Bool(),
		UpdateApply: gjson.GetBytes(state, "update_apply").Bool(),
	}

	if pt := gjson.GetBytes(state, "path_test"); pt.Exists() && pt.String() != "" {
		v := pt.String()
		cmd.PathTest = &v
	}

	if gjson.GetBytes(state, "force_scan").Bool() {
		cmd.ForceScan = true
		if sid := gjson.GetBytes(state, "scan_session_id"); sid.Exists() {
			if parsed, err := uuid.Parse(sid.String()); err == nil {
				cmd.ScanSessionID = &parsed
			}
		}
	}

	return cmd
}

// clearKeys removes the given top-level keys from a JSON object
func clearKeys(state []byte, keys []string) ([]byte, error) {
	var bag map[string]json.RawMessage
	if err := json.Unmarshal(state, &bag); err != nil {
		return nil, fmt.Errorf("decode agent state: %w", err)
	}
	for _, k := range keys {
		delete(bag, k)
	}
	out, err := json.Marshal(bag)
	if err != nil {
		return nil, fmt.Errorf("encode agent state: %w", err)
	}
	return out, nil
}

// EffectiveDirectives resolves the resource directives for an instant:
// the first schedule window containing it (UTC) wins, otherwise the
// base directives apply.
func EffectiveDirectives(cfg config.AgentConfig, now time.Time) config.ResourceDirectives {
	utc := now.UTC()
	day := int(utc.Weekday())
	hour := utc.Hour()

	for _, w := range cfg.Schedule {
		for _, d := range w.Days {
			if d == day && hour >= w.StartHour && hour < w.EndHour {
				return w.Directives
			}
		}
	}
	return cfg.Base
}

// ExtractHealth pulls the structured health object out of an agent's
// state bag for the operator agent listing. Returns nil when absent.
func ExtractHealth(state []byte) json.RawMessage {
	h := gjson.GetBytes(state, "health")
	if !h.Exists() {
		return nil
	}
	return json.RawMessage(h.Raw)
}

// ExtractCounters pulls the most recent counter snapshot out of an
// agent's state bag. Returns nil when the agent never reported any.
func ExtractCounters(state []byte) json.RawMessage {
	c := gjson.GetBytes(state, "counters")
	if !c.Exists() {
		return nil
	}
	return json.RawMessage(c.Raw)
}
