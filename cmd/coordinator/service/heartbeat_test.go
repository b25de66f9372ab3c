package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/config"
	"github.com/tidwall/gjson"
)

func testAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		Base: config.ResourceDirectives{CPUPercent: 50, MemoryMB: 2048, Concurrency: 2},
	}
}

func testScanConfig() config.ScanConfig {
	return config.ScanConfig{
		Roots:           []string{"/mnt/designs"},
		BatchSize:       200,
		StalenessWindow: 10 * time.Minute,
		StorageEndpoint: "https://storage.local",
	}
}

func newHeartbeatFixture(agentType models.AgentType, state []byte) (*HeartbeatService, *fakeAgentStore, *fakeScanStore, *models.Agent) {
	agents := newFakeAgentStore()
	scans := &fakeScanStore{}
	agent := &models.Agent{
		ID:    uuid.New(),
		Name:  "studio-01",
		Type:  agentType,
		State: state,
	}
	agents.Create(context.Background(), agent)
	svc := NewHeartbeatService(agents, scans, testAgentConfig(), testScanConfig(), testLogger())
	return svc, agents, scans, agent
}

func TestHeartbeat_MergesHealthAndCounters(t *testing.T) {
	svc, agents, _, agent := newHeartbeatFixture(models.AgentRenderer, []byte(`{"health":{"disk":"ok","gpu":"ok"}}`))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := svc.Process(context.Background(), agent, &HeartbeatRequest{
		Status:   "running",
		Health:   map[string]any{"gpu": "degraded"},
		Counters: map[string]int64{"rendered": 7},
	}, now)
	require.NoError(t, err)

	stored, err := agents.GetByID(context.Background(), agent.ID)
	require.NoError(t, err)

	// Partial health merges instead of replacing.
	require.Equal(t, "ok", gjson.GetBytes(stored.State, "health.disk").String())
	require.Equal(t, "degraded", gjson.GetBytes(stored.State, "health.gpu").String())
	require.Equal(t, "running", gjson.GetBytes(stored.State, "status").String())
	require.EqualValues(t, 7, gjson.GetBytes(stored.State, "counters.rendered").Int())
	require.EqualValues(t, 1, gjson.GetBytes(stored.State, "counters_history.#").Int())
	require.NotNil(t, stored.LastHeartbeatAt)
	require.True(t, stored.LastHeartbeatAt.Equal(now))
}

func TestHeartbeat_CounterHistoryBounded(t *testing.T) {
	svc, agents, _, agent := newHeartbeatFixture(models.AgentRenderer, nil)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	current := agent
	for i := 0; i < counterHistoryLimit+10; i++ {
		_, err := svc.Process(ctx, current, &HeartbeatRequest{
			Counters: map[string]int64{"beat": int64(i)},
		}, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		current, err = agents.GetByID(ctx, agent.ID)
		require.NoError(t, err)
	}

	hist := gjson.GetBytes(current.State, "counters_history").Array()
	require.Len(t, hist, counterHistoryLimit)
	// Oldest entries were dropped; the last snapshot is the latest.
	require.EqualValues(t, counterHistoryLimit+9, hist[len(hist)-1].Get("counters.beat").Int())
}

func TestHeartbeat_OneShotFlagsDeliveredOnceAndCleared(t *testing.T) {
	state, _ := json.Marshal(map[string]any{
		"abort":        true,
		"path_test":    "/mnt/designs/probe",
		"update_check": true,
	})
	svc, agents, _, agent := newHeartbeatFixture(models.AgentRenderer, state)
	ctx := context.Background()

	resp, err := svc.Process(ctx, agent, &HeartbeatRequest{}, time.Now())
	require.NoError(t, err)
	require.True(t, resp.Commands.Abort)
	require.True(t, resp.Commands.UpdateCheck)
	require.NotNil(t, resp.Commands.PathTest)
	require.Equal(t, "/mnt/designs/probe", *resp.Commands.PathTest)

	stored, err := agents.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	for _, key := range oneShotFlags {
		require.False(t, gjson.GetBytes(stored.State, key).Exists(), key)
	}

	// The next beat delivers nothing.
	resp2, err := svc.Process(ctx, stored, &HeartbeatRequest{}, time.Now())
	require.NoError(t, err)
	require.False(t, resp2.Commands.Abort)
	require.Nil(t, resp2.Commands.PathTest)
}

func TestHeartbeat_ScannerClaimsPendingScan(t *testing.T) {
	svc, _, scans, agent := newHeartbeatFixture(models.AgentScanner, nil)
	scans.claimResult = &models.ScanRequest{Name: models.ScanRequestName, Status: models.ScanClaimed}

	resp, err := svc.Process(context.Background(), agent, &HeartbeatRequest{}, time.Now())
	require.NoError(t, err)
	require.True(t, resp.Commands.ForceScan)
	require.NotNil(t, resp.Commands.ScanSessionID)
}

func TestHeartbeat_ForceStopBlocksScanClaim(t *testing.T) {
	svc, agents, scans, agent := newHeartbeatFixture(models.AgentScanner, []byte(`{"force_stop":true}`))
	scans.claimResult = &models.ScanRequest{Name: models.ScanRequestName, Status: models.ScanClaimed}

	resp, err := svc.Process(context.Background(), agent, &HeartbeatRequest{}, time.Now())
	require.NoError(t, err)
	require.False(t, resp.Commands.ForceScan)

	// force_stop survives the beat; only scan reset clears it.
	stored, err := agents.GetByID(context.Background(), agent.ID)
	require.NoError(t, err)
	require.True(t, gjson.GetBytes(stored.State, "force_stop").Bool())
}

func TestHeartbeat_RenderersNeverClaimScans(t *testing.T) {
	svc, _, scans, agent := newHeartbeatFixture(models.AgentRenderer, nil)
	scans.claimResult = &models.ScanRequest{Name: models.ScanRequestName, Status: models.ScanClaimed}

	resp, err := svc.Process(context.Background(), agent, &HeartbeatRequest{}, time.Now())
	require.NoError(t, err)
	require.False(t, resp.Commands.ForceScan)
}

func TestHeartbeat_ResponseCarriesPolicy(t *testing.T) {
	svc, _, _, agent := newHeartbeatFixture(models.AgentScanner, nil)

	resp, err := svc.Process(context.Background(), agent, &HeartbeatRequest{}, time.Now())
	require.NoError(t, err)
	require.Equal(t, "https://storage.local", resp.Storage.Endpoint)
	require.Equal(t, []string{"/mnt/designs"}, resp.ScanRoots)
	require.Equal(t, 200, resp.BatchSize)
	require.Equal(t, 50, resp.Directives.CPUPercent)
}

func TestEffectiveDirectives_WindowOverride(t *testing.T) {
	cfg := testAgentConfig()
	cfg.Schedule = []config.ScheduleWindow{
		{
			// Weekday business hours throttle harder.
			Days:       []int{1, 2, 3, 4, 5},
			StartHour:  9,
			EndHour:    17,
			Directives: config.ResourceDirectives{CPUPercent: 20, MemoryMB: 1024, Concurrency: 1},
		},
		{
			Days:       []int{1, 2, 3, 4, 5},
			StartHour:  0,
			EndHour:    24,
			Directives: config.ResourceDirectives{CPUPercent: 80, MemoryMB: 4096, Concurrency: 4},
		},
	}

	// Wednesday 10:00 UTC hits the first window even though the second
	// also matches.
	busy := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.Equal(t, 20, EffectiveDirectives(cfg, busy).CPUPercent)

	// Wednesday 18:00 UTC falls through to the all-day window.
	evening := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	require.Equal(t, 80, EffectiveDirectives(cfg, evening).CPUPercent)

	// Sunday matches no window: base directives.
	sunday := time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC)
	require.Equal(t, 50, EffectiveDirectives(cfg, sunday).CPUPercent)

	// EndHour is exclusive.
	boundary := time.Date(2024, 5, 1, 17, 0, 0, 0, time.UTC)
	require.Equal(t, 80, EffectiveDirectives(cfg, boundary).CPUPercent)
}
