package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentType distinguishes the two worker flavors
type AgentType string

const (
	AgentScanner  AgentType = "scanner"
	AgentRenderer AgentType = "renderer"
)

// Valid reports whether t is a known agent type
func (t AgentType) Valid() bool {
	return t == AgentScanner || t == AgentRenderer
}

// Agent is one registered worker process. State is a JSON bag holding
// last-reported counters (bounded rolling history), structured health,
// the last error, and one-shot command flags. Flags in the bag:
// force_stop, abort, force_scan, path_test, update_check, update_apply,
// scan_session_id.
type Agent struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Type            AgentType  `json:"type"`
	SecretHash      string     `json:"-"` // sha256 hex, never exposed
	State           []byte     `json:"-"` // raw jsonb
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PairingStatus is the lifecycle of a pairing code
type PairingStatus string

const (
	PairingPending  PairingStatus = "pending"
	PairingConsumed PairingStatus = "consumed"
)

// PairingCode is a short-lived, single-use code exchanged once for a
// permanent agent secret.
type PairingCode struct {
	Code       string        `json:"code"`
	AgentName  string        `json:"agent_name"`
	AgentType  AgentType     `json:"agent_type"`
	Status     PairingStatus `json:"status"`
	ExpiresAt  time.Time     `json:"expires_at"`
	CreatedAt  time.Time     `json:"created_at"`
	ConsumedAt *time.Time    `json:"consumed_at,omitempty"`
}
