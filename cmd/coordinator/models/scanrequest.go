package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanStatus is the scan request lifecycle
type ScanStatus string

const (
	ScanIdle      ScanStatus = "idle"
	ScanPending   ScanStatus = "pending"
	ScanClaimed   ScanStatus = "claimed"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
	ScanCanceled  ScanStatus = "canceled"
)

// Active reports whether the request is in flight (pending or claimed)
func (s ScanStatus) Active() bool {
	return s == ScanPending || s == ScanClaimed
}

// ScanRequestName is the fixed key of the singleton scan request row
const ScanRequestName = "default"

// ScanRequest is the singleton durable record representing "someone
// wants a scan to happen now". At most one row exists and at most one
// request is pending or claimed at a time.
type ScanRequest struct {
	Name        string     `json:"name"`
	Status      ScanStatus `json:"status"`
	RequestedBy string     `json:"requested_by"`
	ClaimedBy   *uuid.UUID `json:"claimed_by,omitempty"`
	SessionID   *uuid.UUID `json:"session_id,omitempty"`
	Checkpoint  *string    `json:"checkpoint,omitempty"`
	Message     *string    `json:"message,omitempty"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
