package models

import (
	"encoding/json"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

const (
	ActionTranscribe = "transcribe"
	ActionSynthesize = "synthesize"
	ActionAlign      = "align"
	ActionAlignJob   = "align_job"
)

// AuditLog is one recorded use of the service. Units depend on the action:
// audio bytes for transcribe, input characters for synthesize and score
// cells for align.
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Subject    string          `json:"subject,omitempty" db:"subject"`
	Action     string          `json:"action" db:"action"`
	Provider   string          `json:"provider,omitempty" db:"provider"`
	ResourceID *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Units      int64           `json:"units" db:"units"`
	LatencyMs  int             `json:"latency_ms" db:"latency_ms"`
	Success    bool            `json:"success" db:"success"`
	Details    json.RawMessage `json:"details" db:"details"`
	IPAddress  *netip.Addr     `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
