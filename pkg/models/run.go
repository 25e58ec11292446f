package models

import (
	"time"

	"github.com/google/uuid"
)

// Run states. closed, acted and failed are terminal.
const (
	RunStateReceived = "received"
	RunStateTriaged  = "triaged"
	RunStateClosed   = "closed"
	RunStateSolved   = "solved"
	RunStateActed    = "acted"
	RunStateFailed   = "failed"
)

// IsTerminal reports whether no further transition is possible from state.
func IsTerminal(state string) bool {
	return state == RunStateClosed || state == RunStateActed || state == RunStateFailed
}

// Run tracks one pass of an incident through the pipeline. POST /api/v1/incidents
// returns a run in state received; clients poll GET /api/v1/incidents/{id}.
type Run struct {
	ID                  uuid.UUID  `db:"id"                   json:"id"`
	CustomerID          string     `db:"customer_id"          json:"customer_id"`
	TranscriptID        string     `db:"transcript_id"        json:"transcript_id"`
	Fingerprint         string     `db:"fingerprint"          json:"-"`
	State               string     `db:"state"                json:"state"`
	Priority            *string    `db:"priority"             json:"priority,omitempty"`
	Reason              *string    `db:"reason"               json:"reason,omitempty"`
	ActionKind          *string    `db:"action_kind"          json:"action_kind,omitempty"`
	ActionStatus        *string    `db:"action_status"        json:"action_status,omitempty"`
	CommunicationStatus *string    `db:"communication_status" json:"communication_status,omitempty"`
	RecordStatus        *string    `db:"record_status"        json:"record_status,omitempty"`
	ErrorMessage        *string    `db:"error_message"        json:"error_message,omitempty"`
	CompletedAt         *time.Time `db:"completed_at"         json:"completed_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at"           json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"           json:"updated_at"`
}

// RunOutcome is published when a run reaches a terminal state.
type RunOutcome struct {
	RunID      uuid.UUID      `json:"run_id"`
	CustomerID string         `json:"customer_id"`
	State      string         `json:"state"`
	Priority   string         `json:"priority,omitempty"`
	Summary    *ActionSummary `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
	At         time.Time      `json:"at"`
}
