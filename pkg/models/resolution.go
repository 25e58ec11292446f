package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome statuses for the action stage's side effects.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeDeferred  = "deferred"
	OutcomeSkipped   = "skipped"
)

// ResolutionRecord is the durable trace appended to a customer's history.
type ResolutionRecord struct {
	ID              uuid.UUID `db:"id"               json:"id"`
	CustomerID      string    `db:"customer_id"      json:"customer_id"`
	RunID           uuid.UUID `db:"run_id"           json:"run_id"`
	IncidentSummary string    `db:"incident_summary" json:"incident_summary"`
	Justification   string    `db:"justification"    json:"justification"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
}

// Entry renders the record as the single line stored by record-keeping systems.
func (r ResolutionRecord) Entry() string {
	return "Incident: " + r.IncidentSummary + ". Resolution: " + r.Justification + "."
}

// SideEffect is the reported result of one best-effort external call.
type SideEffect struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the side effect was attempted and failed.
func (s SideEffect) Failed() bool {
	return s.Status == OutcomeFailed
}

// ActionSummary lets callers distinguish full from partial success of the action stage.
type ActionSummary struct {
	Candidate     Candidate        `json:"candidate"`
	Action        SideEffect       `json:"action"`
	Communication SideEffect       `json:"communication"`
	Record        SideEffect       `json:"record"`
	Resolution    ResolutionRecord `json:"resolution"`
}

// PartialFailure reports whether any side effect failed.
func (s *ActionSummary) PartialFailure() bool {
	return s.Action.Failed() || s.Communication.Failed() || s.Record.Failed()
}
