package models

import "errors"

// Priority labels attached to triage decisions and solution candidates.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// ErrContactAlreadySet is returned when a case file is enriched twice.
var ErrContactAlreadySet = errors.New("case file contact already set")

// TriageDecision is produced once per run. CaseFile is non-nil iff Escalate.
type TriageDecision struct {
	Escalate bool      `json:"escalate"`
	CaseFile *CaseFile `json:"case_file,omitempty"`
	Priority string    `json:"priority,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Signals  []string  `json:"signals,omitempty"`
}

// CaseFile is the context handed from triage to the solution and action stages.
// IssueSummary and Transcript never change after triage; Contact is attached
// once by the pipeline through Enrich.
type CaseFile struct {
	Profile      CustomerProfile `json:"customer_details"`
	Transcript   string          `json:"transcript_text"`
	IssueSummary string          `json:"issue_summary"`
	Contact      *Contact        `json:"contact,omitempty"`
}

// Contact carries the fields the orchestrator injects after triage.
type Contact struct {
	CustomerID string    `json:"customer_id"`
	Address    string    `json:"address"`
	Order      *OrderRef `json:"order,omitempty"`
}

// Enrich returns a copy of the case file with the contact attached.
// The receiver is left untouched and an existing contact is never overwritten.
func (c CaseFile) Enrich(contact Contact) (CaseFile, error) {
	if c.Contact != nil {
		return c, ErrContactAlreadySet
	}
	ct := contact
	if contact.Order != nil {
		o := *contact.Order
		ct.Order = &o
	}
	c.Contact = &ct
	return c, nil
}

// Order returns the order reference attached during enrichment, if any.
func (c CaseFile) Order() *OrderRef {
	if c.Contact == nil {
		return nil
	}
	return c.Contact.Order
}
