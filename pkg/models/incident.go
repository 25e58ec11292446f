package models

import (
	"crypto/sha256"
	"fmt"

	"github.com/shopspring/decimal"
)

// IncidentRef identifies the conversation that triggered a pipeline run.
type IncidentRef struct {
	CustomerID   string `json:"customer_id"`
	TranscriptID string `json:"transcript_id"`
}

// Fingerprint returns a stable SHA-256 digest of the reference, used to
// recognise redelivered triggering events.
func (r IncidentRef) Fingerprint() string {
	sum := sha256.Sum256([]byte(r.CustomerID + "\x00" + r.TranscriptID))
	return fmt.Sprintf("%x", sum)
}

// IncidentEvent is the triggering event consumed from Kafka or POSTed to the API.
// Contact and order fields are not known to the triage collaborators; the
// pipeline injects them into the case file after triage.
type IncidentEvent struct {
	CustomerID     string           `json:"customer_id"     validate:"required,max=128"`
	TranscriptID   string           `json:"transcript_id"   validate:"required,max=128"`
	ContactAddress string           `json:"contact_address" validate:"omitempty,max=320"`
	OrderID        string           `json:"order_id"        validate:"omitempty,max=128"`
	OrderAmount    *decimal.Decimal `json:"order_amount,omitempty"`
}

// Ref returns the immutable incident reference carried by the event.
func (e IncidentEvent) Ref() IncidentRef {
	return IncidentRef{CustomerID: e.CustomerID, TranscriptID: e.TranscriptID}
}

// OrderRef returns the order the incident concerns, or nil when the event
// carried no order id.
func (e IncidentEvent) OrderRef() *OrderRef {
	if e.OrderID == "" {
		return nil
	}
	ref := &OrderRef{ID: e.OrderID}
	if e.OrderAmount != nil {
		ref.Amount = *e.OrderAmount
	}
	return ref
}

// OrderRef points at the order an incident concerns.
type OrderRef struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// OrderStatus is the logistics view of an order.
type OrderStatus struct {
	Status       string `json:"status"`
	DeliveryDate string `json:"delivery_date,omitempty"`
}
