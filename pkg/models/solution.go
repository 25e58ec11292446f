package models

import (
	"github.com/shopspring/decimal"
)

// ActionKind is the closed set of remedies the action stage can dispatch.
type ActionKind string

const (
	ActionFullRefund         ActionKind = "full_refund"
	ActionExpressReshipment  ActionKind = "reship_express"
	ActionStandardReshipment ActionKind = "reship_standard"
	ActionCouponIssuance     ActionKind = "generate_coupon"
	ActionFallbackFollowup   ActionKind = "fallback_followup"
)

// Coupon units.
const (
	CouponUnitPercent = "percent"
	CouponUnitDollars = "dollars"
)

// Candidate is one proposed remedy. Candidates are ordered highest-recommended first.
type Candidate struct {
	ID            int        `json:"solution_id"`
	Kind          ActionKind `json:"action"`
	Params        Params     `json:"params"`
	Justification string     `json:"explanation"`
	Priority      string     `json:"priority,omitempty"`
}

// Params holds the action-specific parameters of a candidate. Only the fields
// relevant to the candidate's Kind are set.
type Params struct {
	OrderID     string           `json:"order_id,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Express     bool             `json:"express,omitempty"`
	CouponValue int              `json:"value,omitempty"`
	CouponUnit  string           `json:"unit,omitempty"`
	OrderStatus string           `json:"order_status,omitempty"`
}
