// Package collab defines the contracts of the external services the pipeline
// calls but does not implement. Stages depend on these interfaces only, so
// each stage can be exercised with substitutable fakes.
package collab

import (
	"context"

	"github.com/kiranshivaraju/rescuedesk/pkg/models"
	"github.com/shopspring/decimal"
)

// CustomerLookup fetches CRM profiles.
type CustomerLookup interface {
	Customer(ctx context.Context, customerID string) (models.CustomerProfile, error)
}

// TranscriptLookup fetches conversation transcripts.
type TranscriptLookup interface {
	Transcript(ctx context.Context, transcriptID string) (string, error)
}

// PolicyLookup queries the policy knowledge base with free text and returns
// the most relevant policy snippet.
type PolicyLookup interface {
	Policy(ctx context.Context, query string) (string, error)
}

// OrderStatusLookup queries the logistics system.
type OrderStatusLookup interface {
	OrderStatus(ctx context.Context, orderID string) (models.OrderStatus, error)
}

// RefundExecutor issues refunds.
type RefundExecutor interface {
	Refund(ctx context.Context, orderID string, amount decimal.Decimal) (Receipt, error)
}

// ReshipExecutor re-ships orders.
type ReshipExecutor interface {
	Reship(ctx context.Context, orderID string, express bool) (Receipt, error)
}

// CouponExecutor issues coupons.
type CouponExecutor interface {
	IssueCoupon(ctx context.Context, value int, unit string) (Coupon, error)
}

// Messenger delivers customer communications.
type Messenger interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// RecordKeeper appends entries to a customer's history.
type RecordKeeper interface {
	AppendRecord(ctx context.Context, record models.ResolutionRecord) error
}

// Receipt is the acknowledgement returned by executors and messengers.
type Receipt struct {
	Status string `json:"status"`
}

// Coupon is the result of a coupon issuance.
type Coupon struct {
	Code string `json:"coupon_code"`
}

// Message is a customer communication.
type Message struct {
	Recipient string `json:"recipient"`
	Channel   string `json:"channel"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
}

// Lookups bundles the read-side collaborators.
type Lookups struct {
	Customers   CustomerLookup
	Transcripts TranscriptLookup
	Policies    PolicyLookup
	Orders      OrderStatusLookup
}

// Executors bundles the action executors.
type Executors struct {
	Refunds RefundExecutor
	Reships ReshipExecutor
	Coupons CouponExecutor
}
