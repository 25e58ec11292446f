// Package mock provides in-memory collaborators seeded with demo data. It backs
// COLLAB_BACKEND=mock and is used by tests across the codebase.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kiranshivaraju/rescuedesk/internal/collab"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
	"github.com/shopspring/decimal"
)

// Policy snippets returned by the default policy function.
const (
	PremiumPolicy  = "Policy Snippet 1: For Gold Tier customers with lost packages or damaged items, a full refund or a free replacement with express shipping is offered."
	StandardPolicy = "Policy Snippet 1: Standard policy for lost packages is to offer a replacement."
)

// RefundCall records one refund executor invocation.
type RefundCall struct {
	OrderID string
	Amount  decimal.Decimal
}

// ReshipCall records one re-shipment executor invocation.
type ReshipCall struct {
	OrderID string
	Express bool
}

// CouponCall records one coupon executor invocation.
type CouponCall struct {
	Value int
	Unit  string
}

// Backoffice satisfies every collaborator interface in memory.
// Set the *Err fields to make the corresponding call fail.
type Backoffice struct {
	mu sync.Mutex

	Customers   map[string]models.CustomerProfile
	Transcripts map[string]string
	Orders      map[string]models.OrderStatus
	PolicyFunc  func(query string) (string, error)

	CustomerErr   error
	TranscriptErr error
	OrderErr      error
	RefundErr     error
	ReshipErr     error
	CouponErr     error
	SendErr       error
	RecordErr     error

	PolicyQueries []string
	Refunds       []RefundCall
	Reships       []ReshipCall
	Coupons       []CouponCall
	Messages      []collab.Message
	Records       []models.ResolutionRecord
}

// New returns a Backoffice seeded with the demo customers and transcripts.
func New() *Backoffice {
	return &Backoffice{
		Customers: map[string]models.CustomerProfile{
			"C67890":                 {LifetimeValue: 1500, Tier: models.TierGold, RecentOrderCount: 12},
			"high-LTV-1500-GoldTier": {LifetimeValue: 1500, Tier: models.TierGold, RecentOrderCount: 12},
			"C12345":                 {LifetimeValue: 100, Tier: models.TierSilver, RecentOrderCount: 1},
		},
		Transcripts: map[string]string{
			"T12345": "Customer: I am very unhappy with my recent purchase. The item arrived damaged. I will never buy from you again. This is the worst experience I have ever had.",
			"T54321": "Customer: I am happy with my purchase.",
		},
		Orders: map[string]models.OrderStatus{
			"O-9987": {Status: "delivered", DeliveryDate: "2023-10-26"},
		},
		PolicyFunc: DefaultPolicy,
	}
}

// DefaultPolicy answers premium-tier queries about damaged or lost items with
// the refund-or-replacement policy and everything else with the standard policy.
func DefaultPolicy(query string) (string, error) {
	q := strings.ToLower(query)
	premium := strings.Contains(q, "gold tier") || strings.Contains(q, "vip")
	problem := strings.Contains(q, "damaged") || strings.Contains(q, "lost package")
	if premium && problem {
		return PremiumPolicy, nil
	}
	return StandardPolicy, nil
}

func (b *Backoffice) Customer(_ context.Context, customerID string) (models.CustomerProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.CustomerErr != nil {
		return models.CustomerProfile{}, b.CustomerErr
	}
	p, ok := b.Customers[customerID]
	if !ok {
		return models.CustomerProfile{}, fmt.Errorf("customer %q: %w", customerID, collab.ErrNotFound)
	}
	return p, nil
}

func (b *Backoffice) Transcript(_ context.Context, transcriptID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.TranscriptErr != nil {
		return "", b.TranscriptErr
	}
	t, ok := b.Transcripts[transcriptID]
	if !ok {
		return "", fmt.Errorf("transcript %q: %w", transcriptID, collab.ErrNotFound)
	}
	return t, nil
}

func (b *Backoffice) Policy(_ context.Context, query string) (string, error) {
	b.mu.Lock()
	b.PolicyQueries = append(b.PolicyQueries, query)
	fn := b.PolicyFunc
	b.mu.Unlock()
	if fn == nil {
		return "", fmt.Errorf("policy: %w", collab.ErrNotFound)
	}
	return fn(query)
}

func (b *Backoffice) OrderStatus(_ context.Context, orderID string) (models.OrderStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OrderErr != nil {
		return models.OrderStatus{}, b.OrderErr
	}
	s, ok := b.Orders[orderID]
	if !ok {
		return models.OrderStatus{}, fmt.Errorf("order %q: %w", orderID, collab.ErrNotFound)
	}
	return s, nil
}

func (b *Backoffice) Refund(_ context.Context, orderID string, amount decimal.Decimal) (collab.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Refunds = append(b.Refunds, RefundCall{OrderID: orderID, Amount: amount})
	if b.RefundErr != nil {
		return collab.Receipt{}, b.RefundErr
	}
	return collab.Receipt{Status: "success"}, nil
}

func (b *Backoffice) Reship(_ context.Context, orderID string, express bool) (collab.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Reships = append(b.Reships, ReshipCall{OrderID: orderID, Express: express})
	if b.ReshipErr != nil {
		return collab.Receipt{}, b.ReshipErr
	}
	return collab.Receipt{Status: "success"}, nil
}

func (b *Backoffice) IssueCoupon(_ context.Context, value int, unit string) (collab.Coupon, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Coupons = append(b.Coupons, CouponCall{Value: value, Unit: unit})
	if b.CouponErr != nil {
		return collab.Coupon{}, b.CouponErr
	}
	if unit == models.CouponUnitPercent {
		return collab.Coupon{Code: fmt.Sprintf("WELCOME%d", value)}, nil
	}
	return collab.Coupon{Code: "WELCOME10"}, nil
}

func (b *Backoffice) Send(_ context.Context, msg collab.Message) (collab.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Messages = append(b.Messages, msg)
	if b.SendErr != nil {
		return collab.Receipt{}, b.SendErr
	}
	return collab.Receipt{Status: "success"}, nil
}

func (b *Backoffice) AppendRecord(_ context.Context, record models.ResolutionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.RecordErr != nil {
		return b.RecordErr
	}
	b.Records = append(b.Records, record)
	return nil
}

// Lookups returns the backoffice as a read-side bundle.
func (b *Backoffice) Lookups() collab.Lookups {
	return collab.Lookups{Customers: b, Transcripts: b, Policies: b, Orders: b}
}

// Executors returns the backoffice as an executor bundle.
func (b *Backoffice) Executors() collab.Executors {
	return collab.Executors{Refunds: b, Reships: b, Coupons: b}
}

// Compile-time checks that Backoffice implements every collaborator.
var (
	_ collab.CustomerLookup    = (*Backoffice)(nil)
	_ collab.TranscriptLookup  = (*Backoffice)(nil)
	_ collab.PolicyLookup      = (*Backoffice)(nil)
	_ collab.OrderStatusLookup = (*Backoffice)(nil)
	_ collab.RefundExecutor    = (*Backoffice)(nil)
	_ collab.ReshipExecutor    = (*Backoffice)(nil)
	_ collab.CouponExecutor    = (*Backoffice)(nil)
	_ collab.Messenger         = (*Backoffice)(nil)
	_ collab.RecordKeeper      = (*Backoffice)(nil)
)
