// Package solution turns an escalated case file into a ranked list of remedies.
package solution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/rescuedesk/internal/collab"
	"github.com/kiranshivaraju/rescuedesk/internal/config"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

// Stage is the solution stage. It is safe for concurrent use.
type Stage struct {
	policies collab.PolicyLookup
	orders   collab.OrderStatusLookup
	policy   config.SolutionPolicy
	queries  QueryBuilder
}

// NewStage creates a solution Stage. orders may be nil, in which case order
// status is never attached to candidates.
func NewStage(policies collab.PolicyLookup, orders collab.OrderStatusLookup, policy config.SolutionPolicy) *Stage {
	return &Stage{policies: policies, orders: orders, policy: policy}
}

// Solve fetches the policy matching the case file and returns the candidates it
// allows, in fixed order: full refund, express reshipment, coupon. The coupon
// is always present and always last, so the result is never empty.
func (s *Stage) Solve(ctx context.Context, cf models.CaseFile) ([]models.Candidate, error) {
	query := s.queries.BuildPolicyQuery(cf)

	text, err := s.policies.Policy(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrPolicyLookupFailure, query, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %q: empty policy text", ErrPolicyLookupFailure, query)
	}

	order := s.orderFor(cf)
	status := s.orderStatus(ctx, cf)

	return Rank(text, cf.Profile.Tier, order, status, s.policy), nil
}

// Rank applies the ranking rules to policy text. It is deterministic: the same
// inputs always produce the same list.
func Rank(policyText, tier string, order models.OrderRef, orderStatus string, policy config.SolutionPolicy) []models.Candidate {
	text := strings.ToLower(policyText)
	var candidates []models.Candidate

	if strings.Contains(text, "full refund") {
		amount := order.Amount
		candidates = append(candidates, models.Candidate{
			Kind: models.ActionFullRefund,
			Params: models.Params{
				OrderID:     order.ID,
				Amount:      &amount,
				OrderStatus: orderStatus,
			},
			Justification: fmt.Sprintf("Full refund of %s for order %s, as offered to %s customers by policy",
				amount.StringFixed(2), order.ID, tierLabel(tier)),
			Priority: models.PriorityHigh,
		})
	}

	if strings.Contains(text, "reship") || strings.Contains(text, "replacement") {
		candidates = append(candidates, models.Candidate{
			Kind: models.ActionExpressReshipment,
			Params: models.Params{
				OrderID:     order.ID,
				Express:     true,
				OrderStatus: orderStatus,
			},
			Justification: fmt.Sprintf("Free replacement of order %s with express shipping", order.ID),
			Priority:      models.PriorityMedium,
		})
	}

	value := CouponValue(tier, policy)
	candidates = append(candidates, models.Candidate{
		Kind: models.ActionCouponIssuance,
		Params: models.Params{
			CouponValue: value,
			CouponUnit:  policy.CouponUnit,
		},
		Justification: fmt.Sprintf("Goodwill coupon worth %s on a future purchase", couponLabel(value, policy.CouponUnit)),
		Priority:      models.PriorityLow,
	})

	for i := range candidates {
		candidates[i].ID = i + 1
	}
	return candidates
}

// CouponValue returns the tier's coupon value, or the default for unlisted tiers.
func CouponValue(tier string, policy config.SolutionPolicy) int {
	if v, ok := policy.CouponTiers[tier]; ok {
		return v
	}
	return policy.DefaultCouponValue
}

// orderFor returns the case file's order with configured defaults filling any
// missing id or amount.
func (s *Stage) orderFor(cf models.CaseFile) models.OrderRef {
	order := models.OrderRef{ID: s.policy.DefaultOrderID, Amount: s.policy.DefaultRefundAmount}
	if ref := cf.Order(); ref != nil {
		if ref.ID != "" {
			order.ID = ref.ID
		}
		if ref.Amount.IsPositive() {
			order.Amount = ref.Amount
		}
	}
	return order
}

// orderStatus is advisory: a failed lookup is logged and yields "".
func (s *Stage) orderStatus(ctx context.Context, cf models.CaseFile) string {
	ref := cf.Order()
	if s.orders == nil || ref == nil || ref.ID == "" {
		return ""
	}
	st, err := s.orders.OrderStatus(ctx, ref.ID)
	if err != nil {
		slog.Warn("order status lookup failed", "order_id", ref.ID, "error", err)
		return ""
	}
	return st.Status
}

func tierLabel(tier string) string {
	if tier == "" {
		return models.TierStandard
	}
	return tier
}

func couponLabel(value int, unit string) string {
	if unit == models.CouponUnitDollars {
		return fmt.Sprintf("$%d", value)
	}
	return fmt.Sprintf("%d%%", value)
}
