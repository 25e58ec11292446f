package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PolicyConfig holds the tunable decision rules of the pipeline stages.
type PolicyConfig struct {
	Triage   TriagePolicy
	Solution SolutionPolicy
}

// TriagePolicy controls escalation. Phrases maps a lower-case phrase to the
// dissatisfaction signal it raises.
type TriagePolicy struct {
	HighValueThreshold float64
	HighValueTiers     []string
	Phrases            map[string]string
}

// SolutionPolicy controls candidate parameters. CouponTiers maps a tier label
// to a coupon value; tiers not listed get DefaultCouponValue.
type SolutionPolicy struct {
	DefaultOrderID      string
	DefaultRefundAmount decimal.Decimal
	CouponUnit          string
	DefaultCouponValue  int
	CouponTiers         map[string]int
}

// policyFile is the YAML layout of RESCUE_POLICY_FILE. Amounts are strings so
// they parse exactly.
type policyFile struct {
	Triage struct {
		HighValueThreshold *float64          `yaml:"high_value_threshold"`
		HighValueTiers     []string          `yaml:"high_value_tiers"`
		Phrases            map[string]string `yaml:"phrases"`
	} `yaml:"triage"`
	Solution struct {
		DefaultOrderID      string         `yaml:"default_order_id"`
		DefaultRefundAmount string         `yaml:"default_refund_amount"`
		CouponUnit          string         `yaml:"coupon_unit"`
		DefaultCouponValue  *int           `yaml:"default_coupon_value"`
		CouponTiers         map[string]int `yaml:"coupon_tiers"`
	} `yaml:"solution"`
}

// DefaultPolicy returns the built-in decision rules.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		Triage: TriagePolicy{
			HighValueThreshold: 500,
			HighValueTiers:     []string{"Gold Tier", "VIP"},
			Phrases: map[string]string{
				"never again":      "churn_risk",
				"worst experience": "negative_experience",
				"reporting you":    "complaint_threat",
				"unhappy":          "negative_experience",
				"damaged":          "damaged_item",
			},
		},
		Solution: SolutionPolicy{
			DefaultOrderID:      "O-9987",
			DefaultRefundAmount: decimal.RequireFromString("75.50"),
			CouponUnit:          "percent",
			DefaultCouponValue:  15,
			CouponTiers: map[string]int{
				"VIP":         60,
				"Gold Tier":   50,
				"Silver Tier": 25,
			},
		},
	}
}

// LoadPolicy returns DefaultPolicy overlaid with the YAML file at path (if
// path is non-empty) and then with environment overrides.
func LoadPolicy(path string) (PolicyConfig, error) {
	p := DefaultPolicy()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return PolicyConfig{}, fmt.Errorf("read policy file: %w", err)
		}
		var f policyFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return PolicyConfig{}, fmt.Errorf("parse policy file: %w", err)
		}
		if err := p.overlay(f); err != nil {
			return PolicyConfig{}, err
		}
	}

	if v := os.Getenv("TRIAGE_HIGH_VALUE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return PolicyConfig{}, fmt.Errorf("TRIAGE_HIGH_VALUE_THRESHOLD must be a number, got %q", v)
		}
		p.Triage.HighValueThreshold = f
	}
	p.Solution.DefaultOrderID = envString("SOLUTION_DEFAULT_ORDER_ID", p.Solution.DefaultOrderID)
	p.Solution.DefaultRefundAmount = envDecimal("SOLUTION_DEFAULT_REFUND_AMOUNT", p.Solution.DefaultRefundAmount)

	return p, nil
}

func (p *PolicyConfig) overlay(f policyFile) error {
	if f.Triage.HighValueThreshold != nil {
		p.Triage.HighValueThreshold = *f.Triage.HighValueThreshold
	}
	if len(f.Triage.HighValueTiers) > 0 {
		p.Triage.HighValueTiers = f.Triage.HighValueTiers
	}
	if len(f.Triage.Phrases) > 0 {
		p.Triage.Phrases = f.Triage.Phrases
	}

	if f.Solution.DefaultOrderID != "" {
		p.Solution.DefaultOrderID = f.Solution.DefaultOrderID
	}
	if f.Solution.DefaultRefundAmount != "" {
		d, err := decimal.NewFromString(f.Solution.DefaultRefundAmount)
		if err != nil {
			return fmt.Errorf("policy file: default_refund_amount %q: %w", f.Solution.DefaultRefundAmount, err)
		}
		p.Solution.DefaultRefundAmount = d
	}
	if f.Solution.CouponUnit != "" {
		p.Solution.CouponUnit = f.Solution.CouponUnit
	}
	if f.Solution.DefaultCouponValue != nil {
		p.Solution.DefaultCouponValue = *f.Solution.DefaultCouponValue
	}
	if len(f.Solution.CouponTiers) > 0 {
		p.Solution.CouponTiers = f.Solution.CouponTiers
	}
	return nil
}

func (p PolicyConfig) validate() error {
	if len(p.Triage.Phrases) == 0 {
		return fmt.Errorf("triage policy needs at least one dissatisfaction phrase")
	}
	for phrase := range p.Triage.Phrases {
		if phrase == "" {
			return fmt.Errorf("triage policy contains an empty phrase")
		}
	}
	if p.Solution.DefaultOrderID == "" {
		return fmt.Errorf("solution policy default_order_id is required")
	}
	if !p.Solution.DefaultRefundAmount.IsPositive() {
		return fmt.Errorf("solution policy default_refund_amount must be positive")
	}
	if p.Solution.CouponUnit != "percent" && p.Solution.CouponUnit != "dollars" {
		return fmt.Errorf("solution policy coupon_unit must be percent or dollars, got %q", p.Solution.CouponUnit)
	}
	if p.Solution.DefaultCouponValue <= 0 {
		return fmt.Errorf("solution policy default_coupon_value must be positive")
	}
	for tier, v := range p.Solution.CouponTiers {
		if v <= 0 {
			return fmt.Errorf("solution policy coupon value for %q must be positive", tier)
		}
	}
	return nil
}
