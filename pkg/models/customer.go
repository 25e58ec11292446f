// Package models contains shared data models used across the RescueDesk codebase.
package models

// Tier labels known to the default policy. The set is open: CRM systems may
// return any label and unknown tiers are treated as standard customers.
const (
	TierStandard = "Standard"
	TierSilver   = "Silver Tier"
	TierGold     = "Gold Tier"
	TierVIP      = "VIP"
)

// CustomerProfile is a read-only CRM snapshot held for the duration of one run.
type CustomerProfile struct {
	LifetimeValue    float64 `json:"ltv"`
	Tier             string  `json:"status"`
	RecentOrderCount int     `json:"recent_order_count"`
	DisplayName      string  `json:"display_name,omitempty"`
}
