package solution

import (
	"strings"

	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

// QueryBuilder constructs policy lookup queries from a case file.
// Zero value is ready to use.
type QueryBuilder struct{}

// BuildPolicyQuery returns "policy for <issue summary> for <tier> customer".
func (b QueryBuilder) BuildPolicyQuery(cf models.CaseFile) string {
	parts := []string{"policy for"}

	if s := b.clean(cf.IssueSummary); s != "" {
		parts = append(parts, s)
	} else {
		parts = append(parts, "customer issue")
	}

	tier := b.clean(cf.Profile.Tier)
	if tier == "" {
		tier = models.TierStandard
	}
	parts = append(parts, "for", tier, "customer")

	return strings.Join(parts, " ")
}

func (b QueryBuilder) clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
