// Package triage decides whether an incident is escalated to the solution and
// action stages.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kiranshivaraju/rescuedesk/internal/collab"
	"github.com/kiranshivaraju/rescuedesk/internal/config"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

// Reasons attached to triage decisions.
const (
	ReasonEscalated       = "high-value customer is severely dissatisfied"
	ReasonNotHighValue    = "customer is dissatisfied but not high-value"
	ReasonNotDissatisfied = "high-value customer shows no severe dissatisfaction"
	ReasonNeither         = "customer is neither high-value nor severely dissatisfied"
)

// Stage is the triage stage. It is safe for concurrent use.
type Stage struct {
	customers   collab.CustomerLookup
	transcripts collab.TranscriptLookup
	classifier  *Classifier
	threshold   float64
	tiers       []string
}

// NewStage creates a triage Stage from its collaborators and policy.
func NewStage(customers collab.CustomerLookup, transcripts collab.TranscriptLookup, policy config.TriagePolicy) *Stage {
	return &Stage{
		customers:   customers,
		transcripts: transcripts,
		classifier:  NewClassifier(policy.Phrases),
		threshold:   policy.HighValueThreshold,
		tiers:       slices.Clone(policy.HighValueTiers),
	}
}

// Triage fetches the customer profile and transcript for ref and decides
// whether to escalate. Only a high-value customer who is severely dissatisfied
// is escalated, at priority HIGH, with a case file. Every other combination
// yields a LOW, non-escalated decision without a case file.
func (s *Stage) Triage(ctx context.Context, ref models.IncidentRef) (models.TriageDecision, error) {
	profile, err := s.customers.Customer(ctx, ref.CustomerID)
	if err != nil {
		return models.TriageDecision{}, fmt.Errorf("%w: customer %q: %w", ErrLookupFailure, ref.CustomerID, err)
	}

	transcript, err := s.transcripts.Transcript(ctx, ref.TranscriptID)
	if err != nil {
		return models.TriageDecision{}, fmt.Errorf("%w: transcript %q: %w", ErrLookupFailure, ref.TranscriptID, err)
	}
	if strings.TrimSpace(transcript) == "" {
		return models.TriageDecision{}, fmt.Errorf("%w: transcript %q is empty", ErrLookupFailure, ref.TranscriptID)
	}

	c := s.classifier.Classify(transcript)
	highValue := s.IsHighValue(profile)

	slog.Debug("incident classified",
		"customer_id", ref.CustomerID,
		"high_value", highValue,
		"severe", c.Severe,
		"signals", c.Signals,
	)

	if !highValue || !c.Severe {
		return models.TriageDecision{
			Escalate: false,
			Priority: models.PriorityLow,
			Reason:   declineReason(highValue, c.Severe),
			Signals:  c.Signals,
		}, nil
	}

	return models.TriageDecision{
		Escalate: true,
		Priority: models.PriorityHigh,
		Reason:   ReasonEscalated,
		Signals:  c.Signals,
		CaseFile: &models.CaseFile{
			Profile:      profile,
			Transcript:   transcript,
			IssueSummary: IssueSummary(profile.Tier, c.Signals),
		},
	}, nil
}

// IsHighValue reports whether the lifetime value exceeds the threshold or the
// tier is one of the high-value tiers.
func (s *Stage) IsHighValue(p models.CustomerProfile) bool {
	return p.LifetimeValue > s.threshold || slices.Contains(s.tiers, p.Tier)
}

// IssueSummary renders the tier and dissatisfaction signals as one line,
// e.g. "Gold Tier customer reports damaged item, negative experience".
func IssueSummary(tier string, signals []string) string {
	if tier == "" {
		tier = models.TierStandard
	}
	words := make([]string, len(signals))
	for i, s := range signals {
		words[i] = strings.ReplaceAll(s, "_", " ")
	}
	if len(words) == 0 {
		return tier + " customer reports dissatisfaction"
	}
	return tier + " customer reports " + strings.Join(words, ", ")
}

func declineReason(highValue, severe bool) string {
	switch {
	case highValue:
		return ReasonNotDissatisfied
	case severe:
		return ReasonNotHighValue
	default:
		return ReasonNeither
	}
}
