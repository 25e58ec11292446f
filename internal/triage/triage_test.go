package triage_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kiranshivaraju/rescuedesk/internal/collab"
	"github.com/kiranshivaraju/rescuedesk/internal/collab/mock"
	"github.com/kiranshivaraju/rescuedesk/internal/config"
	"github.com/kiranshivaraju/rescuedesk/internal/triage"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStage(b *mock.Backoffice) *triage.Stage {
	return triage.NewStage(b, b, config.DefaultPolicy().Triage)
}

func TestTriage_HighValueGoldCustomerWithDamagedItemEscalates(t *testing.T) {
	b := mock.New()
	b.Transcripts["T-worst"] = "Customer: This is the worst experience. The parcel arrived damaged."
	s := newStage(b)

	d, err := s.Triage(context.Background(), models.IncidentRef{CustomerID: "high-LTV-1500-GoldTier", TranscriptID: "T-worst"})
	require.NoError(t, err)

	assert.True(t, d.Escalate)
	assert.Equal(t, models.PriorityHigh, d.Priority)
	assert.Equal(t, triage.ReasonEscalated, d.Reason)
	require.NotNil(t, d.CaseFile)
	assert.Equal(t, models.TierGold, d.CaseFile.Profile.Tier)
	assert.Equal(t, b.Transcripts["T-worst"], d.CaseFile.Transcript)
	assert.Contains(t, d.CaseFile.IssueSummary, "Gold Tier")
	assert.Contains(t, d.CaseFile.IssueSummary, "damaged")
	assert.Nil(t, d.CaseFile.Contact, "contact is added later by the pipeline")
}

func TestTriage_LowValueNeutralTranscriptCloses(t *testing.T) {
	b := mock.New()
	s := newStage(b)

	d, err := s.Triage(context.Background(), models.IncidentRef{CustomerID: "C12345", TranscriptID: "T54321"})
	require.NoError(t, err)

	assert.False(t, d.Escalate)
	assert.Nil(t, d.CaseFile)
	assert.Equal(t, models.PriorityLow, d.Priority)
	assert.Equal(t, triage.ReasonNeither, d.Reason)
}

// Every combination of value and dissatisfaction escalates only on the conjunction.
func TestTriage_DecisionTable(t *testing.T) {
	angry := "I will never again shop here."
	calm := "Thanks, all good."

	tests := []struct {
		name       string
		profile    models.CustomerProfile
		transcript string
		escalate   bool
		reason     string
	}{
		{"ltv above threshold and angry", models.CustomerProfile{LifetimeValue: 501, Tier: models.TierStandard}, angry, true, triage.ReasonEscalated},
		{"ltv at threshold and angry", models.CustomerProfile{LifetimeValue: 500, Tier: models.TierStandard}, angry, false, triage.ReasonNotHighValue},
		{"vip with low ltv and angry", models.CustomerProfile{LifetimeValue: 10, Tier: models.TierVIP}, angry, true, triage.ReasonEscalated},
		{"gold and calm", models.CustomerProfile{LifetimeValue: 10, Tier: models.TierGold}, calm, false, triage.ReasonNotDissatisfied},
		{"silver low ltv and angry", models.CustomerProfile{LifetimeValue: 100, Tier: models.TierSilver}, angry, false, triage.ReasonNotHighValue},
		{"silver low ltv and calm", models.CustomerProfile{LifetimeValue: 100, Tier: models.TierSilver}, calm, false, triage.ReasonNeither},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mock.New()
			customer := fmt.Sprintf("C-%d", i)
			transcript := fmt.Sprintf("T-%d", i)
			b.Customers[customer] = tt.profile
			b.Transcripts[transcript] = tt.transcript

			d, err := newStage(b).Triage(context.Background(), models.IncidentRef{CustomerID: customer, TranscriptID: transcript})
			require.NoError(t, err)
			assert.Equal(t, tt.escalate, d.Escalate)
			assert.Equal(t, tt.escalate, d.CaseFile != nil)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestTriage_EveryDefaultPhraseIsSevere(t *testing.T) {
	for phrase := range config.DefaultPolicy().Triage.Phrases {
		t.Run(phrase, func(t *testing.T) {
			b := mock.New()
			b.Transcripts["T-x"] = "Customer: well... " + phrase + "!"
			d, err := newStage(b).Triage(context.Background(), models.IncidentRef{CustomerID: "C67890", TranscriptID: "T-x"})
			require.NoError(t, err)
			assert.True(t, d.Escalate)
		})
	}
}

func TestTriage_CustomThresholdAndTiers(t *testing.T) {
	b := mock.New()
	policy := config.DefaultPolicy().Triage
	policy.HighValueThreshold = 2000
	policy.HighValueTiers = []string{"Platinum"}
	s := triage.NewStage(b, b, policy)

	d, err := s.Triage(context.Background(), models.IncidentRef{CustomerID: "C67890", TranscriptID: "T12345"})
	require.NoError(t, err)
	assert.False(t, d.Escalate, "1500 Gold Tier is no longer high-value")
}

func TestTriage_UnknownCustomerIsLookupFailure(t *testing.T) {
	b := mock.New()
	_, err := newStage(b).Triage(context.Background(), models.IncidentRef{CustomerID: "nobody", TranscriptID: "T12345"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, triage.ErrLookupFailure))
	assert.True(t, errors.Is(err, collab.ErrNotFound))
}

func TestTriage_TranscriptErrorIsLookupFailure(t *testing.T) {
	b := mock.New()
	b.TranscriptErr = collab.ErrUnavailable

	_, err := newStage(b).Triage(context.Background(), models.IncidentRef{CustomerID: "C67890", TranscriptID: "T12345"})
	assert.ErrorIs(t, err, triage.ErrLookupFailure)
	assert.ErrorIs(t, err, collab.ErrUnavailable)
}

func TestTriage_EmptyTranscriptIsLookupFailure(t *testing.T) {
	b := mock.New()
	b.Transcripts["T-empty"] = "  "

	_, err := newStage(b).Triage(context.Background(), models.IncidentRef{CustomerID: "C67890", TranscriptID: "T-empty"})
	assert.ErrorIs(t, err, triage.ErrLookupFailure)
}

func TestIssueSummary(t *testing.T) {
	assert.Equal(t, "Gold Tier customer reports churn risk, damaged item",
		triage.IssueSummary(models.TierGold, []string{"churn_risk", "damaged_item"}))
	assert.Equal(t, "Standard customer reports dissatisfaction", triage.IssueSummary("", nil))
}
