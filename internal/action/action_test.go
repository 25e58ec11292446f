package action_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rescuedesk/internal/action"
	"github.com/kiranshivaraju/rescuedesk/internal/collab"
	"github.com/kiranshivaraju/rescuedesk/internal/collab/mock"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrichedCase(t *testing.T) models.CaseFile {
	t.Helper()
	cf, err := models.CaseFile{
		Profile:      models.CustomerProfile{LifetimeValue: 1500, Tier: models.TierGold},
		Transcript:   "The item arrived damaged.",
		IssueSummary: "Gold Tier customer reports damaged item",
	}.Enrich(models.Contact{CustomerID: "C67890", Address: "gold@example.com"})
	require.NoError(t, err)
	return cf
}

func refundCandidate() models.Candidate {
	amount := decimal.RequireFromString("75.50")
	return models.Candidate{
		ID:            1,
		Kind:          models.ActionFullRefund,
		Params:        models.Params{OrderID: "O-9987", Amount: &amount},
		Justification: "Full refund of 75.50 for order O-9987",
		Priority:      models.PriorityHigh,
	}
}

func reshipCandidate() models.Candidate {
	return models.Candidate{
		ID:            2,
		Kind:          models.ActionExpressReshipment,
		Params:        models.Params{OrderID: "O-9987", Express: true},
		Justification: "Free replacement of order O-9987 with express shipping",
	}
}

func couponCandidate() models.Candidate {
	return models.Candidate{
		ID:            3,
		Kind:          models.ActionCouponIssuance,
		Params:        models.Params{CouponValue: 50, CouponUnit: models.CouponUnitPercent},
		Justification: "Goodwill coupon worth 50% on a future purchase",
	}
}

func newStage(b *mock.Backoffice) *action.Stage {
	return action.NewStage(b.Executors(), b, b, "email")
}

func TestExecute_RefundWritesRecordEvenWhenDeliveryFails(t *testing.T) {
	b := mock.New()
	b.SendErr = collab.ErrDeliveryFailure
	runID := uuid.New()

	summary, err := newStage(b).Execute(context.Background(), enrichedCase(t),
		[]models.Candidate{refundCandidate(), reshipCandidate(), couponCandidate()}, action.WithRunID(runID))
	require.NoError(t, err)

	require.Len(t, b.Refunds, 1)
	assert.Equal(t, "O-9987", b.Refunds[0].OrderID)
	assert.True(t, b.Refunds[0].Amount.Equal(decimal.RequireFromString("75.50")))
	assert.Empty(t, b.Reships)
	assert.Empty(t, b.Coupons)

	require.Len(t, b.Messages, 1, "the communication is attempted")
	assert.Equal(t, "gold@example.com", b.Messages[0].Recipient)
	assert.Equal(t, "email", b.Messages[0].Channel)

	require.Len(t, b.Records, 1)
	rec := b.Records[0]
	assert.Equal(t, "C67890", rec.CustomerID)
	assert.Equal(t, runID, rec.RunID)
	assert.Equal(t, "Gold Tier customer reports damaged item", rec.IncidentSummary)
	assert.Equal(t, "Full refund of 75.50 for order O-9987", rec.Justification)

	assert.Equal(t, models.OutcomeSucceeded, summary.Action.Status)
	assert.Equal(t, models.OutcomeFailed, summary.Communication.Status)
	assert.Contains(t, summary.Communication.Error, collab.ErrDeliveryFailure.Error())
	assert.Equal(t, models.OutcomeSucceeded, summary.Record.Status)
	assert.True(t, summary.PartialFailure())
	assert.Equal(t, models.ActionFullRefund, summary.Candidate.Kind)
}

func TestExecute_FullSuccess(t *testing.T) {
	b := mock.New()

	summary, err := newStage(b).Execute(context.Background(), enrichedCase(t), []models.Candidate{refundCandidate()})
	require.NoError(t, err)

	assert.False(t, summary.PartialFailure())
	assert.Equal(t, models.OutcomeSucceeded, summary.Communication.Status)
	assert.Contains(t, b.Messages[0].Body, "Dear Valued Customer,")
	assert.Contains(t, b.Messages[0].Body, "Full refund of 75.50 for order O-9987.")
}

// Reordering the same candidates changes which executor runs.
func TestExecute_AlwaysSelectsRankZero(t *testing.T) {
	tests := []struct {
		name   string
		order  []models.Candidate
		assert func(t *testing.T, b *mock.Backoffice)
	}{
		{
			name:  "refund first",
			order: []models.Candidate{refundCandidate(), reshipCandidate(), couponCandidate()},
			assert: func(t *testing.T, b *mock.Backoffice) {
				assert.Len(t, b.Refunds, 1)
				assert.Empty(t, b.Reships)
				assert.Empty(t, b.Coupons)
			},
		},
		{
			name:  "reship first",
			order: []models.Candidate{reshipCandidate(), refundCandidate(), couponCandidate()},
			assert: func(t *testing.T, b *mock.Backoffice) {
				assert.Empty(t, b.Refunds)
				require.Len(t, b.Reships, 1)
				assert.True(t, b.Reships[0].Express)
				assert.Empty(t, b.Coupons)
			},
		},
		{
			name:  "coupon first",
			order: []models.Candidate{couponCandidate(), refundCandidate(), reshipCandidate()},
			assert: func(t *testing.T, b *mock.Backoffice) {
				assert.Empty(t, b.Refunds)
				assert.Empty(t, b.Reships)
				require.Len(t, b.Coupons, 1)
				assert.Equal(t, 50, b.Coupons[0].Value)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mock.New()
			_, err := newStage(b).Execute(context.Background(), enrichedCase(t), tt.order)
			require.NoError(t, err)
			tt.assert(t, b)
		})
	}
}

func TestExecute_StandardReshipment(t *testing.T) {
	b := mock.New()
	c := reshipCandidate()
	c.Kind = models.ActionStandardReshipment

	_, err := newStage(b).Execute(context.Background(), enrichedCase(t), []models.Candidate{c})
	require.NoError(t, err)
	require.Len(t, b.Reships, 1)
	assert.False(t, b.Reships[0].Express)
}

func TestExecute_CouponCodeInMessage(t *testing.T) {
	b := mock.New()

	summary, err := newStage(b).Execute(context.Background(), enrichedCase(t), []models.Candidate{couponCandidate()})
	require.NoError(t, err)
	assert.Contains(t, summary.Action.Detail, "WELCOME50")
	assert.Contains(t, b.Messages[0].Body, "Your coupon code is WELCOME50.")
}

func TestExecute_ExecutorFailureFallsBackToFollowup(t *testing.T) {
	b := mock.New()
	b.RefundErr = collab.ErrUnavailable

	summary, err := newStage(b).Execute(context.Background(), enrichedCase(t), []models.Candidate{refundCandidate()})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, summary.Action.Status)
	assert.Contains(t, summary.Action.Error, collab.ErrExecutionFailure.Error())
	assert.True(t, summary.PartialFailure())

	require.Len(t, b.Messages, 1)
	assert.Contains(t, b.Messages[0].Body, action.FollowupJustification)
	require.Len(t, b.Records, 1)
	assert.Equal(t, action.FollowupJustification, b.Records[0].Justification)
}

func TestExecute_RecordFailureIsReported(t *testing.T) {
	b := mock.New()
	b.RecordErr = collab.ErrWriteFailure

	summary, err := newStage(b).Execute(context.Background(), enrichedCase(t), []models.Candidate{refundCandidate()})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, summary.Record.Status)
	assert.Equal(t, models.OutcomeSucceeded, summary.Action.Status)
	assert.Len(t, b.Messages, 1)
}

func TestExecute_FollowupIsDeferred(t *testing.T) {
	b := mock.New()
	c := models.Candidate{ID: 1, Kind: models.ActionFallbackFollowup, Justification: action.FollowupJustification}

	summary, err := newStage(b).Execute(context.Background(), enrichedCase(t), []models.Candidate{c})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeferred, summary.Action.Status)
	assert.Empty(t, b.Refunds)
	assert.Empty(t, b.Reships)
	assert.Empty(t, b.Coupons)
	assert.Len(t, b.Records, 1)
}

func TestExecute_NoAddressSkipsCommunication(t *testing.T) {
	b := mock.New()
	cf, err := models.CaseFile{IssueSummary: "x"}.Enrich(models.Contact{CustomerID: "C1"})
	require.NoError(t, err)

	summary, err := newStage(b).Execute(context.Background(), cf, []models.Candidate{couponCandidate()})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, summary.Communication.Status)
	assert.Empty(t, b.Messages)
	assert.Len(t, b.Records, 1)
}

func TestExecute_PreconditionsFailBeforeSideEffects(t *testing.T) {
	noAmount := refundCandidate()
	noAmount.Params.Amount = nil

	tests := []struct {
		name       string
		cf         func(t *testing.T) models.CaseFile
		candidates []models.Candidate
		wantErr    error
	}{
		{"empty list", enrichedCase, nil, action.ErrNoViableSolution},
		{"no contact", func(*testing.T) models.CaseFile { return models.CaseFile{} }, []models.Candidate{refundCandidate()}, action.ErrMissingContact},
		{"unknown kind", enrichedCase, []models.Candidate{{ID: 1, Kind: "teleport_item"}}, action.ErrUnknownAction},
		{"refund without amount", enrichedCase, []models.Candidate{noAmount}, action.ErrInvalidCandidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mock.New()
			summary, err := newStage(b).Execute(context.Background(), tt.cf(t), tt.candidates)
			assert.Nil(t, summary)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, b.Refunds)
			assert.Empty(t, b.Messages)
			assert.Empty(t, b.Records)
		})
	}
}
