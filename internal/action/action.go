// Package action executes the top-ranked remedy, tells the customer about it
// and appends the resolution to the customer's history.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rescuedesk/internal/collab"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

// FollowupJustification replaces the candidate's justification when its
// executor fails or when the follow-up candidate itself is chosen.
const FollowupJustification = "A customer care specialist will contact you personally to resolve this issue"

// Stage is the action stage. It is safe for concurrent use.
type Stage struct {
	executors collab.Executors
	messenger collab.Messenger
	records   collab.RecordKeeper
	channel   string
	now       func() time.Time
}

// NewStage creates an action Stage. channel is the messaging channel stamped on
// every outgoing message.
func NewStage(executors collab.Executors, messenger collab.Messenger, records collab.RecordKeeper, channel string) *Stage {
	return &Stage{
		executors: executors,
		messenger: messenger,
		records:   records,
		channel:   channel,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type executeParams struct {
	runID uuid.UUID
}

// ExecuteOption customizes a single Execute call.
type ExecuteOption func(*executeParams)

// WithRunID stamps the resolution record with the run that produced it.
func WithRunID(id uuid.UUID) ExecuteOption {
	return func(p *executeParams) {
		p.runID = id
	}
}

// Execute selects candidates[0], dispatches it to exactly one executor, sends
// the customer a message and appends a resolution record.
//
// Only precondition failures are returned as errors. Executor, delivery and
// record failures are reported in the summary and never stop later steps.
func (s *Stage) Execute(ctx context.Context, cf models.CaseFile, candidates []models.Candidate, opts ...ExecuteOption) (*models.ActionSummary, error) {
	params := &executeParams{}
	for _, opt := range opts {
		opt(params)
	}

	if len(candidates) == 0 {
		return nil, ErrNoViableSolution
	}
	if cf.Contact == nil {
		return nil, ErrMissingContact
	}
	top := candidates[0]
	if err := validate(top); err != nil {
		return nil, err
	}

	summary := &models.ActionSummary{Candidate: top}
	justification := top.Justification

	result, couponCode := s.dispatch(ctx, top)
	summary.Action = result
	if result.Failed() {
		slog.Warn("action executor failed",
			"run_id", params.runID,
			"action", top.Kind,
			"error", result.Error,
		)
		justification = FollowupJustification
		couponCode = ""
	}

	summary.Communication = s.communicate(ctx, cf, justification, couponCode)
	if summary.Communication.Failed() {
		slog.Warn("customer communication failed", "run_id", params.runID, "error", summary.Communication.Error)
	}

	record := models.ResolutionRecord{
		ID:              uuid.New(),
		CustomerID:      cf.Contact.CustomerID,
		RunID:           params.runID,
		IncidentSummary: cf.IssueSummary,
		Justification:   justification,
		CreatedAt:       s.now(),
	}
	summary.Resolution = record
	if err := s.records.AppendRecord(ctx, record); err != nil {
		summary.Record = models.SideEffect{Status: models.OutcomeFailed, Error: wrap(collab.ErrWriteFailure, err).Error()}
		slog.Error("resolution record write failed", "run_id", params.runID, "error", err)
	} else {
		summary.Record = models.SideEffect{Status: models.OutcomeSucceeded}
	}

	return summary, nil
}

// validate rejects candidates that would reach no executor or an executor
// without the parameters it needs.
func validate(c models.Candidate) error {
	switch c.Kind {
	case models.ActionFullRefund:
		if c.Params.OrderID == "" || c.Params.Amount == nil || !c.Params.Amount.IsPositive() {
			return fmt.Errorf("%w: %s needs order_id and a positive amount", ErrInvalidCandidate, c.Kind)
		}
	case models.ActionExpressReshipment, models.ActionStandardReshipment:
		if c.Params.OrderID == "" {
			return fmt.Errorf("%w: %s needs order_id", ErrInvalidCandidate, c.Kind)
		}
	case models.ActionCouponIssuance:
		if c.Params.CouponValue <= 0 || c.Params.CouponUnit == "" {
			return fmt.Errorf("%w: %s needs value and unit", ErrInvalidCandidate, c.Kind)
		}
	case models.ActionFallbackFollowup:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, c.Kind)
	}
	return nil
}

// dispatch invokes the single executor for c.Kind. c has already passed validate.
func (s *Stage) dispatch(ctx context.Context, c models.Candidate) (models.SideEffect, string) {
	var (
		receipt    collab.Receipt
		couponCode string
		err        error
	)

	switch c.Kind {
	case models.ActionFullRefund:
		receipt, err = s.executors.Refunds.Refund(ctx, c.Params.OrderID, *c.Params.Amount)
	case models.ActionExpressReshipment:
		receipt, err = s.executors.Reships.Reship(ctx, c.Params.OrderID, true)
	case models.ActionStandardReshipment:
		receipt, err = s.executors.Reships.Reship(ctx, c.Params.OrderID, false)
	case models.ActionCouponIssuance:
		var coupon collab.Coupon
		coupon, err = s.executors.Coupons.IssueCoupon(ctx, c.Params.CouponValue, c.Params.CouponUnit)
		couponCode = coupon.Code
		receipt.Status = "issued coupon " + coupon.Code
	case models.ActionFallbackFollowup:
		return models.SideEffect{Status: models.OutcomeDeferred, Detail: "handed to customer care for follow-up"}, ""
	}

	if err != nil {
		return models.SideEffect{Status: models.OutcomeFailed, Error: wrap(collab.ErrExecutionFailure, err).Error()}, ""
	}
	return models.SideEffect{Status: models.OutcomeSucceeded, Detail: receipt.Status}, couponCode
}

func (s *Stage) communicate(ctx context.Context, cf models.CaseFile, justification, couponCode string) models.SideEffect {
	if cf.Contact.Address == "" {
		return models.SideEffect{Status: models.OutcomeSkipped, Detail: "no contact address"}
	}

	subject, body, err := DraftMessage(cf.Profile.DisplayName, justification, couponCode)
	if err != nil {
		return models.SideEffect{Status: models.OutcomeFailed, Error: err.Error()}
	}

	receipt, err := s.messenger.Send(ctx, collab.Message{
		Recipient: cf.Contact.Address,
		Channel:   s.channel,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		return models.SideEffect{Status: models.OutcomeFailed, Error: wrap(collab.ErrDeliveryFailure, err).Error()}
	}
	return models.SideEffect{Status: models.OutcomeSucceeded, Detail: receipt.Status}
}

// wrap tags err with sentinel unless it already carries it.
func wrap(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
