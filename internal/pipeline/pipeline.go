// Package pipeline runs incidents through triage, solution and action, and
// tracks each run's state in the store and the cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rescuedesk/internal/action"
	"github.com/kiranshivaraju/rescuedesk/internal/cache"
	"github.com/kiranshivaraju/rescuedesk/internal/config"
	"github.com/kiranshivaraju/rescuedesk/internal/store"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

// Triager decides whether an incident is escalated.
type Triager interface {
	Triage(ctx context.Context, ref models.IncidentRef) (models.TriageDecision, error)
}

// Solver ranks remedies for an escalated case file.
type Solver interface {
	Solve(ctx context.Context, cf models.CaseFile) ([]models.Candidate, error)
}

// Actor executes the top-ranked remedy.
type Actor interface {
	Execute(ctx context.Context, cf models.CaseFile, candidates []models.Candidate, opts ...action.ExecuteOption) (*models.ActionSummary, error)
}

// Notifier is told about every run that reaches a terminal state.
type Notifier interface {
	Publish(ctx context.Context, outcome models.RunOutcome) error
}

// Result is what one completed run produced. Candidates and Summary are nil
// when triage closed the run.
type Result struct {
	Run        *models.Run
	Decision   models.TriageDecision
	Candidates []models.Candidate
	Summary    *models.ActionSummary
}

// Service orchestrates the three stages.
type Service struct {
	triage   Triager
	solution Solver
	action   Actor
	store    store.Store
	cache    cache.Cache
	notifier Notifier
	cfg      config.PipelineConfig

	detached sync.WaitGroup
}

// NewService creates a new Service. notifier may be nil.
func NewService(t Triager, s Solver, a Actor, st store.Store, ca cache.Cache, notifier Notifier, cfg config.PipelineConfig) *Service {
	return &Service{
		triage:   t,
		solution: s,
		action:   a,
		store:    st,
		cache:    ca,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Process runs the incident to completion and returns its result. Fatal stage
// errors are returned after the run is marked failed.
func (s *Service) Process(ctx context.Context, event models.IncidentEvent) (*Result, error) {
	run, err := s.admit(ctx, event)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, run, event)
}

// Trigger admits the incident and runs it in a background goroutine.
// Returns the run in state received without waiting for it to finish.
func (s *Service) Trigger(ctx context.Context, event models.IncidentEvent) (*models.Run, error) {
	run, err := s.admit(ctx, event)
	if err != nil {
		return nil, err
	}

	snapshot := *run
	s.detached.Add(1)
	go func() {
		defer s.detached.Done()
		s.runDetached(run, event)
	}()

	return &snapshot, nil
}

// Drain waits for runs started by Trigger to finish. It returns ctx.Err() if
// ctx is done first.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.detached.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetRun returns the persisted run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	return s.store.GetRun(ctx, id)
}

// RunState returns the run's state from the cache, falling back to the store.
func (s *Service) RunState(ctx context.Context, id uuid.UUID) (string, error) {
	state, found, err := s.cache.GetRunState(ctx, id)
	if err != nil {
		slog.Warn("run state cache read failed", "run_id", id, "error", err)
	}
	if found {
		return state, nil
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return "", err
	}
	return run.State, nil
}

// admit rejects duplicates and persists a new run in state received.
func (s *Service) admit(ctx context.Context, event models.IncidentEvent) (*models.Run, error) {
	if event.CustomerID == "" || event.TranscriptID == "" {
		return nil, fmt.Errorf("%w: customer_id and transcript_id are required", ErrInvalidIncident)
	}

	ref := event.Ref()
	now := time.Now().UTC()
	run := &models.Run{
		ID:           uuid.New(),
		CustomerID:   ref.CustomerID,
		TranscriptID: ref.TranscriptID,
		Fingerprint:  ref.Fingerprint(),
		State:        models.RunStateReceived,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if s.cfg.DedupeTTL > 0 {
		fresh, err := s.cache.SetIfAbsent(ctx, cache.IncidentKey(run.Fingerprint), []byte(run.ID.String()), s.cfg.DedupeTTL)
		if err != nil {
			slog.Warn("incident dedupe check failed", "fingerprint", run.Fingerprint, "error", err)
		} else if !fresh {
			return nil, ErrDuplicateIncident
		}
	}

	if err := s.store.CreateRun(ctx, run); err != nil {
		s.release(ctx, run)
		return nil, fmt.Errorf("creating run: %w", err)
	}
	s.cacheState(ctx, run.ID, models.RunStateReceived)

	slog.Info("incident received", "run_id", run.ID, "customer_id", run.CustomerID)
	return run, nil
}

// runDetached executes a triggered run. It recovers from panics and always
// leaves the run in a terminal state.
func (s *Service) runDetached(run *models.Run, event models.IncidentEvent) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline run", "error", r, "run_id", run.ID)
			s.fail(ctx, run, fmt.Errorf("panic: %v", r))
		}
	}()

	if _, err := s.execute(ctx, run, event); err != nil {
		slog.Warn("pipeline run failed", "run_id", run.ID, "error", err)
	}
}

func (s *Service) execute(ctx context.Context, run *models.Run, event models.IncidentEvent) (*Result, error) {
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	result := &Result{Run: run}

	if err := deadlineErr(ctx); err != nil {
		return result, s.fail(ctx, run, err)
	}
	decision, err := s.triage.Triage(ctx, event.Ref())
	if err != nil {
		return result, s.fail(ctx, run, err)
	}
	result.Decision = decision
	s.transition(ctx, run, models.RunStateTriaged, store.WithPriority(decision.Priority), store.WithReason(decision.Reason))

	if !decision.Escalate {
		s.transition(ctx, run, models.RunStateClosed)
		s.publish(ctx, run, decision.Priority, nil, "")
		slog.Info("incident closed without escalation", "run_id", run.ID, "reason", decision.Reason)
		return result, nil
	}

	cf, err := decision.CaseFile.Enrich(models.Contact{
		CustomerID: event.CustomerID,
		Address:    event.ContactAddress,
		Order:      event.OrderRef(),
	})
	if err != nil {
		return result, s.fail(ctx, run, err)
	}

	if err := deadlineErr(ctx); err != nil {
		return result, s.fail(ctx, run, err)
	}
	candidates, err := s.solution.Solve(ctx, cf)
	if err != nil {
		return result, s.fail(ctx, run, err)
	}
	result.Candidates = candidates
	s.transition(ctx, run, models.RunStateSolved)

	if err := deadlineErr(ctx); err != nil {
		return result, s.fail(ctx, run, err)
	}
	summary, err := s.action.Execute(ctx, cf, candidates, action.WithRunID(run.ID))
	if err != nil {
		return result, s.fail(ctx, run, err)
	}
	result.Summary = summary
	s.transition(ctx, run, models.RunStateActed, store.WithActionSummary(summary))
	s.publish(ctx, run, decision.Priority, summary, "")

	slog.Info("incident resolved",
		"run_id", run.ID,
		"action", summary.Candidate.Kind,
		"action_status", summary.Action.Status,
		"communication_status", summary.Communication.Status,
		"record_status", summary.Record.Status,
	)
	return result, nil
}

// deadlineErr reports whether the run's deadline has passed. Stages are only
// started while time remains; a stage already running is allowed to finish.
func deadlineErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRunDeadline, err)
	}
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return fmt.Errorf("%w: %w", ErrRunDeadline, context.DeadlineExceeded)
	}
	return nil
}

// transition persists and caches a state change. Failures are logged; the run
// keeps going so that side effects already performed are still reported.
// The run's deadline never applies to bookkeeping.
func (s *Service) transition(ctx context.Context, run *models.Run, state string, opts ...store.RunUpdateOption) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.UpdateRunState(ctx, run.ID, state, opts...); err != nil {
		slog.Error("run state update failed", "run_id", run.ID, "from", run.State, "to", state, "error", err)
	}
	run.State = state
	run.UpdatedAt = time.Now().UTC()
	s.cacheState(ctx, run.ID, state)
}

// fail marks the run failed, frees its dedupe slot so a redelivered event can
// retry, and returns err.
func (s *Service) fail(ctx context.Context, run *models.Run, err error) error {
	// Record the failure even if the run's own deadline has passed.
	ctx = context.WithoutCancel(ctx)

	msg := err.Error()
	s.transition(ctx, run, models.RunStateFailed, store.WithErrorMessage(msg))
	run.ErrorMessage = &msg
	s.release(ctx, run)
	s.publish(ctx, run, "", nil, msg)
	return err
}

func (s *Service) release(ctx context.Context, run *models.Run) {
	if s.cfg.DedupeTTL <= 0 {
		return
	}
	if err := s.cache.Delete(ctx, cache.IncidentKey(run.Fingerprint)); err != nil {
		slog.Warn("incident dedupe release failed", "run_id", run.ID, "error", err)
	}
}

func (s *Service) cacheState(ctx context.Context, id uuid.UUID, state string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.cache.SetRunState(ctx, id, state, s.cfg.StatusTTL); err != nil {
		slog.Warn("run state cache write failed", "run_id", id, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, run *models.Run, priority string, summary *models.ActionSummary, errMsg string) {
	if s.notifier == nil {
		return
	}
	outcome := models.RunOutcome{
		RunID:      run.ID,
		CustomerID: run.CustomerID,
		State:      run.State,
		Priority:   priority,
		Summary:    summary,
		Error:      errMsg,
		At:         time.Now().UTC(),
	}
	if err := s.notifier.Publish(context.WithoutCancel(ctx), outcome); err != nil {
		slog.Warn("run outcome publish failed", "run_id", run.ID, "error", err)
	}
}

// IsClientError reports whether err was caused by the submitted incident
// rather than by the service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidIncident) || errors.Is(err, ErrDuplicateIncident)
}
