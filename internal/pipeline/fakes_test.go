package pipeline_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rescuedesk/internal/action"
	"github.com/kiranshivaraju/rescuedesk/internal/cache"
	"github.com/kiranshivaraju/rescuedesk/internal/pipeline"
	"github.com/kiranshivaraju/rescuedesk/internal/store"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

// --- memStore ---

type memStore struct {
	mu          sync.Mutex
	runs        map[uuid.UUID]*models.Run
	transitions []string
	createErr   error
	// ctxAware makes writes fail on a done context, as pgx does.
	ctxAware bool
}

func newMemStore() *memStore {
	return &memStore{runs: make(map[uuid.UUID]*models.Run)}
}

var allowed = map[string][]string{
	models.RunStateReceived: {models.RunStateTriaged, models.RunStateFailed},
	models.RunStateTriaged:  {models.RunStateClosed, models.RunStateSolved, models.RunStateFailed},
	models.RunStateSolved:   {models.RunStateActed, models.RunStateFailed},
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) GetAPIKeyByPrefix(context.Context, string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *memStore) UpdateAPIKeyLastUsed(context.Context, uuid.UUID) error       { return nil }
func (s *memStore) CreateAPIKey(context.Context, *models.APIKey) error          { return nil }
func (s *memStore) ListAPIKeys(context.Context) ([]*models.APIKey, error)       { return nil, nil }
func (s *memStore) RevokeAPIKey(context.Context, uuid.UUID) error               { return nil }
func (s *memStore) AppendRecord(context.Context, models.ResolutionRecord) error { return nil }
func (s *memStore) ListRecords(context.Context, string) ([]*models.ResolutionRecord, error) {
	return nil, nil
}
func (s *memStore) ListRuns(context.Context, store.RunFilter) ([]*models.Run, int, error) {
	return nil, 0, nil
}

func (s *memStore) CreateRun(_ context.Context, run *models.Run) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memStore) GetRun(_ context.Context, id uuid.UUID) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) UpdateRunState(ctx context.Context, id uuid.UUID, state string, _ ...store.RunUpdateOption) error {
	if s.ctxAware && ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	if !slices.Contains(allowed[r.State], state) {
		return store.ErrInvalidTransition
	}
	r.State = state
	s.transitions = append(s.transitions, state)
	return nil
}

func (s *memStore) states() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transitions)
}

func (s *memStore) state(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		return r.State
	}
	return ""
}

// --- memCache ---

type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Ping(context.Context) error { return nil }

func (c *memCache) SetIfAbsent(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

func (c *memCache) SetRunState(ctx context.Context, id uuid.UUID, state string, ttl time.Duration) error {
	return c.Set(ctx, cache.RunStateKey(id), []byte(state), ttl)
}

func (c *memCache) GetRunState(ctx context.Context, id uuid.UUID) (string, bool, error) {
	v, ok, err := c.Get(ctx, cache.RunStateKey(id))
	return string(v), ok, err
}

func (c *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

// --- notifier ---

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []models.RunOutcome
	err      error
}

func (n *recordingNotifier) Publish(_ context.Context, o models.RunOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
	return n.err
}

func (n *recordingNotifier) all() []models.RunOutcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.outcomes)
}

// --- stage doubles ---

type panickingTriager struct{}

func (panickingTriager) Triage(context.Context, models.IncidentRef) (models.TriageDecision, error) {
	panic("boom")
}

var errStage = errors.New("stage exploded")

// slowActor sleeps before delegating, ignoring cancellation like an executor
// that has already committed.
type slowActor struct {
	next  pipeline.Actor
	delay time.Duration
}

func (a slowActor) Execute(ctx context.Context, cf models.CaseFile, candidates []models.Candidate, opts ...action.ExecuteOption) (*models.ActionSummary, error) {
	time.Sleep(a.delay)
	return a.next.Execute(ctx, cf, candidates, opts...)
}

type slowSolver struct {
	next  pipeline.Solver
	delay time.Duration
}

func (s slowSolver) Solve(ctx context.Context, cf models.CaseFile) ([]models.Candidate, error) {
	time.Sleep(s.delay)
	return s.next.Solve(ctx, cf)
}

// blockingTriager holds every call until release is closed.
type blockingTriager struct {
	next    pipeline.Triager
	started chan struct{}
	release chan struct{}
}

func (b blockingTriager) Triage(ctx context.Context, ref models.IncidentRef) (models.TriageDecision, error) {
	b.started <- struct{}{}
	<-b.release
	return b.next.Triage(ctx, ref)
}
