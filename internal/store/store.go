package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid run state transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.Run, int, error)
	UpdateRunState(ctx context.Context, id uuid.UUID, state string, opts ...RunUpdateOption) error

	AppendRecord(ctx context.Context, record models.ResolutionRecord) error
	ListRecords(ctx context.Context, customerID string) ([]*models.ResolutionRecord, error)
}

type RunFilter struct {
	CustomerID string
	State      string
	Page       int
	Limit      int
}

type runUpdateParams struct {
	Priority     *string
	Reason       *string
	Summary      *models.ActionSummary
	ErrorMessage *string
}

type RunUpdateOption func(*runUpdateParams)

func WithPriority(priority string) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.Priority = &priority
	}
}

func WithReason(reason string) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.Reason = &reason
	}
}

// WithActionSummary records the chosen action kind and the status of each
// side effect.
func WithActionSummary(summary *models.ActionSummary) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.Summary = summary
	}
}

func WithErrorMessage(msg string) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.ErrorMessage = &msg
	}
}
