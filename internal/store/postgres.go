package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

const apiKeyColumns = `id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Runs ---

const runColumns = `id, customer_id, transcript_id, fingerprint, state, priority, reason, action_kind,
	action_status, communication_status, record_status, error_message, completed_at, created_at, updated_at`

func scanRun(row pgx.Row) (*models.Run, error) {
	var r models.Run
	err := row.Scan(&r.ID, &r.CustomerID, &r.TranscriptID, &r.Fingerprint, &r.State,
		&r.Priority, &r.Reason, &r.ActionKind, &r.ActionStatus, &r.CommunicationStatus,
		&r.RecordStatus, &r.ErrorMessage, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, customer_id, transcript_id, fingerprint, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.CustomerID, run.TranscriptID, run.Fingerprint, run.State, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]*models.Run, int, error) {
	// Build WHERE clause dynamically
	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if filter.CustomerID != "" {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argIdx))
		args = append(args, filter.CustomerID)
		argIdx++
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", argIdx))
		args = append(args, filter.State)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM runs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(`SELECT %s FROM runs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		runColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

var validTransitions = map[string][]string{
	models.RunStateReceived: {models.RunStateTriaged, models.RunStateFailed},
	models.RunStateTriaged:  {models.RunStateClosed, models.RunStateSolved, models.RunStateFailed},
	models.RunStateSolved:   {models.RunStateActed, models.RunStateFailed},
}

func (s *PostgresStore) UpdateRunState(ctx context.Context, id uuid.UUID, state string, opts ...RunUpdateOption) error {
	params := &runUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	var current string
	err := s.pool.QueryRow(ctx, `SELECT state FROM runs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get run state: %w", err)
	}

	if !slices.Contains(validTransitions[current], state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, state)
	}

	now := time.Now().UTC()
	query := `UPDATE runs SET state = $2, updated_at = $3`
	args := []any{id, state, now}
	argIdx := 4

	set := func(column string, value any) {
		query += fmt.Sprintf(", %s = $%d", column, argIdx)
		args = append(args, value)
		argIdx++
	}

	if models.IsTerminal(state) {
		set("completed_at", now)
	}
	if params.Priority != nil {
		set("priority", *params.Priority)
	}
	if params.Reason != nil {
		set("reason", *params.Reason)
	}
	if params.Summary != nil {
		set("action_kind", string(params.Summary.Candidate.Kind))
		set("action_status", params.Summary.Action.Status)
		set("communication_status", params.Summary.Communication.Status)
		set("record_status", params.Summary.Record.Status)
	}
	if params.ErrorMessage != nil {
		set("error_message", *params.ErrorMessage)
	}

	// Guard against a concurrent writer moving the run first.
	query += fmt.Sprintf(" WHERE id = $1 AND state = $%d", argIdx)
	args = append(args, current)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, current)
	}
	return nil
}

// --- Resolution Records ---

// AppendRecord stores a resolution record. Records are never updated.
func (s *PostgresStore) AppendRecord(ctx context.Context, record models.ResolutionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	var runID *uuid.UUID
	if record.RunID != uuid.Nil {
		runID = &record.RunID
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resolution_records (id, customer_id, run_id, incident_summary, justification, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.CustomerID, runID, record.IncidentSummary, record.Justification, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("append resolution record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, customerID string) ([]*models.ResolutionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, customer_id, run_id, incident_summary, justification, created_at
		 FROM resolution_records WHERE customer_id = $1 ORDER BY created_at ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list resolution records: %w", err)
	}
	defer rows.Close()

	records := []*models.ResolutionRecord{}
	for rows.Next() {
		var r models.ResolutionRecord
		var runID *uuid.UUID
		if err := rows.Scan(&r.ID, &r.CustomerID, &runID, &r.IncidentSummary, &r.Justification, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resolution record: %w", err)
		}
		if runID != nil {
			r.RunID = *runID
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
