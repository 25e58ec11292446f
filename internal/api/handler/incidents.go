package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/rescuedesk/internal/api/response"
	"github.com/kiranshivaraju/rescuedesk/internal/pipeline"
	"github.com/kiranshivaraju/rescuedesk/internal/store"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// IncidentService is the part of the pipeline the incident handlers use.
type IncidentService interface {
	Trigger(ctx context.Context, event models.IncidentEvent) (*models.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	RunState(ctx context.Context, id uuid.UUID) (string, error)
}

// RunLister lists persisted runs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]*models.Run, int, error)
}

// RecordLister lists a customer's resolution history.
type RecordLister interface {
	ListRecords(ctx context.Context, customerID string) ([]*models.ResolutionRecord, error)
}

var knownStates = map[string]bool{
	models.RunStateReceived: true,
	models.RunStateTriaged:  true,
	models.RunStateClosed:   true,
	models.RunStateSolved:   true,
	models.RunStateActed:    true,
	models.RunStateFailed:   true,
}

// NewSubmitIncidentHandler returns an http.HandlerFunc for POST /api/v1/incidents.
// The run is started in the background; clients poll its id.
func NewSubmitIncidentHandler(svc IncidentService, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event models.IncidentEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if err := v.Struct(event); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", fieldErrors(err))
			return
		}

		run, err := svc.Trigger(r.Context(), event)
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrDuplicateIncident):
				response.Error(w, http.StatusConflict, "DUPLICATE_INCIDENT",
					"This incident was already submitted", nil)
			case errors.Is(err, pipeline.ErrInvalidIncident):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			default:
				slog.Error("incident submission failed", "customer_id", event.CustomerID, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to start incident run", nil)
			}
			return
		}

		w.Header().Set("Location", "/api/v1/incidents/"+run.ID.String())
		response.Accepted(w, run)
	}
}

// NewListIncidentsHandler returns an http.HandlerFunc for GET /api/v1/incidents.
func NewListIncidentsHandler(runs RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		state := q.Get("state")
		if state != "" && !knownStates[state] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unknown run state", map[string]string{"state": state})
			return
		}

		page, limit, ok := pagination(w, r)
		if !ok {
			return
		}

		filter := store.RunFilter{
			CustomerID: q.Get("customer_id"),
			State:      state,
			Page:       page,
			Limit:      limit,
		}
		list, total, err := runs.ListRuns(r.Context(), filter)
		if err != nil {
			slog.Error("listing runs failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list incidents", nil)
			return
		}
		if list == nil {
			list = []*models.Run{}
		}

		response.Collection(w, list, response.Page(page, limit, total))
	}
}

// NewGetIncidentHandler returns an http.HandlerFunc for GET /api/v1/incidents/{runID}.
func NewGetIncidentHandler(svc IncidentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := runID(w, r)
		if !ok {
			return
		}

		run, err := svc.GetRun(r.Context(), id)
		if err != nil {
			writeRunError(w, id, err)
			return
		}
		response.JSON(w, run)
	}
}

// NewIncidentStateHandler returns an http.HandlerFunc for
// GET /api/v1/incidents/{runID}/state. It answers from the cache when it can.
func NewIncidentStateHandler(svc IncidentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := runID(w, r)
		if !ok {
			return
		}

		state, err := svc.RunState(r.Context(), id)
		if err != nil {
			writeRunError(w, id, err)
			return
		}
		response.JSON(w, map[string]any{
			"run_id":   id,
			"state":    state,
			"terminal": models.IsTerminal(state),
		})
	}
}

// NewListRecordsHandler returns an http.HandlerFunc for
// GET /api/v1/customers/{customerID}/records.
func NewListRecordsHandler(records RecordLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := chi.URLParam(r, "customerID")
		if customerID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "customerID is required", nil)
			return
		}

		list, err := records.ListRecords(r.Context(), customerID)
		if err != nil {
			slog.Error("listing records failed", "customer_id", customerID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list records", nil)
			return
		}

		entries := make([]recordResponse, 0, len(list))
		for _, rec := range list {
			entries = append(entries, recordResponse{ResolutionRecord: rec, Entry: rec.Entry()})
		}
		response.JSON(w, entries)
	}
}

type recordResponse struct {
	*models.ResolutionRecord
	Entry string `json:"entry"`
}

func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_RUN_ID", "Invalid run ID format", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeRunError(w http.ResponseWriter, id uuid.UUID, err error) {
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "RUN_NOT_FOUND", "Incident run not found", nil)
		return
	}
	slog.Error("reading run failed", "run_id", id, "error", err)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read incident run", nil)
}

// pagination reads page and limit, writing a 400 when either is malformed.
func pagination(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	page, limit = 1, defaultPageLimit

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer", nil)
			return 0, 0, false
		}
		page = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
			return 0, 0, false
		}
		limit = min(n, maxPageLimit)
	}
	return page, limit, true
}

// fieldErrors flattens validator errors into field -> rule.
func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
