package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/rescuedesk/internal/api/middleware"
	"github.com/kiranshivaraju/rescuedesk/internal/api/response"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler       http.HandlerFunc
	SubmitIncident      http.HandlerFunc
	ListIncidents       http.HandlerFunc
	GetIncident         http.HandlerFunc
	IncidentState       http.HandlerFunc
	ListCustomerRecords http.HandlerFunc
	CreateKeyHandler    http.HandlerFunc
	ListKeysHandler     http.HandlerFunc
	RevokeKeyHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeIncidents))

			r.Post("/api/v1/incidents", orNotImplemented(deps.SubmitIncident))
			r.Get("/api/v1/incidents", orNotImplemented(deps.ListIncidents))
			r.Get("/api/v1/incidents/{runID}", orNotImplemented(deps.GetIncident))
			r.Get("/api/v1/incidents/{runID}/state", orNotImplemented(deps.IncidentState))

			r.Get("/api/v1/customers/{customerID}/records", orNotImplemented(deps.ListCustomerRecords))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not available in this deployment", nil)
	}
}
