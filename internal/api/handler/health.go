package handler

import (
	"context"
	"net/http"
	"sort"

	"github.com/kiranshivaraju/rescuedesk/internal/api/response"
)

// Check reports whether one dependency is healthy.
type Check func(ctx context.Context) error

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// Every named check must pass for a 200.
func NewHealthHandler(checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		status := make(map[string]string, len(checks))
		degraded := false
		for _, name := range names {
			status[name] = "ok"
			if err := checks[name](r.Context()); err != nil {
				status[name] = "degraded"
				degraded = true
			}
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", status)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": status,
		})
	}
}
