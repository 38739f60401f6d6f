// Package api exposes the pipeline as an HTTP trigger for scheduled or
// ad-hoc invocation. A cron-equivalent scheduler POSTs /api/run; the pipeline
// is idempotent across repeated invocations by construction of the ledger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/rowanlabs/cloudbrief/internal/pipeline"
	"github.com/rowanlabs/cloudbrief/internal/usage"
)

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context) (*pipeline.Report, error)

// NewRouter creates the HTTP router for serve mode.
func NewRouter(run RunFunc) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	r.Use(Recovery)

	var mu sync.Mutex

	r.Route("/api", func(api chi.Router) {
		api.Post("/run", handleRun(run, &mu))
		api.Get("/healthz", handleHealth)
	})

	return r
}

// handleRun triggers a pipeline run. Only one run may be in flight at a
// time; overlapping triggers get 409 rather than a duplicate run racing the
// ledger.
func handleRun(run RunFunc, mu *sync.Mutex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !mu.TryLock() {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "a run is already in progress",
			})
			return
		}
		defer mu.Unlock()

		report, err := run(r.Context())
		if err != nil {
			slog.Error("triggered run failed", "error", err)
			status := http.StatusInternalServerError
			var fe *usage.FatalError
			if errors.As(err, &fe) {
				status = http.StatusBadGateway
			}
			writeJSON(w, status, map[string]any{
				"error":  err.Error(),
				"report": report,
			})
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
