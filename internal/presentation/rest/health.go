package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Check probes one dependency. A nil error means it is usable.
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes over HTTP.
type HealthHandler struct {
	service string
	checks  map[string]Check
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a health check HTTP handler. Readiness fails when
// any of checks fails.
func NewHealthHandler(service string, checks map[string]Check, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{service: service, checks: checks, timeout: 2 * time.Second, logger: logger}
}

// RegisterRoutes attaches health-check routes to the given mux. A non-nil
// metrics handler is served at /metrics.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux, metrics http.Handler) {
	mux.HandleFunc("GET /healthz", h.liveness)
	mux.HandleFunc("GET /readyz", h.readiness)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
}

func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": h.service,
	})
}

func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	code := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			results[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if code != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, code, map[string]any{
		"status":  state,
		"service": h.service,
		"checks":  results,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}
