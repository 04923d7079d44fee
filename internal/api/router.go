package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// healthCheckTimeout bounds each component check made by /health.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	// Prometheus scrape endpoint lives at the conventional root path.
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Route("/processes", func(r chi.Router) {
			r.Get("/", s.handleListProcesses)
			r.Post("/", s.handleCreateProcess)

			r.Route("/{selector}", func(r chi.Router) {
				r.Get("/", s.handleListProcesses)
				r.Post("/{op}", s.handleProcessOp)
			})
		})

		r.Get("/status", s.handleStatus)
		r.Get("/status/{selector}", s.handleStatus)
		r.Get("/history", s.handleListHistory)
	})

	return r
}

// HealthResponse reports the daemon and its optional components.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth returns the server health status. Optional components that
// fail mark the daemon as degraded without failing the request.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}

	if len(s.health) > 0 {
		resp.Components = make(map[string]string, len(s.health))
		for name, c := range s.health {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := c.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePing answers the CLI's liveness check.
func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Ping())
}
