// Package http provides the HTTP transport layer for replayconsole.
//
// Routes (Go 1.22+ method-qualified patterns):
//
//	GET    /health
//	POST   /sessions
//	GET    /sessions
//	GET    /sessions/{id}
//	DELETE /sessions/{id}
//	POST   /sessions/{id}/messages
//	GET    /sessions/{id}/messages
//	GET    /sessions/{id}/messages/{mid}
//	POST   /sessions/{id}/messages/{mid}/open
//	POST   /sessions/{id}/messages/{mid}/close
//	PUT    /sessions/{id}/messages/{mid}/payload
//	POST   /sessions/{id}/clear
//	POST   /sessions/{id}/evaluations/clear
//	DELETE /sessions/{id}/evaluations/{cid}
//	DELETE /sessions/{id}/logpoints/{lid}
//	PUT    /sessions/{id}/paused-point
//	GET    /sessions/{id}/filters
//	POST   /sessions/{id}/filters/{name}/toggle
//	PUT    /sessions/{id}/filters/text
//	DELETE /sessions/{id}/filters
//	POST   /sessions/{id}/filters/reset
//	GET    /sessions/{id}/filtered-count
//	POST   /sessions/{id}/actions
//	GET    /sessions/{id}/ws
//	GET    /metrics
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/snehjoshi/replayconsole/internal/config"
	"github.com/snehjoshi/replayconsole/internal/metrics"
	"github.com/snehjoshi/replayconsole/internal/session"
	transportws "github.com/snehjoshi/replayconsole/internal/transport/websocket"
)

// Server wraps the stdlib HTTP server with replayconsole route wiring.
type Server struct {
	inner *http.Server
}

// New builds a Server over a session Manager. reg may be nil, in which case
// /metrics is not mounted and nothing is recorded.
// The caller is responsible for calling ListenAndServe / Shutdown.
func New(mgr *session.Manager, nodeID string, cfg *config.Config, reg *metrics.Registry) *Server {
	h := &Handler{sessions: mgr, nodeID: nodeID}
	ws := &transportws.Handler{Sessions: mgr, Metrics: reg}

	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /health", h.health)

	// Sessions
	mux.HandleFunc("POST /sessions", h.createSession)
	mux.HandleFunc("GET /sessions", h.listSessions)
	mux.HandleFunc("GET /sessions/{id}", h.getSession)
	mux.HandleFunc("DELETE /sessions/{id}", h.deleteSession)

	// Messages
	mux.HandleFunc("POST /sessions/{id}/messages", h.addMessages)
	mux.HandleFunc("GET /sessions/{id}/messages", h.visibleMessages)
	mux.HandleFunc("GET /sessions/{id}/messages/{mid}", h.getMessage)
	mux.HandleFunc("POST /sessions/{id}/messages/{mid}/open", h.openMessage)
	mux.HandleFunc("POST /sessions/{id}/messages/{mid}/close", h.closeMessage)
	mux.HandleFunc("PUT /sessions/{id}/messages/{mid}/payload", h.updatePayload)

	// Clearing
	mux.HandleFunc("POST /sessions/{id}/clear", h.clearMessages)
	mux.HandleFunc("POST /sessions/{id}/evaluations/clear", h.clearEvaluations)
	mux.HandleFunc("DELETE /sessions/{id}/evaluations/{cid}", h.clearEvaluation)
	mux.HandleFunc("DELETE /sessions/{id}/logpoints/{lid}", h.clearLogpoint)

	// Replay position
	mux.HandleFunc("PUT /sessions/{id}/paused-point", h.setPausedPoint)

	// Filters
	mux.HandleFunc("GET /sessions/{id}/filters", h.getFilters)
	mux.HandleFunc("POST /sessions/{id}/filters/{name}/toggle", h.toggleFilter)
	mux.HandleFunc("PUT /sessions/{id}/filters/text", h.setFilterText)
	mux.HandleFunc("DELETE /sessions/{id}/filters", h.clearFilters)
	mux.HandleFunc("POST /sessions/{id}/filters/reset", h.resetFilters)
	mux.HandleFunc("GET /sessions/{id}/filtered-count", h.filteredCount)

	// Raw action dispatch
	mux.HandleFunc("POST /sessions/{id}/actions", h.dispatchAction)

	// WebSocket push
	mux.Handle("GET /sessions/{id}/ws", ws)

	// Metrics (Prometheus text format)
	if reg != nil && cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", reg.Handler())
	}

	mws := []func(http.Handler) http.Handler{
		CORSMiddleware(cfg.HTTP.AllowedOrigins),
		MaxBodyMiddleware(cfg.HTTP.MaxBodyBytes),
		LoggingMiddleware(reg),
		AuthMiddleware(cfg.Auth.APIKey, cfg.Auth.Enabled),
	}
	if cfg.RateLimit.Enabled {
		mws = append(mws, RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	return &Server{
		inner: &http.Server{
			Handler:      chain(mux, mws...),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Handler returns the composed http.Handler (useful for testing).
func (s *Server) Handler() http.Handler { return s.inner.Handler }

// ListenAndServe starts the server on the given address (e.g. ":8080").
// It returns when the server stops or encounters an error.
func (s *Server) ListenAndServe(addr string) error {
	s.inner.Addr = addr
	return s.inner.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting up to ctx's deadline for
// in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
