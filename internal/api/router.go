package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/prusalink-bridge/internal/bridge"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// API v1 routes. The surface is read-only and unauthenticated; bind it
	// to localhost unless the network is trusted.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status    string `json:"status"`
	MQTT      string `json:"mqtt"`
	MQTTError string `json:"mqtt_error,omitempty"`
	LastCycle string `json:"last_cycle,omitempty"`
	Version   string `json:"version"`
}

// handleHealth reports broker connectivity. The bridge keeps polling while
// disconnected, but nothing reaches subscribers, so that is a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.bridge.ConnectionState()
	metrics := s.bridge.GetMetrics()

	resp := HealthResponse{
		Status:  "ok",
		MQTT:    state.String(),
		Version: s.version,
	}
	if !metrics.LastCycle.IsZero() {
		resp.LastCycle = metrics.LastCycle.UTC().Format(time.RFC3339)
	}

	status := http.StatusOK
	if state != bridge.Connected {
		resp.Status = "degraded"
	}
	if state == bridge.Disconnected {
		status = http.StatusServiceUnavailable
	}

	if s.broker != nil {
		if err := s.broker.HealthCheck(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.MQTTError = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}

// SnapshotResponse is the body of GET /api/v1/snapshot.
type SnapshotResponse struct {
	Timestamp string            `json:"timestamp"`
	Signals   map[string]string `json:"signals"`
}

// handleSnapshot returns the latest snapshot keyed by signal.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.bridge.CurrentSnapshot()
	if !ok {
		writeNotFound(w, "no poll cycle has completed yet")
		return
	}

	now := time.Now()
	writeJSON(w, http.StatusOK, SnapshotResponse{
		Timestamp: now.UTC().Format(time.RFC3339),
		Signals:   snap.Payloads(now),
	})
}
