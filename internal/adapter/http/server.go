package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hazard-reference-service/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// HazardService refreshes and reads partitioned hazard records.
type HazardService interface {
	EnsureFresh(ctx context.Context, key domain.PartitionKey) error
	Read(ctx context.Context, key domain.PartitionKey) ([]domain.DomainRecord, error)
}

// Server exposes the hazard read API plus health, readiness, and metrics
// HTTP endpoints.
type Server struct {
	httpServer *http.Server
	hazards    HazardService
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /hazards/{partition}, /healthz,
// /readyz, and /metrics routes.
func NewServer(addr string, hazards HazardService, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		hazards: hazards,
		logger:  logger,
	}

	mux.HandleFunc("GET /hazards/{partition}", s.handleHazards)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHazards(w http.ResponseWriter, r *http.Request) {
	key, err := domain.ParsePartitionKey(r.PathValue("partition"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := s.hazards.EnsureFresh(r.Context(), key); err != nil {
		s.logger.Error("partition refresh failed", "partition", key, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream refresh failed"})
		return
	}

	records, err := s.hazards.Read(r.Context(), key)
	if err != nil {
		s.logger.Error("partition read failed", "partition", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read failed"})
		return
	}
	if records == nil {
		records = []domain.DomainRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
