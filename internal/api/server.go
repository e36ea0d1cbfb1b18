// Package api exposes the attachment store over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/altafino/attachment-store/internal/mailbox"
	"github.com/altafino/attachment-store/internal/manager"
	"github.com/altafino/attachment-store/internal/metrics"
	"github.com/altafino/attachment-store/internal/storage"
	"github.com/altafino/attachment-store/internal/types"
)

// Ingester runs one mailbox pass on demand
type Ingester interface {
	Ingest(ctx context.Context) (mailbox.Result, error)
}

// Auditor compares the storage index with the files on disk
type Auditor interface {
	Audit() (storage.AuditReport, error)
}

// Server is the HTTP front end of the attachment manager
type Server struct {
	cfg      *types.Config
	manager  *manager.Manager
	gatherer prometheus.Gatherer
	ingester Ingester
	auditor  Auditor
	logger   *slog.Logger
}

// Option configures optional endpoints
type Option func(*Server)

// WithMetrics serves the gatherer on the configured metrics path
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithIngester enables POST /ingest
func WithIngester(i Ingester) Option {
	return func(s *Server) { s.ingester = i }
}

// WithAuditor enables GET /audit
func WithAuditor(a Auditor) Option {
	return func(s *Server) { s.auditor = a }
}

func NewServer(cfg *types.Config, m *manager.Manager, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		manager: m,
		logger:  logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc(s.cfg.Monitoring.HealthCheckPath, s.handleHealth).Methods(http.MethodGet)

	if s.cfg.Monitoring.MetricsEnabled && s.gatherer != nil {
		r.Handle(s.cfg.Monitoring.MetricsPath, metrics.Handler(s.gatherer)).Methods(http.MethodGet)
	}

	// Attachments API
	r.HandleFunc("/attachments", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/attachments", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/attachments/embedded", s.handleCreateEmbedded).Methods(http.MethodPost)
	r.HandleFunc("/attachments/{id}", s.handleContent).Methods(http.MethodGet)
	r.HandleFunc("/attachments/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/attachments/{id}/metadata", s.handleMetadata).Methods(http.MethodGet)
	r.HandleFunc("/attachments/{id}/embedded", s.handleEmbedded).Methods(http.MethodGet)

	if s.ingester != nil {
		r.HandleFunc("/ingest", s.handleIngest).Methods(http.MethodPost)
	}
	if s.auditor != nil {
		r.HandleFunc("/audit", s.handleAudit).Methods(http.MethodGet)
	}

	r.Use(s.loggingMiddleware)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port)),
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"attachments": len(s.manager.ListIDs()),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	result, err := s.ingester.Ingest(r.Context())
	if err != nil {
		s.logger.Error("manual ingest failed", "error", err)
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.auditor.Audit()
	if err != nil {
		s.logger.Error("audit failed", "error", err)
		sendError(w, http.StatusInternalServerError, "audit failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
