// SPDX-License-Identifier: MIT

// Package statusapi serves job status, health and metrics over HTTP.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/passforge/internal/health"
	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/pipeline/controller"
	"github.com/ManuGH/passforge/internal/pipeline/progress"
	"github.com/ManuGH/passforge/internal/version"
)

const (
	defaultRateLimit  = 600
	rateWindow        = time.Minute
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Job is the view of a running job the server needs.
type Job interface {
	JobID() string
	State() controller.State
	Status(ctx context.Context) (progress.Status, error)
}

// Config configures the server.
type Config struct {
	Listen string
	// RateLimit is requests per minute per client IP; 0 uses the default.
	RateLimit int
	// TracingService enables otelhttp spans when non-empty.
	TracingService string
	// Health answers /healthz and /readyz; nil serves an empty manager.
	Health *health.Manager
}

// Server exposes /status, /healthz, /readyz and /metrics.
type Server struct {
	cfg    Config
	logger zerolog.Logger

	mu  sync.RWMutex
	job Job
}

func New(cfg Config) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Health == nil {
		cfg.Health = health.NewManager(version.Version)
	}
	return &Server{cfg: cfg, logger: log.WithComponent("statusapi")}
}

// SetJob publishes the job answered by /status. nil clears it.
func (s *Server) SetJob(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = j
}

func (s *Server) current() Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	if s.cfg.TracingService != "" {
		r.Use(tracing(s.cfg.TracingService))
	}
	r.Use(requestLogging)

	r.Get("/healthz", s.cfg.Health.ServeHealth)
	r.Get("/readyz", s.cfg.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
	r.With(rateLimit(s.cfg.RateLimit, rateWindow)).Get("/status", s.handleStatus)
	return r
}

// StatusResponse is the /status body.
type StatusResponse struct {
	JobID     string  `json:"jobId"`
	State     string  `json:"state"`
	Pass      int     `json:"pass"`
	PassCount int     `json:"passCount"`
	Percent   float64 `json:"percent"`
	Job       float64 `json:"job"`
	Remaining string  `json:"remaining"`
	Detail    string  `json:"detail,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	j := s.current()
	if j == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no_job"})
		return
	}
	resp := StatusResponse{JobID: j.JobID(), State: string(j.State()), Remaining: progress.Unknown}
	st, err := j.Status(r.Context())
	switch {
	case err == nil:
		resp.Pass, resp.PassCount = st.Pass, st.PassCount
		resp.Percent, resp.Job, resp.Remaining = st.Percent, st.Job, st.Remaining
	case errors.Is(err, controller.ErrNoActiveGraph):
		resp.Detail = err.Error()
	default:
		s.logger.Warn().Err(err).Str(log.FieldJobID, resp.JobID).Msg("status query failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "status_unavailable", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("status server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
