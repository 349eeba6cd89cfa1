// Package server implements the dualscribe HTTP API.
//
// The API surface:
//
//   - POST /v1/dictate   — transcribe one recording with both STT backends,
//     merge, arbitrate, and score the result.
//   - POST /v1/reconcile — merge two already-transcribed texts.
//   - POST /v1/score     — change score between two texts.
//   - GET  /healthz, /readyz, /metrics — operational endpoints.
package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dualscribe/dualscribe/internal/arbiter"
	"github.com/dualscribe/dualscribe/internal/health"
	"github.com/dualscribe/dualscribe/internal/observe"
	"github.com/dualscribe/dualscribe/internal/reconcile"
	"github.com/dualscribe/dualscribe/pkg/provider/stt"
)

// defaultMaxUploadBytes caps dictation uploads at 64 MiB.
const defaultMaxUploadBytes = 64 << 20

// Server holds the handler dependencies. Construct with [New].
type Server struct {
	primary   stt.Provider
	secondary stt.Provider
	merger    *reconcile.Merger
	arbiter   *arbiter.Arbiter
	metrics   *observe.Metrics
	health    *health.Handler
	log       *slog.Logger

	maxUploadBytes int64
}

// Option is a functional option for [New].
type Option func(*Server)

// WithArbiter enables LLM arbitration of merged transcripts. Without it,
// dictation responses keep their disagreement markers.
func WithArbiter(a *arbiter.Arbiter) Option {
	return func(s *Server) {
		s.arbiter = a
	}
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealth sets the health handler with its readiness checkers.
// Default: a handler without checkers.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMaxUploadBytes caps the accepted audio upload size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// New creates a Server that transcribes with the given primary and secondary
// STT backends. The primary provider is transcript A in merge markers.
func New(primary, secondary stt.Provider, opts ...Option) *Server {
	s := &Server{
		primary:        primary,
		secondary:      secondary,
		merger:         reconcile.NewMerger(),
		maxUploadBytes: defaultMaxUploadBytes,
		log:            slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}
	return s
}

// Handler returns the fully routed HTTP handler, wrapped in the
// observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/dictate", s.handleDictate)
	mux.HandleFunc("POST /v1/reconcile", s.handleReconcile)
	mux.HandleFunc("POST /v1/score", s.handleScore)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}
