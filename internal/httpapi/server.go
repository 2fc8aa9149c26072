// Package httpapi exposes the operator API: feedback corrections, on-demand
// pipeline runs and a health probe.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"SupplyRadar/internal/ports"
	"SupplyRadar/internal/usecase"
)

const defaultRequestTimeout = 2 * time.Minute

// Runner executes one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (*usecase.State, error)
}

// Options tunes the HTTP layer.
type Options struct {
	RequestTimeout time.Duration
}

// Server holds the dependencies shared by handlers.
type Server struct {
	ledger ports.FeedbackLedger
	runner Runner
	logger *slog.Logger

	// runMu allows one on-demand run at a time.
	runMu sync.Mutex
}

// NewServer constructs the Server and wires the chi router.
func NewServer(ledger ports.FeedbackLedger, runner Runner, logger *slog.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{ledger: ledger, runner: runner, logger: logger}
	return s.routes(opts)
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/feedback", func(r chi.Router) {
		r.Post("/", s.handleAppendFeedback)
		r.Get("/{entityID}", s.handleListFeedback)
	})

	r.Post("/runs", s.handleRun)

	return r
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
