// Package server exposes the webhook endpoint and a health check over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type SessionCounter interface {
	Len() int
}

type FileCounter interface {
	Live() int
}

// OperationStats reports journal totals keyed "operation/outcome".
type OperationStats interface {
	OperationCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

// statsWindow is how far back /healthz counts operations.
const statsWindow = 24 * time.Hour

type Config struct {
	Port int
	// WebhookPath defaults to /webhook.
	WebhookPath     string
	ShutdownTimeout time.Duration
}

type Health struct {
	Status     string         `json:"status"`
	Sessions   int            `json:"sessions"`
	Files      int            `json:"files"`
	Operations map[string]int `json:"operations,omitempty"`
}

// NewRouter mounts webhook under path when it is non-nil. stats may be nil
// when no journal is configured; a failing journal turns /healthz into 503.
func NewRouter(path string, webhook http.Handler, sessions SessionCounter, files FileCounter, stats OperationStats, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health := Health{
			Status:   "ok",
			Sessions: sessions.Len(),
			Files:    files.Live(),
		}
		status := http.StatusOK
		if stats != nil {
			counts, err := stats.OperationCounts(r.Context(), time.Now().Add(-statsWindow))
			if err != nil {
				log.Warn().Err(err).Msg("journal stats")
				health.Status = "degraded"
				status = http.StatusServiceUnavailable
			} else {
				health.Operations = counts
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(health)
	})

	if webhook != nil {
		if path == "" {
			path = "/webhook"
		}
		r.Post(path, webhook.ServeHTTP)
	}
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Msg("http request")
		})
	}
}

type Server struct {
	srv     *http.Server
	timeout time.Duration
	log     zerolog.Logger
}

func New(cfg Config, handler http.Handler, log zerolog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		timeout: cfg.ShutdownTimeout,
		log:     log.With().Str("component", "server").Logger(),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		serverErrors <- s.srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info().Msg("http server stopped")
	return nil
}
