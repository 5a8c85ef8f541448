package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rtsched/internal/config"
	"rtsched/internal/sched"
)

// Source is the scheduler surface the dashboard reads.
type Source interface {
	Policy() sched.PolicyKind
	Snapshot(historyLimit int) sched.Snapshot
	HistoryWindow(limit int) []sched.HistoryEntry
	Alerts() []sched.Alert
	Report() sched.StatisticsReport
}

// Server is the status dashboard.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	hub       *Hub
	startTime time.Time

	mu  sync.RWMutex
	src Source
	cfg *config.Config
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithConfig sets the configuration served at /api/config.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithHub sets the hub feeding /api/events.
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// New creates a dashboard over src with all routes registered.
func New(src Source, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "dashboard"),
		startTime: time.Now(),
		src:       src,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(0)
	}
	s.routes()
	return s
}

// Hub returns the notification hub; register it as a scheduler observer.
func (s *Server) Hub() *Hub { return s.hub }

// Swap replaces the scheduler and configuration after a reload.
func (s *Server) Swap(src Source, cfg *config.Config) {
	s.mu.Lock()
	s.src, s.cfg = src, cfg
	s.mu.Unlock()
}

func (s *Server) current() (Source, *config.Config) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.src, s.cfg
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/config", s.handleConfig)
		r.Get("/history", s.handleHistory)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/analysis", s.handleAnalysis)
		r.Get("/events", s.handleEvents)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, RequestIDFromContext(r.Context()), http.StatusNotFound,
			"NOT_FOUND", "no route for "+r.URL.Path)
	})
}
