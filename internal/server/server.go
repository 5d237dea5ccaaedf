// Package server provides the HTTP status API for the monitor.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/sentimentedge/internal/clients/monitorapi"
	"github.com/aristath/sentimentedge/internal/domain"
	"github.com/aristath/sentimentedge/internal/metrics"
	"github.com/aristath/sentimentedge/internal/queries"
	"github.com/aristath/sentimentedge/internal/reconcile"
)

// ViewSource is the reconciliation core as seen by the API
type ViewSource interface {
	View() reconcile.View
	Signals(limit int) []domain.Signal
	Refresh()
}

// SentimentSelector changes which sentiment series is polled
type SentimentSelector interface {
	Selection() queries.SentimentSelection
	Select(sel queries.SentimentSelection) error
}

// BackendProbe checks the trading backend
type BackendProbe interface {
	Health(ctx context.Context) (monitorapi.Health, error)
	BreakerState() string
}

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Core      ViewSource
	Sentiment SentimentSelector
	Backend   BackendProbe
	Metrics   *metrics.Metrics
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	core           ViewSource
	sentiment      SentimentSelector
	backend        BackendProbe
	metrics        *metrics.Metrics
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		core:           cfg.Core,
		sentiment:      cfg.Sentiment,
		backend:        cfg.Backend,
		metrics:        cfg.Metrics,
		systemHandlers: NewSystemHandlers(cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/view", s.handleView)
		r.Get("/signals", s.handleSignals)
		r.Get("/pnl", s.handlePnL)
		r.Get("/tickers", s.handleTickers)
		r.Get("/sentiment", s.handleSentiment)
		r.Post("/sentiment/select", s.handleSelectSentiment)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/system", s.systemHandlers.HandleSystemStatus)
	})

	s.router.Route("/charts", func(r chi.Router) {
		r.Get("/pnl.png", s.handlePnLChart)
		r.Get("/sentiment.png", s.handleSentimentChart)
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It blocks until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
