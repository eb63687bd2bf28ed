// Package server provides the HTTP server and routing for betbridge.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/di"
	"github.com/pyethone/betbridge/internal/metrics"
	analyticshandlers "github.com/pyethone/betbridge/internal/modules/analytics/handlers"
	dataupdatehandlers "github.com/pyethone/betbridge/internal/modules/dataupdate/handlers"
	predictionshandlers "github.com/pyethone/betbridge/internal/modules/predictions/handlers"
	retraininghandlers "github.com/pyethone/betbridge/internal/modules/retraining/handlers"
	"github.com/pyethone/betbridge/internal/response"
	"github.com/pyethone/betbridge/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
	Scheduler *scheduler.Scheduler // Runs jobs triggered by hand; optional
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	sched := cfg.Scheduler
	if sched == nil {
		sched = scheduler.New(cfg.Log)
	}
	systemHandlers := NewSystemHandlers(
		cfg.Container.PredictionsDB,
		cfg.Container.Coordinator,
		cfg.Container.BackupService,
		sched,
		cfg.Container.MaintenanceJob,
		cfg.Log,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Predictions block on the engine for up to PredictTimeout
		WriteTimeout: cfg.Config.Engines.PredictTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Prometheus
	s.router.Use(metricsMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(s.cfg.Engines.PredictTimeout + 15*time.Second))

	// CORS (the dashboard is served from another origin)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.NotFound(response.NotFoundHandler(s.log))
	s.router.MethodNotAllowed(response.MethodNotAllowedHandler(s.log))

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		predictionshandlers.NewHandler(s.container.PredictionService, s.cfg.PredictRateLimit, s.log).RegisterRoutes(r)
		analyticshandlers.NewHandler(s.container.AnalyticsRepo, s.log).RegisterRoutes(r)
		retraininghandlers.NewHandler(s.container.RetrainingService, s.log).RegisterRoutes(r)
		dataupdatehandlers.NewHandler(s.container.DataUpdateService, s.log).RegisterRoutes(r)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/backups", s.systemHandlers.HandleListBackups)
			r.Post("/backups", s.systemHandlers.HandleCreateBackup)
			r.Post("/maintenance", s.systemHandlers.HandleTriggerMaintenance)
		})
	})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// metricsMiddleware records request counts and latency by route pattern, so
// path parameters do not explode label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		metrics.RecordAPIRequest(r.Method, route, ww.Status(), time.Since(start))
	})
}
