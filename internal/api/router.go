package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/savegress/clinicpulse/internal/audit"
	"github.com/savegress/clinicpulse/internal/collector"
	"github.com/savegress/clinicpulse/internal/config"
	"github.com/savegress/clinicpulse/internal/insights"
	"github.com/savegress/clinicpulse/internal/kpi"
	"github.com/savegress/clinicpulse/internal/sink"
)

// Server represents the API server
type Server struct {
	config   *config.Config
	router   chi.Router
	handlers *Handlers
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, c *collector.Collector, engine *kpi.Engine, snapshot *sink.Memory, auditLogger *audit.Logger, insightsClient *insights.Client) *Server {
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		handlers: &Handlers{
			collector: c,
			kpi:       engine,
			snapshot:  snapshot,
			audit:     auditLogger,
			insights:  insightsClient,
		},
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HealthCheck)

	s.router.Route("/api/v1/clinicpulse", func(r chi.Router) {
		if s.config.Server.AuthEnabled {
			r.Use(AuthMiddleware(s.config))
		}

		r.Route("/events", func(r chi.Router) {
			r.Post("/", s.handlers.CollectEvent)
			r.Post("/batch", s.handlers.CollectBatch)
		})

		r.Get("/stats", s.handlers.GetStats)
		r.Post("/flush", s.handlers.TriggerFlush)
		r.Get("/audit", s.handlers.GetAuditTrail)

		r.Route("/kpi", func(r chi.Router) {
			r.Post("/report", s.handlers.ComputeReport)
		})

		r.Route("/insights", func(r chi.Router) {
			r.Post("/no-show", s.handlers.PredictNoShow)
		})
	})
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}
