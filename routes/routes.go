package routes

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/math-rag-agent/app"
	"github.com/upb/math-rag-agent/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoints
	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}
	var vector handlers.HealthChecker
	if deps.VectorIndex != nil {
		vector = deps.VectorIndex
	}
	health := handlers.NewHealthHandler(db, vector, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if cfg.Observability.MetricsEnabled && deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	search := handlers.NewSearchHandler(deps.SearchService, deps.Logger)
	feedback := handlers.NewFeedbackHandler(deps.FeedbackService, deps.Logger)
	admin := handlers.NewAdminHandler(
		cfg.Router.RoutingConfig(),
		deps.Audit,
		deps.FeedbackService,
		deps.APICallLogs,
		deps.Logger,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", search.HandleSearch)
		r.Post("/feedback", feedback.HandleFeedback)

		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole("admin"))
			r.Get("/stats", admin.HandleStats)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"endpoint not found"}`))
	})

	return r
}
