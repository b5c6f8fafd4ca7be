package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/igorhaf/orbit-ai-optimizer/app"
	"github.com/igorhaf/orbit-ai-optimizer/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	selectionHandler := handlers.NewSelectionHandler(deps.Selector, deps.Catalog, deps.Logger)
	statsHandler := handlers.NewStatsHandler(deps.Optimizer, deps.Logger)
	experimentHandler := handlers.NewExperimentHandler(deps.Experiments, deps.Logger)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handlers.StatusHandler(deps))

		// Optimized completions are only served when the host supplied a
		// provider invoker; this layer never owns provider credentials.
		if deps.Invoker != nil {
			optimizeHandler := handlers.NewOptimizeHandler(deps.Optimizer, deps.Invoker, deps.Logger)
			r.Post("/optimize", optimizeHandler.HandleOptimize)
		}

		r.Route("/models", func(r chi.Router) {
			r.Get("/", selectionHandler.HandleListModels)
			r.Post("/select", selectionHandler.HandleSelect)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", statsHandler.HandleCacheStats)
			r.Delete("/", statsHandler.HandleClearCache)
		})

		r.Get("/batch/stats", statsHandler.HandleBatchStats)

		r.Route("/experiments", func(r chi.Router) {
			r.Get("/", experimentHandler.HandleList)
			r.Post("/", experimentHandler.HandleRegister)
			r.Get("/{id}", experimentHandler.HandleGet)
			r.Post("/{id}/assignment", experimentHandler.HandleAssign)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
