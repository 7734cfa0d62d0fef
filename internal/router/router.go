package router

import (
	"net/http"

	"pricedesk-api/internal/handler"
	"pricedesk-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	HealthHandler    *handler.HealthHandler
	AuthHandler      *handler.AuthHandler
	ProductHandler   *handler.ProductHandler
	FloorHandler     *handler.FloorHandler
	SchedulerHandler *handler.SchedulerHandler
	RunHandler       *handler.RunHandler
	AuthMiddleware   func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC status endpoint
	r.Get("/api/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints: health checks and session establishment
		if cfg.HealthHandler != nil {
			r.Get("/health", cfg.HealthHandler.Health)
			r.Get("/ready", cfg.HealthHandler.Ready)
		}
		if cfg.AuthHandler != nil {
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/status", cfg.AuthHandler.Status)
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.AuthHandler != nil {
				r.Post("/auth/logout", cfg.AuthHandler.Logout)
				r.Post("/auth/sign-out", cfg.AuthHandler.SignOut)
			}

			if cfg.ProductHandler != nil {
				r.Route("/products", func(r chi.Router) {
					r.Post("/load", cfg.ProductHandler.Load)
					r.Get("/", cfg.ProductHandler.List)
					r.Put("/{id}", cfg.ProductHandler.Update)
					r.Post("/bulk-update", cfg.ProductHandler.BulkUpdate)
				})
			}

			if cfg.FloorHandler != nil {
				r.Route("/floors", func(r chi.Router) {
					r.Get("/", cfg.FloorHandler.List)
					r.Get("/{id}", cfg.FloorHandler.Get)
					r.Put("/{id}", cfg.FloorHandler.Set)
				})
			}

			if cfg.SchedulerHandler != nil {
				r.Route("/scheduler", func(r chi.Router) {
					r.Post("/start", cfg.SchedulerHandler.Start)
					r.Post("/stop", cfg.SchedulerHandler.Stop)
					r.Get("/status", cfg.SchedulerHandler.Status)
				})
			}

			if cfg.RunHandler != nil {
				r.Get("/runs", cfg.RunHandler.List)
			}
		})
	})

	return r
}
