package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	mw "github.com/hellodits/dee-POS-sub002/internal/adapters/primary/http/middleware"
)

// RouterConfig carries everything the gateway router mounts.
type RouterConfig struct {
	Logger         *slog.Logger
	WebSocket      *WebSocketHandler
	Events         *EventsHandler
	Health         *HealthHandler
	Metrics        http.Handler // nil disables the metrics route
	MetricsPath    string
	IngressKeyHash string
	AllowedOrigins []string
	RateLimiter    *mw.RateLimiter // nil disables general rate limiting
}

// NewRouter builds the gateway's HTTP surface.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(cfg.Logger))
	r.Use(mw.RecoveryLogger(cfg.Logger))

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", mw.RequestIDHeader, mw.IngressKeyHeader},
		ExposedHeaders: []string{mw.RequestIDHeader},
		MaxAge:         300,
	}))

	// Health check endpoints (outside /api/v1 for standard probe paths)
	cfg.Health.RegisterRoutes(r)

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.Metrics)
	}

	// WebSocket route (authentication is handled inside the handler)
	r.Get("/ws", cfg.WebSocket.ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", cfg.WebSocket.ServeHTTP)

		// Collaborator ingress
		r.Group(func(r chi.Router) {
			r.Use(mw.IngressKeyAuth(cfg.IngressKeyHash, cfg.Logger))
			r.Route("/events", cfg.Events.RegisterRoutes)
		})
	})

	return r
}
