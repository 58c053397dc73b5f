package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"iamcore/internal/api"
	"iamcore/internal/middleware"
)

// NewRouter assembles the HTTP surface: liveness probe, public token
// exchange, and the credential-authenticated API under /api/v1.
func NewRouter(a *App) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(a.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.Cfg.CORSAllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept", "Content-Type",
			middleware.HeaderAccessKeyID,
			middleware.HeaderSecretKey,
			middleware.HeaderSessionToken,
		},
		MaxAge: 300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: a.Cfg.RateLimitRPS,
		Burst:             a.Cfg.RateLimitBurst,
	}))

	r.Get("/healthz", api.Healthz(func(ctx context.Context) error {
		return a.DB.PingContext(ctx)
	}))

	r.Route("/api/v1", func(r chi.Router) {
		a.Handler.PublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(a.Vault, a.Root))
			a.Handler.Routes(r)
		})
	})

	return r
}

// requestLogger emits one structured line per completed request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.RequestIDFromContext(r.Context()),
			)
		})
	}
}
