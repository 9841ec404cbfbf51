package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"diet-cookbook/internal/handler/http/auth"
	"diet-cookbook/internal/handler/http/middleware"
	"diet-cookbook/internal/handler/http/requestid"
	"diet-cookbook/internal/observability/tracing"
	"diet-cookbook/internal/resilience/circuitbreaker"
	"diet-cookbook/internal/usage"
	"diet-cookbook/pkg/ratelimit"
)

// DefaultMaxBodyBytes bounds request bodies; it leaves room for a base64-encoded 8 MiB photo.
const DefaultMaxBodyBytes int64 = 12 << 20

// RouterConfig holds everything the router serves.
type RouterConfig struct {
	Version string
	Logger  *slog.Logger

	Recipes RecipeService

	Breakers []*circuitbreaker.CircuitBreaker
	Guard    *usage.Guard
	// Limiters are reported by /health.
	Limiters []*ratelimit.Limiter
	// AuthLimiter throttles the authenticated admin endpoints per client IP.
	AuthLimiter *ratelimit.Limiter

	IPExtractor middleware.IPExtractor
	JWTSecret   []byte

	MaxBodyBytes int64

	// MetricsHandler serves /metrics. Default: promhttp.Handler()
	MetricsHandler http.Handler
}

// NewRouter builds the chi router.
//
//	GET  /health
//	GET  /metrics
//	GET  /swagger/*                     (API documentation)
//	POST /ai/recipe
//	POST /uploads/verify
//	POST /admin/breakers/{name}/reset   (admin JWT, auth rate limit)
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IPExtractor == nil {
		cfg.IPExtractor = middleware.RemoteAddrExtractor{}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		tracing.Middleware,
		Logging(cfg.Logger),
		Metrics,
		Recover(cfg.Logger),
		middleware.SecurityHeaders,
		LimitRequestBody(cfg.MaxBodyBytes),
	)

	r.Method(http.MethodGet, "/health", &HealthHandler{
		Version:  cfg.Version,
		Breakers: cfg.Breakers,
		Guard:    cfg.Guard,
		Limiters: cfg.Limiters,
	})
	r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	r.Get(middleware.SwaggerPrefix+"*", httpSwagger.WrapHandler)

	recipes := &RecipeHandler{Service: cfg.Recipes, IPExtractor: cfg.IPExtractor}
	r.Post("/ai/recipe", recipes.Generate)
	r.Post("/uploads/verify", recipes.VerifyUpload)

	admin := NewAdminHandler(cfg.Breakers)
	r.Route("/admin", func(r chi.Router) {
		if cfg.AuthLimiter != nil {
			r.Use(middleware.RateLimit(cfg.AuthLimiter, cfg.IPExtractor))
		}
		r.Use(auth.RequireRole(cfg.JWTSecret, auth.RoleAdmin))
		r.Post("/breakers/{name}/reset", admin.ResetBreaker)
	})

	return r
}
