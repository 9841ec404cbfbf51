package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	_ "diet-cookbook/docs" // swagger docs
	"diet-cookbook/internal/config"
	hhttp "diet-cookbook/internal/handler/http"
	"diet-cookbook/internal/handler/http/auth"
	"diet-cookbook/internal/handler/http/middleware"
	"diet-cookbook/internal/infra/completion"
	"diet-cookbook/internal/infra/storage"
	"diet-cookbook/internal/observability/logging"
	pkgconfig "diet-cookbook/internal/pkg/config"
	"diet-cookbook/internal/resilience/circuitbreaker"
	"diet-cookbook/internal/resilience/invoker"
	"diet-cookbook/internal/usage"
	"diet-cookbook/internal/usecase/recipe"
	pconfig "diet-cookbook/pkg/config"
	"diet-cookbook/pkg/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// @title           Restricted Diet Cookbook API
// @version         1.0
// @description     Recipe generation for restricted diets behind rate limits, a spend ceiling and circuit breakers.

// @contact.name   API Support

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Admin JWT. Send it as "Bearer {token}" in the Authorization header.

//go:generate swag init -g cmd/api/main.go -d ../../ -o ../../docs
func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// components are the long-lived objects built at startup.
type components struct {
	handler  http.Handler
	limiters []*ratelimit.Limiter
	cleanup  string
}

func run(logger *slog.Logger) error {
	secret := os.Getenv("JWT_SECRET")
	if err := auth.ValidateSecret([]byte(secret)); err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}

	tp := initTracing()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracer provider shutdown failed", slog.Any("error", err))
		}
	}()

	comps, err := build(logger, []byte(secret))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + pconfig.GetEnvString("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           comps.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	cleanup, err := startLimiterCleanup(comps.cleanup, comps.limiters, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		<-cleanup.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}

// build wires the resilience layer, the adapters and the HTTP surface.
func build(logger *slog.Logger, jwtSecret []byte) (*components, error) {
	resCfg, err := config.LoadResilienceConfig(pkgconfig.NewConfigMetrics("api", nil))
	if err != nil {
		return nil, err
	}

	providerCfg, err := completion.LoadConfig()
	if err != nil {
		return nil, err
	}
	provider, err := completion.NewProvider(providerCfg)
	if err != nil {
		return nil, err
	}

	storageCfg, err := storage.LoadConfig()
	if err != nil {
		return nil, err
	}
	verifier := storage.NewHTTPVerifier(storageCfg, nil)

	proxyCfg, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		return nil, fmt.Errorf("trusted proxy configuration: %w", err)
	}
	ipExtractor := middleware.NewIPExtractor(proxyCfg)

	limiterMetrics := ratelimit.NewPrometheusMetrics()
	authLimiter, err := ratelimit.NewLimiter(resCfg.AuthLimit, ratelimit.Dependencies{Metrics: limiterMetrics})
	if err != nil {
		return nil, err
	}
	aiLimiter, err := ratelimit.NewLimiter(resCfg.AILimit, ratelimit.Dependencies{Metrics: limiterMetrics})
	if err != nil {
		return nil, err
	}

	guard, err := usage.NewGuard("ai-completion", resCfg.SpendCeiling)
	if err != nil {
		return nil, err
	}

	aiBreaker := circuitbreaker.New(resCfg.AIBreaker)
	storageBreaker := circuitbreaker.New(resCfg.StorageBreaker)

	service := recipe.NewService(recipe.Dependencies{
		Provider: provider,
		Completion: invoker.New[*recipe.Recipe](invoker.Options{
			Name:    "ai-completion",
			Limiter: aiLimiter,
			Guard:   guard,
			Breaker: aiBreaker,
			Retry:   resCfg.AIRetry,
			Timeout: resCfg.AITimeout,
			Pricing: resCfg.Pricing,
		}),
		Verifier: verifier,
		Storage: invoker.New[*storage.ObjectInfo](invoker.Options{
			Name:    "storage",
			Breaker: storageBreaker,
			Retry:   resCfg.StorageRetry,
			Timeout: resCfg.StorageTimeout,
		}),
		VisionTimeout: resCfg.VisionTimeout,
	})

	logger.Info("resilience layer initialized",
		slog.String("provider", provider.Name()),
		slog.Float64("spend_ceiling", resCfg.SpendCeiling),
		slog.Int("ai_limit", resCfg.AILimit.Limit),
		slog.Duration("ai_window", resCfg.AILimit.Window),
		slog.Int("auth_limit", resCfg.AuthLimit.Limit),
		slog.Duration("auth_window", resCfg.AuthLimit.Window),
		slog.Bool("trusted_proxy", proxyCfg.Enabled),
		slog.Int("config_fallbacks", len(resCfg.Fallbacks)))

	limiters := []*ratelimit.Limiter{authLimiter, aiLimiter}
	handler := hhttp.NewRouter(hhttp.RouterConfig{
		Version:     version(),
		Logger:      logger,
		Recipes:     service,
		Breakers:    []*circuitbreaker.CircuitBreaker{aiBreaker, storageBreaker},
		Guard:       guard,
		Limiters:    limiters,
		AuthLimiter: authLimiter,
		IPExtractor: ipExtractor,
		JWTSecret:   jwtSecret,
		MetricsHandler: promhttp.HandlerFor(
			prometheus.Gatherers{prometheus.DefaultGatherer, limiterMetrics.Registry()},
			promhttp.HandlerOpts{},
		),
	})

	return &components{handler: handler, limiters: limiters, cleanup: resCfg.CleanupSchedule}, nil
}

// initTracing installs the SDK tracer provider and the W3C propagator.
// TRACING_SAMPLE_RATIO (default 1.0) sets the share of root spans sampled.
func initTracing() *sdktrace.TracerProvider {
	ratio := pconfig.GetEnvFloat("TRACING_SAMPLE_RATIO", 1.0)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}

func version() string {
	return pconfig.GetEnvString("VERSION", "dev")
}
