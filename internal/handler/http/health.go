// Package http exposes the service over HTTP: recipe generation, upload
// verification, health and metrics, and the admin endpoint that resets
// circuit breakers.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"diet-cookbook/internal/handler/http/respond"
	"diet-cookbook/internal/resilience/circuitbreaker"
	"diet-cookbook/internal/usage"
	"diet-cookbook/pkg/ratelimit"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string                    `json:"status"`
	Timestamp    string                    `json:"timestamp"`
	Version      string                    `json:"version,omitempty"`
	Breakers     []circuitbreaker.Snapshot `json:"breakers"`
	Usage        *usage.Snapshot           `json:"usage,omitempty"`
	RateLimiters []LimiterHealth           `json:"rate_limiters"`
}

// LimiterHealth describes one rate limiter.
type LimiterHealth struct {
	Name       string `json:"name"`
	Limit      int    `json:"limit"`
	Window     string `json:"window"`
	ActiveKeys int    `json:"active_keys"`
}

// HealthHandler reports the state of the resilience layer.
//
// The service is "degraded" while any breaker is open or the usage budget is
// exhausted. It still answers 200 then, since it keeps serving what it can.
type HealthHandler struct {
	Version  string
	Breakers []*circuitbreaker.CircuitBreaker
	Guard    *usage.Guard
	Limiters []*ratelimit.Limiter
}

// ServeHTTP implements http.Handler.
//
// @Summary      Health check
// @Description  Reports circuit breaker states, the AI spend ledger and rate limiter usage.
// @Description  Status is "degraded" while a breaker is open or the budget is exhausted.
// @Tags         health
// @Produce      json
// @Success      200 {object} HealthResponse
// @Router       /health [get]
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:       statusOK,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Version:      h.Version,
		Breakers:     make([]circuitbreaker.Snapshot, 0, len(h.Breakers)),
		RateLimiters: make([]LimiterHealth, 0, len(h.Limiters)),
	}

	for _, cb := range h.Breakers {
		snap := cb.Snapshot()
		if cb.IsOpen() {
			resp.Status = statusDegraded
		}
		resp.Breakers = append(resp.Breakers, snap)
	}

	if h.Guard != nil {
		snap := h.Guard.Snapshot()
		if snap.Exhausted() {
			resp.Status = statusDegraded
		}
		resp.Usage = &snap
	}

	for _, l := range h.Limiters {
		keys, err := l.KeyCount(ctx)
		if err != nil {
			slog.Warn("health: limiter key count failed",
				slog.String("limiter", l.Name()),
				slog.Any("error", err))
			keys = -1
		}
		resp.RateLimiters = append(resp.RateLimiters, LimiterHealth{
			Name:       l.Name(),
			Limit:      l.Limit(),
			Window:     l.Window().String(),
			ActiveKeys: keys,
		})
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, http.StatusOK, resp)
}
