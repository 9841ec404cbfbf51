package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"diet-cookbook/internal/handler/http/auth"
	"diet-cookbook/internal/handler/http/requestid"
	"diet-cookbook/internal/handler/http/respond"
	"diet-cookbook/internal/resilience/circuitbreaker"
)

// AdminHandler serves operator actions on the resilience layer.
type AdminHandler struct {
	breakers map[string]*circuitbreaker.CircuitBreaker
}

// NewAdminHandler indexes breakers by name.
func NewAdminHandler(breakers []*circuitbreaker.CircuitBreaker) *AdminHandler {
	byName := make(map[string]*circuitbreaker.CircuitBreaker, len(breakers))
	for _, cb := range breakers {
		byName[cb.Name()] = cb
	}
	return &AdminHandler{breakers: byName}
}

// ResetBreaker handles POST /admin/breakers/{name}/reset and returns the breaker's new snapshot.
//
// @Summary      Reset a circuit breaker
// @Description  Forces the named circuit breaker closed with zero failures. Requires the admin role.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        name path string true "Circuit breaker name" Enums(ai-completion, storage)
// @Success      200 {object} circuitbreaker.Snapshot headers(X-RateLimit-Limit=integer,X-RateLimit-Remaining=integer,X-RateLimit-Reset=integer)
// @Failure      401 {object} respond.ErrorBody "Authentication required - missing or invalid JWT token"
// @Failure      403 {object} respond.ErrorBody "Forbidden - admin role required"
// @Failure      404 {object} respond.ErrorBody "Unknown circuit breaker"
// @Failure      429 {object} respond.ErrorBody "Too many requests - rate limit exceeded" headers(Retry-After=integer)
// @Router       /admin/breakers/{name}/reset [post]
func (h *AdminHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cb, ok := h.breakers[name]
	if !ok {
		respond.Error(w, http.StatusNotFound, "not_found", "unknown circuit breaker")
		return
	}

	before := cb.State()
	cb.Reset()

	slog.Warn("circuit breaker reset by operator",
		slog.String("circuit", name),
		slog.String("previous_state", before.String()),
		slog.String("subject", auth.SubjectFromContext(r.Context())),
		slog.String("request_id", requestid.FromContext(r.Context())))

	respond.JSON(w, http.StatusOK, cb.Snapshot())
}
