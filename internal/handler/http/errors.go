package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"diet-cookbook/internal/handler/http/respond"
	"diet-cookbook/internal/infra/storage"
	"diet-cookbook/internal/resilience"
	"diet-cookbook/internal/usecase/recipe"
)

// writeInvocationError maps an error from a protected call to an HTTP response.
//
//	rate limited, budget exhausted  -> 429
//	breaker open                    -> 503
//	upload rejected by validation   -> 404, 413 or 415
//	dependency failure              -> 502
//	caller deadline                 -> 504
func writeInvocationError(w http.ResponseWriter, r *http.Request, err error) {
	// Validation failures are checked first: they arrive wrapped in an UpstreamError.
	switch {
	case errors.Is(err, recipe.ErrInvalidRequest):
		respond.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "upload_not_found", "uploaded object not found")
		return
	case errors.Is(err, storage.ErrTooLarge):
		respond.Error(w, http.StatusRequestEntityTooLarge, "upload_too_large", "uploaded object is too large")
		return
	case errors.Is(err, storage.ErrUnsupportedType):
		respond.Error(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "upload must be a JPEG, PNG or WebP image")
		return
	}

	outcome := resilience.OutcomeOf(err)
	switch outcome {
	case resilience.OutcomeRateLimited:
		respond.Error(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
	case resilience.OutcomeBudgetExceeded:
		respond.Error(w, http.StatusTooManyRequests, "budget_exceeded", "AI usage limit reached, try again later")
	case resilience.OutcomeBreakerOpen:
		respond.Error(w, http.StatusServiceUnavailable, "dependency_unavailable", "service temporarily unavailable, try again later")
	case resilience.OutcomeUpstream:
		slog.ErrorContext(r.Context(), "dependency failure",
			slog.String("path", r.URL.Path),
			slog.String("error", respond.SanitizeError(err)))
		respond.Error(w, http.StatusBadGateway, "upstream_failure", "upstream service failed")
	case resilience.OutcomeCanceled:
		if errors.Is(err, context.Canceled) {
			// The client is gone; nobody will read the body.
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		respond.Error(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		respond.Internal(w, r, err)
	}
}
