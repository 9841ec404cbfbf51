// Package auth guards operational endpoints with HS256 JWT bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"diet-cookbook/internal/handler/http/requestid"
	"diet-cookbook/internal/handler/http/respond"
)

// RoleAdmin may reset circuit breakers.
const RoleAdmin = "admin"

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

type ctxKey string

const ctxSubject ctxKey = "subject"

// Claims are the token claims this service understands.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SubjectFromContext returns the authenticated subject, or "" when the request was not authenticated.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(ctxSubject).(string)
	return sub
}

// ValidateSecret rejects signing secrets too short to be safe.
func ValidateSecret(secret []byte) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	return nil
}

// RequireRole returns middleware that admits only requests carrying a valid,
// unexpired HS256 token whose role claim equals role.
// A missing or invalid token yields 401, a valid token with another role 403.
func RequireRole(secret []byte, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parseBearer(r.Header.Get("Authorization"), secret)
			if err != nil {
				slog.Warn("authentication failed",
					slog.String("request_id", requestid.FromContext(r.Context())),
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()))
				w.Header().Set("WWW-Authenticate", `Bearer realm="diet-cookbook"`)
				respond.Error(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			if claims.Role != role {
				slog.Warn("authorization failed",
					slog.String("request_id", requestid.FromContext(r.Context())),
					slog.String("subject", claims.Subject),
					slog.String("role", claims.Role),
					slog.String("required_role", role))
				respond.Error(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), ctxSubject, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(header string, secret []byte) (*Claims, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, errMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, prefix), claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", errInvalidToken)
	}
	return claims, nil
}

// IssueToken signs an HS256 token for subject with the given role, valid for ttl.
func IssueToken(secret []byte, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
