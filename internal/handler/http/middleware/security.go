package middleware

import (
	"net/http"
	"strings"

	"diet-cookbook/pkg/security/csp"
)

// SwaggerPrefix is where the API documentation UI is served.
const SwaggerPrefix = "/swagger/"

var (
	apiPolicy     = csp.APIPolicy()
	swaggerPolicy = csp.SwaggerUIPolicy()
)

// SecurityHeaders sets HSTS, a Content-Security-Policy and the clickjacking,
// MIME-sniffing and referrer headers on every response. JSON endpoints get a
// policy that allows nothing; the documentation UI under SwaggerPrefix gets
// one that lets it load its own scripts and styles.
func SecurityHeaders(next http.Handler) http.Handler {
	api, apiHeader := apiPolicy.Build(), apiPolicy.HeaderName()
	docs, docsHeader := swaggerPolicy.Build(), swaggerPolicy.HeaderName()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		if strings.HasPrefix(r.URL.Path, SwaggerPrefix) {
			h.Set(docsHeader, docs)
		} else {
			h.Set(apiHeader, api)
		}
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
