package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diet-cookbook/pkg/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRemoteAddrExtractor(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
		wantErr    bool
	}{
		{remoteAddr: "192.168.1.1:54321", want: "192.168.1.1"},
		{remoteAddr: "[2001:db8::1]:8080", want: "2001:db8::1"},
		{remoteAddr: "127.0.0.1", want: "127.0.0.1"},
		{remoteAddr: "[::1]", want: "::1"},
		{remoteAddr: "not-an-address", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.remoteAddr, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr

			got, err := RemoteAddrExtractor{}.ExtractIP(req)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrustedProxyExtractor(t *testing.T) {
	cfg := TrustedProxyConfig{
		Enabled:      true,
		AllowedCIDRs: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	}

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "trusted proxy xff", remoteAddr: "10.0.0.5:1234", xff: "203.0.113.7, 10.0.0.5", want: "203.0.113.7"},
		{name: "trusted proxy x-real-ip", remoteAddr: "10.0.0.5:1234", xri: "203.0.113.8", want: "203.0.113.8"},
		{name: "trusted proxy no headers", remoteAddr: "10.0.0.5:1234", want: "10.0.0.5"},
		{name: "trusted proxy bad xff", remoteAddr: "10.0.0.5:1234", xff: "garbage", xri: "203.0.113.9", want: "203.0.113.9"},
		{name: "untrusted peer spoofing", remoteAddr: "198.51.100.1:1234", xff: "203.0.113.7", want: "198.51.100.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			got, err := NewTrustedProxyExtractor(cfg).ExtractIP(req)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadTrustedProxyConfig(t *testing.T) {
	tests := []struct {
		name      string
		enabled   string
		proxies   string
		wantCIDRs int
		wantErr   bool
	}{
		{name: "disabled", enabled: "false", proxies: "10.0.0.1"},
		{name: "single ip and cidr", enabled: "true", proxies: "10.0.0.1, 172.16.0.0/12", wantCIDRs: 2},
		{name: "ipv6", enabled: "true", proxies: "2001:db8::/32", wantCIDRs: 1},
		{name: "enabled without proxies", enabled: "true", proxies: "", wantErr: true},
		{name: "invalid entry", enabled: "true", proxies: "10.0.0.1,nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RATELIMIT_TRUST_PROXY", tt.enabled)
			t.Setenv("RATELIMIT_TRUSTED_PROXIES", tt.proxies)

			cfg, err := LoadTrustedProxyConfig()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, cfg.AllowedCIDRs, tt.wantCIDRs)
		})
	}
}

func TestLoadTrustedProxyConfig_SingleIPBecomesHostPrefix(t *testing.T) {
	t.Setenv("RATELIMIT_TRUST_PROXY", "true")
	t.Setenv("RATELIMIT_TRUSTED_PROXIES", "10.0.0.1")

	cfg, err := LoadTrustedProxyConfig()

	require.NoError(t, err)
	require.Len(t, cfg.AllowedCIDRs, 1)
	assert.Equal(t, 32, cfg.AllowedCIDRs[0].Bits())
	assert.True(t, cfg.IsTrusted("10.0.0.1:80"))
	assert.False(t, cfg.IsTrusted("10.0.0.2:80"))
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newLimiter(t *testing.T, limit int, clock ratelimit.Clock, store ratelimit.RateLimitStore) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.NewLimiter(
		ratelimit.Config{Name: "auth", Limit: limit, Window: time.Minute},
		ratelimit.Dependencies{Clock: clock, Store: store},
	)
	require.NoError(t, err)
	return l
}

func TestRateLimit(t *testing.T) {
	clock := &fixedClock{now: time.Unix(1_700_000_000, 0)}
	handler := RateLimit(newLimiter(t, 2, clock, nil), RemoteAddrExtractor{})(okHandler())

	do := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/breakers/storage/reset", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := do("192.0.2.1:1000")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, strconv.FormatInt(clock.now.Add(time.Minute).Unix(), 10), first.Header().Get("X-RateLimit-Reset"))

	assert.Equal(t, http.StatusOK, do("192.0.2.1:1001").Code)

	clock.now = clock.now.Add(20 * time.Second)
	denied := do("192.0.2.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.Equal(t, "0", denied.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "40", denied.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do("192.0.2.2:1000").Code, "other clients are unaffected")
}

type brokenStore struct{ ratelimit.RateLimitStore }

func (brokenStore) CheckAndAddRequest(context.Context, string, time.Time, time.Duration, int) (bool, ratelimit.WindowState, error) {
	return false, ratelimit.WindowState{}, errors.New("store unavailable")
}

func TestRateLimit_StoreFailureRefuses(t *testing.T) {
	handler := RateLimit(newLimiter(t, 5, nil, brokenStore{}), RemoteAddrExtractor{})(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/admin/breakers/storage/reset", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	want := map[string]string{
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
		"X-XSS-Protection":          "1; mode=block",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'; form-action 'none'; base-uri 'none'",
	}
	for header, value := range want {
		assert.Equal(t, value, rec.Header().Get(header), header)
	}
}

func TestSecurityHeaders_PolicyByPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/ai/recipe", want: "default-src 'none'"},
		{path: "/swagger", want: "default-src 'none'"},
		{path: "/swagger/index.html", want: "default-src 'self'; script-src 'self' 'unsafe-inline'"},
		{path: "/swagger/doc.json", want: "default-src 'self'; script-src 'self' 'unsafe-inline'"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Security-Policy"), tt.want),
				"got %q", rec.Header().Get("Content-Security-Policy"))
			assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		})
	}
}
