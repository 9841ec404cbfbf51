package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"diet-cookbook/pkg/config"
)

// IPExtractor extracts the client IP that rate limits are keyed by.
type IPExtractor interface {
	ExtractIP(r *http.Request) (string, error)
}

// RemoteAddrExtractor uses the TCP peer address. It cannot be spoofed and is the
// right choice when the service is reached without a reverse proxy.
type RemoteAddrExtractor struct{}

// ExtractIP implements IPExtractor.
func (RemoteAddrExtractor) ExtractIP(r *http.Request) (string, error) {
	return extractIPFromAddr(r.RemoteAddr)
}

// TrustedProxyConfig lists the reverse proxies whose forwarding headers are believed.
type TrustedProxyConfig struct {
	Enabled      bool
	AllowedCIDRs []netip.Prefix
}

// IsTrusted reports whether remoteAddr belongs to a trusted proxy.
func (c TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	ip, err := extractIPFromAddr(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range c.AllowedCIDRs {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// LoadTrustedProxyConfig reads RATELIMIT_TRUST_PROXY and RATELIMIT_TRUSTED_PROXIES
// (comma-separated IPs or CIDRs). Enabling trust without any valid proxy is an error.
func LoadTrustedProxyConfig() (TrustedProxyConfig, error) {
	cfg := TrustedProxyConfig{Enabled: config.GetEnvBool("RATELIMIT_TRUST_PROXY", false)}
	if !cfg.Enabled {
		return cfg, nil
	}

	raw := strings.TrimSpace(config.GetEnvString("RATELIMIT_TRUSTED_PROXIES", ""))
	if raw == "" {
		return TrustedProxyConfig{}, fmt.Errorf("RATELIMIT_TRUST_PROXY is enabled but RATELIMIT_TRUSTED_PROXIES is empty")
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, err := parsePrefix(entry)
		if err != nil {
			return TrustedProxyConfig{}, err
		}
		cfg.AllowedCIDRs = append(cfg.AllowedCIDRs, prefix)
	}
	if len(cfg.AllowedCIDRs) == 0 {
		return TrustedProxyConfig{}, fmt.Errorf("RATELIMIT_TRUST_PROXY is enabled but no valid proxies found in RATELIMIT_TRUSTED_PROXIES")
	}
	return cfg, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if prefix, err := netip.ParsePrefix(s); err == nil {
		return prefix, nil
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid IP or CIDR %q", s)
	}
	return netip.PrefixFrom(ip, ip.BitLen()), nil
}

// TrustedProxyExtractor believes X-Forwarded-For (first hop) and X-Real-IP only
// when the peer is a trusted proxy, and falls back to RemoteAddr otherwise.
type TrustedProxyExtractor struct {
	config TrustedProxyConfig
}

// NewTrustedProxyExtractor creates a TrustedProxyExtractor.
func NewTrustedProxyExtractor(cfg TrustedProxyConfig) *TrustedProxyExtractor {
	return &TrustedProxyExtractor{config: cfg}
}

// ExtractIP implements IPExtractor.
func (e *TrustedProxyExtractor) ExtractIP(r *http.Request) (string, error) {
	if !e.config.Enabled {
		return extractIPFromAddr(r.RemoteAddr)
	}

	xff := r.Header.Get("X-Forwarded-For")
	xri := r.Header.Get("X-Real-IP")
	if !e.config.IsTrusted(r.RemoteAddr) {
		if xff != "" || xri != "" {
			slog.Warn("ignoring forwarding headers from untrusted peer",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("x_forwarded_for", xff),
				slog.String("x_real_ip", xri))
		}
		return extractIPFromAddr(r.RemoteAddr)
	}

	if ip := firstIP(xff); ip != "" {
		return ip, nil
	}
	if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
		return ip.String(), nil
	}
	return extractIPFromAddr(r.RemoteAddr)
}

// NewIPExtractor picks the extractor matching cfg.
func NewIPExtractor(cfg TrustedProxyConfig) IPExtractor {
	if cfg.Enabled {
		return NewTrustedProxyExtractor(cfg)
	}
	return RemoteAddrExtractor{}
}

// ClientIP extracts the caller's IP with e, falling back to RemoteAddr.
func ClientIP(e IPExtractor, r *http.Request) string {
	ip, err := e.ExtractIP(r)
	if err == nil {
		return ip
	}
	slog.Warn("client IP extraction failed, using remote address",
		slog.String("remote_addr", r.RemoteAddr),
		slog.Any("error", err))
	return r.RemoteAddr
}

func extractIPFromAddr(addr string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return host, nil
	}
	if ip := net.ParseIP(strings.Trim(addr, "[]")); ip != nil {
		return ip.String(), nil
	}
	return "", fmt.Errorf("invalid address format: %q", addr)
}

func firstIP(list string) string {
	first, _, _ := strings.Cut(list, ",")
	if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
		return ip.String()
	}
	return ""
}
