// Package storage verifies objects that clients uploaded directly to blob storage.
package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"diet-cookbook/internal/resilience"
	"diet-cookbook/internal/resilience/retry"
	"diet-cookbook/pkg/config"
)

// sniffBytes is how much of an object is fetched to detect its type.
const sniffBytes = 2048

// DefaultMaxBytes is the largest accepted upload (8 MiB).
const DefaultMaxBytes int64 = 8 << 20

var (
	// ErrNotFound is returned when the object does not exist.
	ErrNotFound = errors.New("storage: object not found")

	// ErrTooLarge is returned when the object exceeds the size limit.
	ErrTooLarge = errors.New("storage: object too large")

	// ErrUnsupportedType is returned when the object's leading bytes are not an accepted image type.
	ErrUnsupportedType = errors.New("storage: unsupported content type")
)

// allowedTypes are the image types accepted from uploads.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ObjectInfo describes a verified object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Verifier checks that an uploaded object exists, fits the size limit and is an accepted image.
type Verifier interface {
	Verify(ctx context.Context, key string) (*ObjectInfo, error)
}

// Config holds configuration for the HTTP verifier.
type Config struct {
	// Endpoint is the storage base URL, e.g. https://s3.eu-central-1.amazonaws.com
	Endpoint string

	// Bucket is the bucket holding uploads.
	Bucket string

	// MaxBytes is the largest accepted object. Default: 8 MiB
	MaxBytes int64

	// AccessToken, if set, is sent as a bearer token.
	AccessToken string
}

// LoadConfig loads the storage configuration from environment variables.
//
// Environment variables:
//   - STORAGE_ENDPOINT (required)
//   - STORAGE_BUCKET (required)
//   - STORAGE_MAX_BYTES (default: 8388608)
//   - STORAGE_ACCESS_TOKEN (optional)
func LoadConfig() (Config, error) {
	cfg := Config{
		Endpoint:    config.GetEnvString("STORAGE_ENDPOINT", ""),
		Bucket:      config.GetEnvString("STORAGE_BUCKET", ""),
		MaxBytes:    int64(config.GetEnvInt("STORAGE_MAX_BYTES", int(DefaultMaxBytes))),
		AccessToken: config.GetEnvString("STORAGE_ACCESS_TOKEN", ""),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid storage configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute http(s) URL, got %q", c.Endpoint)
	}
	if c.Bucket == "" {
		return errors.New("bucket cannot be empty")
	}
	if c.MaxBytes <= 0 {
		return fmt.Errorf("max bytes must be positive, got %d", c.MaxBytes)
	}
	return nil
}

// HTTPVerifier verifies objects with a HEAD request followed by a ranged GET
// of the first 2 KiB, whose content type is sniffed from the bytes themselves.
//
// It performs one attempt per call. Missing, oversized and wrongly typed objects
// and other 4xx answers except 429 are permanent failures; transport errors, 429
// and 5xx responses are dependency failures.
type HTTPVerifier struct {
	client *http.Client
	config Config
}

// NewHTTPVerifier creates an HTTPVerifier. A nil client uses a TLS 1.2+ client
// without an overall timeout, since the caller bounds each call.
func NewHTTPVerifier(cfg Config, client *http.Client) *HTTPVerifier {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
		}
	}
	return &HTTPVerifier{client: client, config: cfg}
}

// Verify implements Verifier.
func (v *HTTPVerifier) Verify(ctx context.Context, key string) (*ObjectInfo, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return nil, resilience.Permanent(fmt.Errorf("storage: invalid object key %q", key))
	}
	objectURL := v.config.Endpoint + "/" + url.PathEscape(v.config.Bucket) + "/" + escapeKey(key)

	size, err := v.head(ctx, objectURL)
	if err != nil {
		return nil, err
	}
	if size > v.config.MaxBytes {
		return nil, resilience.Permanent(fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, v.config.MaxBytes))
	}

	head, err := v.readHead(ctx, objectURL)
	if err != nil {
		return nil, err
	}
	contentType := http.DetectContentType(head)
	if !allowedTypes[contentType] {
		return nil, resilience.Permanent(fmt.Errorf("%w: %s", ErrUnsupportedType, contentType))
	}

	slog.DebugContext(ctx, "upload verified",
		slog.String("key", key),
		slog.Int64("size", size),
		slog.String("content_type", contentType))

	return &ObjectInfo{Key: key, Size: size, ContentType: contentType}, nil
}

func (v *HTTPVerifier) head(ctx context.Context, objectURL string) (int64, error) {
	resp, err := v.do(ctx, http.MethodHead, objectURL, "")
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()

	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("storage: HEAD response without content length")
	}
	return resp.ContentLength, nil
}

func (v *HTTPVerifier) readHead(ctx context.Context, objectURL string) ([]byte, error) {
	resp, err := v.do(ctx, http.MethodGet, objectURL, fmt.Sprintf("bytes=0-%d", sniffBytes-1))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// A server ignoring Range answers 200 with the full body; read only the prefix.
	head, err := io.ReadAll(io.LimitReader(resp.Body, sniffBytes))
	if err != nil {
		return nil, fmt.Errorf("storage: read object head: %w", err)
	}
	return head, nil
}

func (v *HTTPVerifier) do(ctx context.Context, method, objectURL, byteRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, objectURL, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("storage: build request: %w", err))
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	if v.config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+v.config.AccessToken)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: %s request failed: %w", method, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, resilience.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusPartialContent:
		return resp, nil
	default:
		_ = resp.Body.Close()
		httpErr := &retry.HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("storage %s %s", method, resp.Status)}
		// Client errors other than throttling will not change on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(httpErr)
		}
		return nil, httpErr
	}
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
