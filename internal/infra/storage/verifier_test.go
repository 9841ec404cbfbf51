package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diet-cookbook/internal/resilience"
	"diet-cookbook/internal/resilience/retry"
)

var (
	pngHeader  = append([]byte("\x89PNG\x0D\x0A\x1A\x0A"), bytes.Repeat([]byte{0}, 64)...)
	jpegHeader = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 64)...)
	webpHeader = append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), bytes.Repeat([]byte{0}, 64)...)
	gifHeader  = append([]byte("GIF89a"), bytes.Repeat([]byte{0}, 64)...)
)

type object struct {
	size int64
	head []byte
}

type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (r *recorder) all() []*http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*http.Request(nil), r.requests...)
}

func newServer(t *testing.T, objects map[string]object, status int) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.requests = append(rec.requests, r.Clone(context.Background()))
		rec.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		obj, ok := objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.FormatInt(obj.size, 10))
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(obj.head)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func newVerifier(server *httptest.Server) *HTTPVerifier {
	return NewHTTPVerifier(Config{Endpoint: server.URL + "/", Bucket: "uploads", AccessToken: "secret"}, server.Client())
}

func TestHTTPVerifier_AcceptedTypes(t *testing.T) {
	tests := []struct {
		name     string
		head     []byte
		wantType string
	}{
		{name: "png", head: pngHeader, wantType: "image/png"},
		{name: "jpeg", head: jpegHeader, wantType: "image/jpeg"},
		{name: "webp", head: webpHeader, wantType: "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rec := newServer(t, map[string]object{
				"/uploads/user-1/photo": {size: 1024, head: tt.head},
			}, 0)

			info, err := newVerifier(server).Verify(context.Background(), "user-1/photo")
			requests := rec.all()

			require.NoError(t, err)
			assert.Equal(t, tt.wantType, info.ContentType)
			assert.Equal(t, int64(1024), info.Size)
			assert.Equal(t, "user-1/photo", info.Key)

			require.Len(t, requests, 2)
			assert.Equal(t, http.MethodHead, requests[0].Method)
			assert.Equal(t, http.MethodGet, requests[1].Method)
			assert.Equal(t, "bytes=0-2047", requests[1].Header.Get("Range"))
			assert.Equal(t, "Bearer secret", requests[1].Header.Get("Authorization"))
		})
	}
}

func TestHTTPVerifier_PermanentFailures(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		objects map[string]object
		wantErr error
	}{
		{
			name:    "missing object",
			key:     "nope",
			objects: map[string]object{},
			wantErr: ErrNotFound,
		},
		{
			name:    "too large",
			key:     "big",
			objects: map[string]object{"/uploads/big": {size: DefaultMaxBytes + 1, head: pngHeader}},
			wantErr: ErrTooLarge,
		},
		{
			name:    "gif rejected",
			key:     "anim",
			objects: map[string]object{"/uploads/anim": {size: 10, head: gifHeader}},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "text rejected",
			key:     "notes",
			objects: map[string]object{"/uploads/notes": {size: 10, head: []byte("hello world")}},
			wantErr: ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newServer(t, tt.objects, 0)

			_, err := newVerifier(server).Verify(context.Background(), tt.key)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, resilience.IsPermanent(err), "validation failures must not be retried")
		})
	}
}

func TestHTTPVerifier_ExactMaxSizeAccepted(t *testing.T) {
	server, _ := newServer(t, map[string]object{"/uploads/k": {size: DefaultMaxBytes, head: pngHeader}}, 0)

	_, err := newVerifier(server).Verify(context.Background(), "k")

	assert.NoError(t, err)
}

func TestHTTPVerifier_ServerErrorIsTransient(t *testing.T) {
	server, _ := newServer(t, nil, http.StatusServiceUnavailable)

	_, err := newVerifier(server).Verify(context.Background(), "k")

	var httpErr *retry.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.False(t, resilience.IsPermanent(err))
	assert.True(t, retry.IsRetryable(err))
}

func TestHTTPVerifier_ClientErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantPermanent bool
	}{
		{name: "forbidden", status: http.StatusForbidden, wantPermanent: true},
		{name: "bad request", status: http.StatusBadRequest, wantPermanent: true},
		{name: "throttled", status: http.StatusTooManyRequests, wantPermanent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rec := newServer(t, nil, tt.status)

			_, err := newVerifier(server).Verify(context.Background(), "k")

			var httpErr *retry.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.wantPermanent, resilience.IsPermanent(err))
			assert.Len(t, rec.all(), 1, "the verifier itself never retries")
		})
	}
}

func TestHTTPVerifier_TransportErrorIsTransient(t *testing.T) {
	server, _ := newServer(t, nil, 0)
	v := newVerifier(server)
	server.Close()

	_, err := v.Verify(context.Background(), "k")

	require.Error(t, err)
	assert.False(t, resilience.IsPermanent(err))
}

func TestHTTPVerifier_InvalidKey(t *testing.T) {
	server, rec := newServer(t, nil, 0)

	for _, key := range []string{"", "/", "../etc/passwd"} {
		_, err := newVerifier(server).Verify(context.Background(), key)
		assert.True(t, resilience.IsPermanent(err), "key %q", key)
	}
	assert.Empty(t, rec.all())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{Endpoint: "https://storage.example.com", Bucket: "b", MaxBytes: 1}},
		{name: "relative endpoint", cfg: Config{Endpoint: "storage", Bucket: "b", MaxBytes: 1}, wantErr: true},
		{name: "ftp endpoint", cfg: Config{Endpoint: "ftp://x", Bucket: "b", MaxBytes: 1}, wantErr: true},
		{name: "no bucket", cfg: Config{Endpoint: "https://x", MaxBytes: 1}, wantErr: true},
		{name: "zero size", cfg: Config{Endpoint: "https://x", Bucket: "b"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STORAGE_ENDPOINT", "https://storage.example.com")
	t.Setenv("STORAGE_BUCKET", "uploads")
	t.Setenv("STORAGE_MAX_BYTES", "")
	t.Setenv("STORAGE_ACCESS_TOKEN", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBytes, cfg.MaxBytes)
	assert.Equal(t, "uploads", cfg.Bucket)
}
