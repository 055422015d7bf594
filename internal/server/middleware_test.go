package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	srv := newTestServer(t)

	called := false
	handler := srv.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.True(t, called)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	srv := newTestServer(t)

	called := false
	handler := srv.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/detect", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.False(t, called, "preflight should not reach the handler")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	srv := newTestServer(t)
	require.Nil(t, srv.rateLimiter)

	called := 0
	handler := srv.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called++
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/detect", nil)
		handler(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 5, called)
}

func TestRateLimitMiddlewareEnforces(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.RateLimitEnabled = true
	cfg.Server.RequestsPerMinute = 1
	srv, err := NewServer(&cfg)
	require.NoError(t, err)

	handler := srv.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/detect", nil)
	req.RemoteAddr = "10.0.0.1:5001"
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "minute", rec.Header().Get("X-RateLimit-Type"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.168.1.10:45678",
			want:       "192.168.1.10",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for chain",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.3"},
			want:       "198.51.100.3",
		},
		{
			name:       "malformed remote addr",
			remoteAddr: "not-an-addr",
			want:       "not-an-addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
