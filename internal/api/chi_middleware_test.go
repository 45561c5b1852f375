// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	m := NewChiMiddleware(nil)
	if m.config == nil {
		t.Fatal("config is nil")
	}
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.RateLimitRequests != 60 || m.config.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %d/%v, want 60/1m", m.config.RateLimitRequests, m.config.RateLimitWindow)
	}
}

func TestChiMiddlewareConfigFrom(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.ServerConfig
		wantDisabled bool
		wantWindow   time.Duration
	}{
		{
			name:       "configured limits",
			cfg:        config.ServerConfig{CORSOrigins: []string{"https://dash.example"}, RateLimitReqs: 10, RateLimitWindow: 30 * time.Second},
			wantWindow: 30 * time.Second,
		},
		{
			name:         "zero requests disables limiting",
			cfg:          config.ServerConfig{RateLimitReqs: 0},
			wantDisabled: true,
			wantWindow:   time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ChiMiddlewareConfigFrom(tt.cfg)
			if c.RateLimitDisabled != tt.wantDisabled {
				t.Errorf("RateLimitDisabled = %v, want %v", c.RateLimitDisabled, tt.wantDisabled)
			}
			if c.RateLimitWindow != tt.wantWindow {
				t.Errorf("RateLimitWindow = %v, want %v", c.RateLimitWindow, tt.wantWindow)
			}
			if len(c.CORSAllowedOrigins) != len(tt.cfg.CORSOrigins) {
				t.Errorf("CORSAllowedOrigins = %v", c.CORSAllowedOrigins)
			}
		})
	}
}

func TestChiMiddleware_CORS(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://allowed.example"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type"},
		CORSMaxAge:         3600,
	})
	handler := m.CORS()(okHandler())

	tests := []struct {
		name       string
		origin     string
		wantHeader string
	}{
		{"allowed origin is reflected", "https://allowed.example", "https://allowed.example"},
		{"other origin gets no header", "https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestChiMiddleware_CORS_Preflight(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
	})
	called := false
	handler := m.CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("handler should not run for a preflight request")
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("Access-Control-Allow-Methods should be set")
	}
}

func TestChiMiddleware_RateLimit(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	handler := m.RateLimit()(okHandler())

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes[i] = rec.Code

		if i == 2 {
			var body APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("429 body is not JSON: %v", err)
			}
			if body.Error == nil || body.Error.Code != CodeRateLimited {
				t.Errorf("error = %+v, want %s", body.Error, CodeRateLimited)
			}
		}
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestChiMiddleware_RateLimitDisabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute, RateLimitDisabled: true})
	handler := m.RateLimitEnqueue()(okHandler())

	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
}

func TestRequestIDWithLogging(t *testing.T) {
	var gotRequestID, gotCorrelationID string
	handler := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = logging.RequestIDFromContext(r.Context())
		gotCorrelationID = logging.CorrelationIDFromContext(r.Context())
	}))

	t.Run("generates ids", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if gotRequestID == "" || gotCorrelationID == "" {
			t.Fatalf("request id = %q, correlation id = %q", gotRequestID, gotCorrelationID)
		}
		if rec.Header().Get("X-Request-Id") != gotRequestID {
			t.Errorf("X-Request-Id = %q, want %q", rec.Header().Get("X-Request-Id"), gotRequestID)
		}
		if rec.Header().Get(HeaderCorrelationID) != gotCorrelationID {
			t.Errorf("%s = %q, want %q", HeaderCorrelationID, rec.Header().Get(HeaderCorrelationID), gotCorrelationID)
		}
	})

	t.Run("keeps caller ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", "req-abc")
		req.Header.Set(HeaderCorrelationID, "corr-123")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if gotRequestID != "req-abc" {
			t.Errorf("request id = %q, want req-abc", gotRequestID)
		}
		if gotCorrelationID != "corr-123" {
			t.Errorf("correlation id = %q, want corr-123", gotCorrelationID)
		}
	})
}

func TestAPISecurityHeaders(t *testing.T) {
	handler := APISecurityHeaders()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be set for plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS should be set behind a TLS proxy")
	}
}
