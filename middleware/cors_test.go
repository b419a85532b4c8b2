package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	if len(cfg.AllowOrigins) != 1 || cfg.AllowOrigins[0] != "*" {
		t.Errorf("expected AllowOrigins to be [*], got %v", cfg.AllowOrigins)
	}
	if len(cfg.AllowMethods) != 6 {
		t.Errorf("expected every endpoint verb plus OPTIONS, got %v", cfg.AllowMethods)
	}
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		cfg        *CORSConfig
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantHeader map[string]string
	}{
		{
			name:       "nil config allows all",
			method:     http.MethodGet,
			origin:     "http://example.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": "*"},
		},
		{
			name:       "preflight",
			method:     http.MethodOptions,
			origin:     "http://example.com",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Methods": "GET, POST, PUT, PATCH, DELETE, OPTIONS",
				"Access-Control-Allow-Headers": "Content-Type, Authorization, Accept-Language, X-Request-Id",
			},
		},
		{
			name:       "plain OPTIONS is not a preflight",
			method:     http.MethodOptions,
			origin:     "http://example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "specific origin matched",
			cfg:        &CORSConfig{AllowOrigins: []string{"http://allowed.com"}},
			method:     http.MethodPost,
			origin:     "http://allowed.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": "http://allowed.com", "Vary": "Origin"},
		},
		{
			name:       "specific origin rejected",
			cfg:        &CORSConfig{AllowOrigins: []string{"http://allowed.com"}},
			method:     http.MethodPost,
			origin:     "http://evil.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name:       "wildcard with credentials echoes origin",
			cfg:        &CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true},
			method:     http.MethodGet,
			origin:     "http://example.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":      "http://example.com",
				"Access-Control-Allow-Credentials": "true",
			},
		},
		{
			name:       "max age and exposed headers",
			cfg:        &CORSConfig{MaxAge: 600, ExposeHeaders: []string{"X-Request-Id"}},
			method:     http.MethodOptions,
			origin:     "http://example.com",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Max-Age":        "600",
				"Access-Control-Expose-Headers": "X-Request-Id",
			},
		},
		{
			name:       "empty lists fall back to defaults",
			cfg:        &CORSConfig{AllowMethods: []string{}, AllowHeaders: []string{}},
			method:     http.MethodOptions,
			origin:     "http://example.com",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Headers": "Content-Type, Authorization, Accept-Language, X-Request-Id",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/Controller/apis", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()

			CORS(tt.cfg)(ok).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			for k, v := range tt.wantHeader {
				if got := w.Header().Get(k); got != v {
					t.Errorf("expected %s=%q, got %q", k, v, got)
				}
			}
		})
	}
}
