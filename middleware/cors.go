package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	// AllowOrigins is a list of origins a cross-domain request can be executed from.
	// If the list contains "*", all origins are allowed.
	// Default: ["*"]
	AllowOrigins []string `toml:"allow_origins"`

	// AllowMethods is a list of methods the client is allowed to use.
	// Default: the endpoint verbs plus OPTIONS.
	AllowMethods []string `toml:"allow_methods"`

	// AllowHeaders is a list of headers the client is allowed to use.
	// Default: ["Content-Type", "Authorization", "Accept-Language", "X-Request-Id"]
	AllowHeaders []string `toml:"allow_headers"`

	// ExposeHeaders indicates which headers are safe to expose.
	ExposeHeaders []string `toml:"expose_headers"`

	// AllowCredentials indicates whether the request can include credentials.
	AllowCredentials bool `toml:"allow_credentials"`

	// MaxAge is how long, in seconds, a preflight result can be cached. 0 leaves it unset.
	MaxAge int `toml:"max_age"`
}

// DefaultCORSConfig returns a permissive configuration suitable for development.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "Accept-Language", "X-Request-Id"},
	}
}

// CORS returns an HTTP middleware that answers preflight requests and sets
// CORS headers on every response. A nil cfg means DefaultCORSConfig.
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	def := DefaultCORSConfig()
	if cfg == nil {
		cfg = def
	}
	origins := orDefault(cfg.AllowOrigins, def.AllowOrigins)
	wildcard := slices.Contains(origins, "*")
	methods := strings.Join(orDefault(cfg.AllowMethods, def.AllowMethods), ", ")
	headers := strings.Join(orDefault(cfg.AllowHeaders, def.AllowHeaders), ", ")
	exposed := strings.Join(cfg.ExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			if !wildcard {
				h.Add("Vary", "Origin")
			}

			switch {
			case origin == "":
				if wildcard {
					h.Set("Access-Control-Allow-Origin", "*")
				}
			case wildcard && !cfg.AllowCredentials:
				h.Set("Access-Control-Allow-Origin", "*")
			case wildcard || slices.Contains(origins, origin):
				// Credentials forbid "*", so the matched origin is echoed.
				h.Set("Access-Control-Allow-Origin", origin)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
