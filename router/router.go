// Package router serves the endpoints of apireg controllers over HTTP.
//
// Every endpoint is mounted at its path for its verb. The router also serves
// the client bundle describing all mounted endpoints and, when enabled,
// Prometheus metrics.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/broady/apireg"
	"github.com/broady/apireg/config"
	"github.com/broady/apireg/internal/logging"
	"github.com/broady/apireg/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Route is one mounted endpoint.
type Route struct {
	Verb     apireg.Verb
	Path     string
	Endpoint *apireg.Endpoint
}

// Router mounts controllers on a chi mux.
type Router struct {
	cfg     config.Config
	logger  *zap.Logger
	slog    *slog.Logger
	mux     chi.Router
	metrics *middleware.Metrics

	once     sync.Once
	mu       sync.RWMutex
	settings apireg.Settings
	regs     []*apireg.Registry
	routes   map[string]Route
}

// New builds a router from cfg. A nil logger discards logs.
func New(cfg config.Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		cfg:    cfg,
		logger: logger,
		slog:   logging.Slog(logger),
		mux:    chi.NewRouter(),
		routes: make(map[string]Route),
	}
	r.settings = apireg.Settings{
		Logger:             r.slog,
		MaskInternalErrors: cfg.Server.MaskInternalErrors,
		Language:           cfg.Server.LanguageTag(),
	}

	r.mux.Use(r.recoverer, middleware.RequestID)
	if cfg.Metrics.Enabled {
		r.metrics = middleware.NewMetrics(cfg.Metrics.Path)
		r.mux.Use(r.metrics.Collect)
		r.settings.Interceptors = append(r.settings.Interceptors, r.metrics.Interceptor())
	}
	if cfg.CORS.Enabled {
		r.mux.Use(middleware.CORS(&middleware.CORSConfig{
			AllowOrigins:     cfg.CORS.AllowOrigins,
			AllowMethods:     cfg.CORS.AllowMethods,
			AllowHeaders:     cfg.CORS.AllowHeaders,
			ExposeHeaders:    cfg.CORS.ExposeHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}))
	}

	return r
}

// setup registers the fixed routes. chi requires every middleware to be
// added before the first route, so it runs on the first Mount or request.
func (r *Router) setup() {
	r.once.Do(func() {
		if r.metrics != nil {
			r.mux.Method(http.MethodGet, r.cfg.Metrics.Path, r.metrics.Handler())
		}
		r.mux.Method(http.MethodGet, r.cfg.Client.Path, http.HandlerFunc(r.serveBundle))
		r.mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
			apireg.WriteError(w, apireg.NewError(apireg.CodeNotFound, "route not found"), r.slog)
		})
		r.mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
			apireg.WriteError(w, apireg.Errorf(apireg.CodeMethodNotAllowed, "method %s not allowed", req.Method), r.slog)
		})
	})
}

// WithAccessLog logs every request to l.
// Like WithMiddleware, it panics once the router has mounted or served anything.
func (r *Router) WithAccessLog(l *zap.Logger) *Router {
	r.mux.Use(middleware.AccessLog(l))
	return r
}

// WithMiddleware adds an HTTP middleware. It panics once the router has
// mounted or served anything.
func (r *Router) WithMiddleware(mw func(http.Handler) http.Handler) *Router {
	r.mux.Use(mw)
	return r
}

// WithInterceptor adds an interceptor around every endpoint method.
func (r *Router) WithInterceptor(i apireg.Interceptor) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.Interceptors = append(r.settings.Interceptors, i)
	return r
}

// WithErrorTransformer sets the mapping from method errors to responses.
func (r *Router) WithErrorTransformer(fn apireg.ErrorTransformer) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.ErrorTransformer = fn
	return r
}

// Mount serves every endpoint visible from each controller's class,
// inherited ones included. An endpoint reachable from several controllers
// is mounted once. Two different endpoints on one path are an error.
func (r *Router) Mount(controllers ...apireg.Controller) error {
	r.setup()
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range controllers {
		reg := c.Endpoints()
		for _, e := range reg.Endpoints() {
			if prev, ok := r.routes[e.Path()]; ok {
				if prev.Endpoint != e {
					return fmt.Errorf("router: %s is declared by two endpoints", e.Path())
				}
				continue
			}
			r.routes[e.Path()] = Route{Verb: e.Verb(), Path: e.Path(), Endpoint: e}
			r.mux.Method(string(e.Verb()), e.Path(), r.serve(e))
			r.logger.Debug("endpoint mounted",
				zap.String("verb", string(e.Verb())),
				zap.String("path", e.Path()),
				zap.Int("parameterCount", e.ParameterCount()),
			)
		}
		r.regs = append(r.regs, reg)
	}
	return nil
}

// Routes returns the mounted endpoints ordered by path.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Route, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Bundle returns the client scripts of every mounted endpoint.
func (r *Router) Bundle() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return apireg.ClientBundle(r.regs...)
}

// Handler returns the router as an http.Handler.
func (r *Router) Handler() http.Handler {
	r.setup()
	return r.mux
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.setup()
	r.mux.ServeHTTP(w, req)
}

func (r *Router) serve(e *apireg.Endpoint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if limit := r.cfg.Server.MaxBodyBytes; limit > 0 && req.Body != nil {
			req.Body = http.MaxBytesReader(w, req.Body, limit)
		}
		r.mu.RLock()
		settings := r.settings
		r.mu.RUnlock()
		req = req.WithContext(apireg.WithSettings(req.Context(), settings))

		err := e.Dispatch(w, req)
		if err == nil {
			return
		}
		r.logger.Warn("call rejected",
			zap.String("path", e.Path()),
			zap.String("requestId", req.Header.Get(middleware.RequestIDHeader)),
			zap.Error(err),
		)
		msg := err.Error()
		var tooLarge *http.MaxBytesError
		switch {
		case settings.MaskInternalErrors:
			msg = "internal server error"
		case errors.As(err, &tooLarge):
			msg = fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
		}
		apireg.WriteError(w, apireg.NewError(apireg.CodeInternal, msg), r.slog)
	})
}

func (r *Router) serveBundle(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(r.Bundle()))
}

func (r *Router) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				r.logger.Error("PANIC recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", req.URL.Path),
				)
				msg := fmt.Sprintf("internal server error (panic): %v", rec)
				if r.cfg.Server.MaskInternalErrors {
					msg = "internal server error"
				}
				apireg.WriteError(w, apireg.NewError(apireg.CodeInternal, msg), r.slog)
			}
		}()
		next.ServeHTTP(w, req)
	})
}
