package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/broady/apireg"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and endpoint collectors of one router.
// Each Metrics has its own registry, so several routers can coexist in a process.
type Metrics struct {
	registry     *prometheus.Registry
	skip         map[string]struct{}
	responseTime *prometheus.HistogramVec
	requests     *prometheus.CounterVec
	calls        *prometheus.CounterVec
}

// NewMetrics creates the collectors. Requests to skipPaths are not counted.
func NewMetrics(skipPaths ...string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		skip:     make(map[string]struct{}, len(skipPaths)),
		responseTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apireg_http_response_seconds",
				Help:    "http response time.",
				Buckets: []float64{0.005, 0.05, 0.5, 1, 5, 10, 30},
			},
			[]string{"route"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "apireg_http_requests_total", Help: "http requests by code, route and method"},
			[]string{"code", "route", "method"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "apireg_endpoint_calls_total", Help: "endpoint invocations by outcome"},
			[]string{"endpoint", "outcome"},
		),
	}
	for _, p := range skipPaths {
		m.skip[p] = struct{}{}
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.responseTime,
		m.requests,
		m.calls,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Collect records status, route and latency of every request.
// The route label is chi's route pattern, so unmatched paths share one label.
func (m *Metrics) Collect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.skip[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requests.WithLabelValues(strconv.Itoa(status), route, r.Method).Inc()
			m.responseTime.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

// Interceptor counts endpoint invocations that reached the method.
func (m *Metrics) Interceptor() apireg.Interceptor {
	return func(ctx *apireg.Context, args []any, next apireg.Invoker) (any, error) {
		res, err := next(ctx, args)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		info := ctx.Info()
		m.calls.WithLabelValues(info.Class+"."+info.Method, outcome).Inc()
		return res, err
	}
}
