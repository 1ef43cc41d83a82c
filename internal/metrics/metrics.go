package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelService = "service"
	labelMethod  = "method"
	labelRoute   = "route"
	labelStatus  = "status"
	labelOp      = "op"
	labelResult  = "result"

	resultHit     = "hit"
	resultMiss    = "miss"
	resultFailure = "failure"
)

// HTTPMetrics tracks request counts and latency per route, plus the number of
// requests currently being served.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{labelService, labelMethod, labelRoute, labelStatus}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{labelService, labelMethod, labelRoute}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
	reg.MustRegister(m.Requests, m.Latency, m.InFlight)
	return m
}

// Middleware records every request under the label returned by route, which
// is evaluated after the handler ran so routers can report the matched pattern.
func (m *HTTPMetrics) Middleware(service string, route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.InFlight.Inc()
			defer m.InFlight.Dec()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			label := route(r)
			m.Latency.WithLabelValues(service, r.Method, label).Observe(time.Since(start).Seconds())
			m.Requests.WithLabelValues(service, r.Method, label, strconv.Itoa(status)).Inc()
		})
	}
}

// CacheMetrics counts cache outcomes by service operation. It satisfies
// service.CacheRecorder.
type CacheMetrics struct {
	Operations *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_cache_operations_total",
				Help: "Product cache outcomes by operation",
			},
			[]string{labelOp, labelResult},
		),
	}
	reg.MustRegister(m.Operations)
	return m
}

func (m *CacheMetrics) CacheHit(op string) {
	m.Operations.WithLabelValues(op, resultHit).Inc()
}

func (m *CacheMetrics) CacheMiss(op string) {
	m.Operations.WithLabelValues(op, resultMiss).Inc()
}

func (m *CacheMetrics) CacheFailure(op string) {
	m.Operations.WithLabelValues(op, resultFailure).Inc()
}
