package routing

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pelyams/cached_product_service/internal/metrics"
)

type RouterDeps struct {
	Log            *zap.Logger
	Service        string
	Registry       *prometheus.Registry
	MetricsEnabled bool
	RequestTimeout time.Duration
}

type Router struct {
	handler *ProductHandler
	deps    RouterDeps
}

func NewRouter(handler *ProductHandler, deps RouterDeps) *Router {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Router{
		handler: handler,
		deps:    deps,
	}
}

func (router *Router) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimw.Recoverer)
	r.Use(LoggerMiddleware(router.deps.Log))
	if router.deps.Registry != nil {
		m := metrics.NewHTTPMetrics(router.deps.Registry)
		r.Use(m.Middleware(router.deps.Service, routeLabel))
		if router.deps.MetricsEnabled {
			r.Handle("/metrics", promhttp.HandlerFor(router.deps.Registry, promhttp.HandlerOpts{}))
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", router.handler.Ready)

	r.Group(func(r chi.Router) {
		if router.deps.RequestTimeout > 0 {
			r.Use(chimw.Timeout(router.deps.RequestTimeout))
		}

		r.Get("/products", router.handler.GetProducts)
		r.Delete("/products", router.handler.DeleteAll)

		r.Post("/product", router.handler.CreateProduct)

		r.Get("/product/{id}", router.handler.GetProductById)
		r.Put("/product/{id}", router.handler.UpdateProduct)
		r.Delete("/product/{id}", router.handler.DeleteProduct)
	})

	return r
}

const unmatchedRoute = "unmatched"

// routeLabel keeps metric cardinality bounded by the route table: requests
// that match no route share one label.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if rp := rctx.RoutePattern(); rp != "" {
			return rp
		}
	}
	return unmatchedRoute
}
