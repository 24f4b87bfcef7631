package http_mock_app

import (
	"net/http"
	"runtime/debug"

	"fake_api_server/internal/domain/registry"
	"fake_api_server/internal/domain/services"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouteTable 动态路由表，未命中时返回 JSON 404
func NewRouteTable(factory *services.MockHandlerFactory) *registry.RouteRegistry {
	return registry.NewRouteRegistry(factory, http.HandlerFunc(notFound))
}

func NewPrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewRouter 管理接口、健康检查和指标在前，其余全部交给路由表
func NewRouter(c *configs.AppConfig, controller *RuleController, resolver OwnerResolver, routes *registry.RouteRegistry, metrics *services.Metrics, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(recoverer)
	r.Use(middleware.RequestSize(c.Server.MaxBodyBytes))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "routes": routes.Len()})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route(c.Server.AdminPrefix, func(r chi.Router) {
		r.Use(adminMetrics(metrics))
		r.Use(RequireOwner(resolver))
		r.NotFound(notFound)
		controller.Register(r)
	})

	r.Handle("/*", routes)
	return r
}

// recoverer 管理接口和 mock 处理器之外的兜底
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				utils.GetLogger().WithFields(logrus.Fields{
					"panic":  err,
					"stack":  string(debug.Stack()),
					"method": r.Method,
					"path":   r.URL.Path,
				}).Error("handle request panic")
				writeError(w, http.StatusInternalServerError, "Internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func adminMetrics(metrics *services.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.AdminRequests.WithLabelValues(r.Method, route).Inc()
		})
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found", nil)
}
