package http_mock_app

import (
	"fake_api_server/internal/domain/registry"
	"fake_api_server/internal/domain/services"
	"fake_api_server/internal/infra/repo"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// AppSet 组装整个进程
var AppSet = wire.NewSet(
	repo.Reposet,
	services.ServiceSet,
	NewPrometheusRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
	services.NewMetrics,
	NewRouteTable,
	wire.Bind(new(services.RouteTable), new(*registry.RouteRegistry)),
	wire.Bind(new(RouteLister), new(*registry.RouteRegistry)),
	NewOwnerResolver,
	NewRuleController,
	NewRouter,
	NewServer,
)
