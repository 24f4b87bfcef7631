package services

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fake_api_server/internal/domain/registry"
	model "fake_api_server/internal/domain/model/mock_rule"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/internal/infra/repo"
	"fake_api_server/internal/infra/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// captureRecorder 同步收集日志，测试用
type captureRecorder struct {
	mu      sync.Mutex
	entries []*model.RequestLog
}

func (c *captureRecorder) Record(entry *model.RequestLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureRecorder) all() []*model.RequestLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*model.RequestLog(nil), c.entries...)
}

type testEnv struct {
	cfg      *configs.AppConfig
	mem      *storage.MemoryStorage
	repo     repo.RuleRepositoryIface
	routes   *registry.RouteRegistry
	service  *RuleManageService
	recorder *captureRecorder
	metrics  *Metrics
}

func testAppConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Server: configs.ServerConfig{AdminPrefix: "/_admin"},
		RuleRepoConfig: configs.RuleRepoConfig{
			RedisCacheRetryCount: 1,
			RedisCacheRetryDelay: time.Millisecond,
			SaveRuleDBRetryCount: 1,
			SaveRuleDBRetryDelay: time.Millisecond,
			CacheUpdatePoolSize:  2,
		},
		RequestLogConfig: configs.RequestLogConfig{PoolSize: 4, MaxBodyBytes: 1024},
		LivenessConfig: configs.LivenessConfig{
			Interval:    time.Hour,
			Timeout:     2 * time.Second,
			Concurrency: 4,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testAppConfig()
	mem := storage.NewMemoryStorage()
	ruleRepo, cleanup, err := repo.NewRuleRepoImpl(mem, storage.NopRuleCache{}, &cfg.RuleRepoConfig)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	metrics := NewMetrics(prometheus.NewRegistry())
	recorder := &captureRecorder{}
	factory := NewMockHandlerFactory(NewResponseSynthesizer(NewSequenceStore()), recorder, metrics)
	routes := registry.NewRouteRegistry(factory, nil)

	return &testEnv{
		cfg:      cfg,
		mem:      mem,
		repo:     ruleRepo,
		routes:   routes,
		service:  NewRuleManageService(cfg, ruleRepo, routes),
		recorder: recorder,
		metrics:  metrics,
	}
}

func (e *testEnv) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.routes.ServeHTTP(w, r)
	return w
}

func staticRule(path, method, body string) *model.Rule {
	return &model.Rule{
		Path:         path,
		Method:       method,
		StatusCode:   200,
		ContentType:  "application/json",
		ResponseBody: body,
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
