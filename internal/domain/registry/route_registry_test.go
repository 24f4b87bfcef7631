package registry

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	model "fake_api_server/internal/domain/model/mock_rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoFactory 响应体为 ruleID@version，用于判断命中了哪个快照
var echoFactory = HandlerFactoryFunc(func(rule *model.Rule) (http.Handler, error) {
	body := fmt.Sprintf("%s@%d", rule.ID, rule.Version)
	status := rule.StatusCode
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rule-Body", body)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}), nil
})

func newRule(id, method, path string) *model.Rule {
	return &model.Rule{
		ID:          id,
		Owner:       "u1",
		Method:      method,
		Path:        path,
		StatusCode:  200,
		ContentType: "text/plain",
		Status:      model.RuleStatusActive,
		Version:     1,
	}
}

func serve(rr *RouteRegistry, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	rr.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestInstallValidation(t *testing.T) {
	rr := NewRouteRegistry(echoFactory, nil)

	inactive := newRule("r1", "GET", "/a")
	inactive.Status = model.RuleStatusDraft
	unsupported := newRule("r2", "TRACE", "/a")
	badPath := newRule("r3", "GET", "a")

	for _, rule := range []*model.Rule{inactive, unsupported, badPath, nil} {
		err := rr.Install(rule)
		var re *model.RegistryError
		assert.True(t, errors.As(err, &re), "expected RegistryError, got %v", err)
	}
	assert.Equal(t, 0, rr.Len())

	failing := NewRouteRegistry(HandlerFactoryFunc(func(*model.Rule) (http.Handler, error) {
		return nil, errors.New("boom")
	}), nil)
	assert.Error(t, failing.Install(newRule("r4", "GET", "/a")))
	assert.Equal(t, 0, failing.Len())
}

func TestResolve(t *testing.T) {
	rr := NewRouteRegistry(echoFactory, nil)
	for _, r := range []*model.Rule{
		newRule("get-admin", "GET", "/test/admin"),
		newRule("all-admin", "ALL", "/test/admin"),
		newRule("get-user", "GET", "/users/:id"),
		newRule("get-me", "GET", "/users/me"),
		newRule("get-order", "GET", "/users/{uid}/orders/{oid}"),
		newRule("post-any", "ALL", "/users/:id/orders/latest"),
		newRule("root", "GET", "/"),
	} {
		require.NoError(t, rr.Install(r))
	}

	tests := []struct {
		name   string
		method string
		path   string
		ruleID string
		params map[string]string
	}{
		{name: "literal exact method", method: "GET", path: "/test/admin", ruleID: "get-admin"},
		{name: "literal falls back to ALL", method: "POST", path: "/test/admin", ruleID: "all-admin"},
		{name: "trailing slash", method: "GET", path: "/test/admin/", ruleID: "get-admin"},
		{name: "HEAD falls back to GET", method: "HEAD", path: "/users/me", ruleID: "get-me"},
		{name: "static beats param", method: "GET", path: "/users/me", ruleID: "get-me"},
		{name: "colon param", method: "GET", path: "/users/42", ruleID: "get-user", params: map[string]string{"id": "42"}},
		{
			name: "brace params", method: "GET", path: "/users/7/orders/9", ruleID: "get-order",
			params: map[string]string{"uid": "7", "oid": "9"},
		},
		{
			name: "static segment under param", method: "GET", path: "/users/7/orders/latest", ruleID: "post-any",
			params: map[string]string{"id": "7"},
		},
		{name: "root", method: "GET", path: "/", ruleID: "root"},
		{name: "method mismatch", method: "DELETE", path: "/users/42"},
		{name: "unknown path", method: "GET", path: "/nope"},
		{name: "too deep", method: "GET", path: "/users/1/2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, params, ok := rr.Resolve(tt.method, tt.path)
			if tt.ruleID == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.ruleID, route.RuleID)
			if tt.params == nil {
				assert.Empty(t, params)
			} else {
				assert.Equal(t, tt.params, params)
			}
		})
	}
}

func TestServeHTTP(t *testing.T) {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	var seen map[string]string
	factory := HandlerFactoryFunc(func(rule *model.Rule) (http.Handler, error) {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = model.PathParamsFromContext(r.Context())
			w.WriteHeader(rule.StatusCode)
		}), nil
	})
	rr := NewRouteRegistry(factory, notFound)
	require.NoError(t, rr.Install(newRule("r1", "GET", "/items/:sku")))

	w := serve(rr, "GET", "/items/abc")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"sku": "abc"}, seen)

	assert.Equal(t, http.StatusTeapot, serve(rr, "GET", "/other").Code)
}

func TestReplaceAndRemove(t *testing.T) {
	rr := NewRouteRegistry(echoFactory, nil)
	v1 := newRule("r1", "GET", "/a")
	require.NoError(t, rr.Install(v1))
	assert.Equal(t, "r1@1", serve(rr, "GET", "/a").Body.String())

	v2 := v1.Clone()
	v2.Version = 2
	require.NoError(t, rr.Install(v2))
	assert.Equal(t, "r1@2", serve(rr, "GET", "/a").Body.String())

	// stale install of an older version is ignored
	require.NoError(t, rr.Install(v1))
	assert.Equal(t, "r1@2", serve(rr, "GET", "/a").Body.String())

	// another rule on the same key takes over, and r1 can no longer remove it
	other := newRule("r2", "GET", "/a")
	require.NoError(t, rr.Install(other))
	assert.False(t, rr.RemoveRule("r1", "GET", "/a"))
	assert.Equal(t, "r2@1", serve(rr, "GET", "/a").Body.String())

	assert.True(t, rr.RemoveRule("r2", "GET", "/a"))
	assert.Equal(t, http.StatusNotFound, serve(rr, "GET", "/a").Code)
	assert.False(t, rr.Remove("GET", "/a"))

	require.NoError(t, rr.Install(newRule("r3", "PUT", "/p/{id}")))
	assert.True(t, rr.Remove("put", "/p/{id}"))
	_, _, ok := rr.Resolve("PUT", "/p/1")
	assert.False(t, ok)
}

func TestParamSlotSharedByDifferentNames(t *testing.T) {
	rr := NewRouteRegistry(echoFactory, nil)
	require.NoError(t, rr.Install(newRule("a", "GET", "/users/:id")))
	require.NoError(t, rr.Install(newRule("b", "GET", "/users/{uid}")))

	// b 顶替了 a 的槽位，a 不再出现在路由表中
	assert.Equal(t, "b@1", serve(rr, "GET", "/users/7").Body.String())
	require.Len(t, rr.Routes(), 1)
	assert.Equal(t, "GET:/users/{uid}", rr.Routes()[0].Key())
	assert.False(t, rr.RemoveRule("a", "GET", "/users/:id"))
	assert.Equal(t, "b@1", serve(rr, "GET", "/users/7").Body.String())

	// a 重新安装后，b 的删除不能解绑 a
	require.NoError(t, rr.Install(newRule("a", "GET", "/users/:id")))
	assert.Equal(t, 1, rr.Len())
	assert.False(t, rr.RemoveRule("b", "GET", "/users/{uid}"))
	w := serve(rr, "GET", "/users/7")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@1", w.Body.String())

	assert.True(t, rr.RemoveRule("a", "GET", "/users/:id"))
	assert.Equal(t, 0, rr.Len())
	assert.Equal(t, http.StatusNotFound, serve(rr, "GET", "/users/7").Code)
}

func TestInstallBatch(t *testing.T) {
	rr := NewRouteRegistry(echoFactory, nil)
	rules := []*model.Rule{
		newRule("r1", "GET", "/a"),
		newRule("r2", "TRACE", "/b"),
		newRule("r3", "POST", "/c/:id"),
	}
	installed, errs := rr.InstallBatch(rules)
	assert.Equal(t, 2, installed)
	require.Len(t, errs, 1)

	routes := rr.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "GET:/a", routes[0].Key())
	assert.Equal(t, "POST:/c/:id", routes[1].Key())

	rr.Clear()
	assert.Equal(t, 0, rr.Len())
	assert.Empty(t, rr.Routes())
}

func TestInstallCopiesRule(t *testing.T) {
	var captured *model.Rule
	rr := NewRouteRegistry(HandlerFactoryFunc(func(rule *model.Rule) (http.Handler, error) {
		captured = rule
		return http.NotFoundHandler(), nil
	}), nil)

	rule := newRule("r1", "get", "/a/")
	require.NoError(t, rr.Install(rule))
	rule.ResponseBody = "mutated"

	assert.NotSame(t, rule, captured)
	assert.Empty(t, captured.ResponseBody)
	assert.Equal(t, "GET", captured.Method)
	assert.Equal(t, "/a", captured.Path)
}

func TestAtomicReplaceUnderLoad(t *testing.T) {
	rr := NewRouteRegistry(echoFactory, nil)
	require.NoError(t, rr.Install(newRule("r1", "GET", "/hot")))

	const requests = 100
	var wg sync.WaitGroup
	results := make(chan *httptest.ResponseRecorder, requests)

	start := make(chan struct{})
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- serve(rr, "GET", "/hot")
		}()
	}

	close(start)
	for v := 2; v <= 20; v++ {
		next := newRule("r1", "GET", "/hot")
		next.Version = v
		next.StatusCode = 200 + v
		require.NoError(t, rr.Install(next))
	}
	wg.Wait()
	close(results)

	for w := range results {
		body := w.Body.String()
		assert.Equal(t, body, w.Header().Get("X-Rule-Body"), "header and body come from one snapshot")
		var version int
		_, err := fmt.Sscanf(body, "r1@%d", &version)
		require.NoError(t, err)
		if version == 1 {
			assert.Equal(t, 200, w.Code)
		} else {
			assert.Equal(t, 200+version, w.Code)
		}
	}
}
