package registry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"
	"fake_api_server/utils"

	"github.com/sirupsen/logrus"
)

// HandlerFactory 为规则快照构建处理器
type HandlerFactory interface {
	NewHandler(rule *model.Rule) (http.Handler, error)
}

// HandlerFactoryFunc 函数适配器
type HandlerFactoryFunc func(rule *model.Rule) (http.Handler, error)

func (f HandlerFactoryFunc) NewHandler(rule *model.Rule) (http.Handler, error) {
	return f(rule)
}

// RegisteredRoute 路由表中的一条记录，安装后不可变
type RegisteredRoute struct {
	Method      string       `json:"method"`
	Path        string       `json:"path"`
	RuleID      string       `json:"ruleId"`
	Owner       string       `json:"owner"`
	Version     int          `json:"version"`
	InstalledAt time.Time    `json:"installedAt"`
	Handler     http.Handler `json:"-"`

	// 参数段在路径中的位置 => 参数名
	params map[int]string
}

func (r *RegisteredRoute) Key() string {
	return model.RouteKey(r.Method, r.Path)
}

// RouteRegistry 动态路由表
//
// 纯静态路径走 map，O(1)；带 :id / {id} 的路径走分段前缀树。
// 读请求持读锁，安装/删除持写锁，处理器在锁外执行。
type RouteRegistry struct {
	mu       sync.RWMutex
	literal  map[string]*RegisteredRoute
	dynamic  map[string]*RegisteredRoute
	root     *node
	factory  HandlerFactory
	notFound http.Handler
}

type node struct {
	static map[string]*node
	param  *node
	routes map[string]*RegisteredRoute // method => route
}

func newNode() *node {
	return &node{static: map[string]*node{}}
}

// NewRouteRegistry notFound 为空时使用 http.NotFoundHandler
func NewRouteRegistry(factory HandlerFactory, notFound http.Handler) *RouteRegistry {
	if notFound == nil {
		notFound = http.NotFoundHandler()
	}
	return &RouteRegistry{
		literal:  map[string]*RegisteredRoute{},
		dynamic:  map[string]*RegisteredRoute{},
		root:     newNode(),
		factory:  factory,
		notFound: notFound,
	}
}

// SetNotFound 替换未命中时的处理器，路由器创建后调用
func (rr *RouteRegistry) SetNotFound(h http.Handler) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if h != nil {
		rr.notFound = h
	}
}

// Install 安装或替换规则对应的路由
func (rr *RouteRegistry) Install(rule *model.Rule) error {
	if rule == nil {
		return &model.RegistryError{Reason: "rule is nil"}
	}
	if !rule.IsActive() {
		return &model.RegistryError{RuleID: rule.ID, Method: rule.Method, Path: rule.Path,
			Reason: fmt.Sprintf("status %s is not routable", rule.Status)}
	}
	method := strings.ToUpper(rule.Method)
	if !model.IsSupportedMethod(method) {
		return &model.RegistryError{RuleID: rule.ID, Method: rule.Method, Path: rule.Path,
			Reason: "unsupported HTTP method"}
	}
	if rule.Path == "" || !strings.HasPrefix(rule.Path, "/") {
		return &model.RegistryError{RuleID: rule.ID, Method: rule.Method, Path: rule.Path,
			Reason: "path must start with /"}
	}

	snapshot := rule.Clone()
	snapshot.Method = method
	snapshot.Path = model.NormalizeRoutePath(snapshot.Path)

	handler, err := rr.factory.NewHandler(snapshot)
	if err != nil {
		return &model.RegistryError{RuleID: rule.ID, Method: method, Path: snapshot.Path, Reason: err.Error()}
	}

	route := &RegisteredRoute{
		Method:      method,
		Path:        snapshot.Path,
		RuleID:      snapshot.ID,
		Owner:       snapshot.Owner,
		Version:     snapshot.Version,
		InstalledAt: time.Now().UTC(),
		Handler:     handler,
		params:      paramPositions(snapshot.Path),
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	key := route.Key()
	if current := rr.lookupLocked(key); current != nil &&
		current.RuleID == route.RuleID && current.Version > route.Version {
		// 旧版本的延迟安装
		utils.GetLogger().WithFields(logrus.Fields{
			"rule_id":   route.RuleID,
			"installed": current.Version,
			"stale":     route.Version,
		}).Debug("ignore stale route install")
		return nil
	}

	if len(route.params) == 0 {
		rr.literal[key] = route
		return nil
	}
	rr.dynamic[key] = route
	n := rr.root
	for _, seg := range model.SplitPath(route.Path) {
		if _, ok := model.ParamName(seg); ok {
			if n.param == nil {
				n.param = newNode()
			}
			n = n.param
			continue
		}
		child, ok := n.static[seg]
		if !ok {
			child = newNode()
			n.static[seg] = child
		}
		n = child
	}
	if n.routes == nil {
		n.routes = map[string]*RegisteredRoute{}
	}
	// /users/:id 与 /users/{uid} 共用同一个槽位，被顶替的路由同时移出 dynamic
	if evicted, ok := n.routes[method]; ok && evicted.Key() != key {
		delete(rr.dynamic, evicted.Key())
	}
	n.routes[method] = route
	return nil
}

// InstallBatch 批量安装，单条失败只记录告警
func (rr *RouteRegistry) InstallBatch(rules []*model.Rule) (int, []error) {
	installed := 0
	var errs []error
	for _, rule := range rules {
		if err := rr.Install(rule); err != nil {
			utils.GetLogger().WithError(err).Warn("skip rule while installing routes")
			errs = append(errs, err)
			continue
		}
		installed++
	}
	return installed, errs
}

// Remove 删除 (method, path) 上的路由
func (rr *RouteRegistry) Remove(method, path string) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.removeLocked(model.RouteKey(method, model.NormalizeRoutePath(path)), "")
}

// RemoveRule 仅当路由仍属于 ruleID 时删除
func (rr *RouteRegistry) RemoveRule(ruleID, method, path string) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.removeLocked(model.RouteKey(method, model.NormalizeRoutePath(path)), ruleID)
}

func (rr *RouteRegistry) removeLocked(key, ruleID string) bool {
	if route, ok := rr.literal[key]; ok {
		if ruleID != "" && route.RuleID != ruleID {
			return false
		}
		delete(rr.literal, key)
		return true
	}

	route, ok := rr.dynamic[key]
	if !ok || (ruleID != "" && route.RuleID != ruleID) {
		return false
	}
	delete(rr.dynamic, key)

	n := rr.root
	for _, seg := range model.SplitPath(route.Path) {
		if _, isParam := model.ParamName(seg); isParam {
			n = n.param
		} else {
			n = n.static[seg]
		}
		if n == nil {
			return true
		}
	}
	if n.routes[route.Method] == route {
		delete(n.routes, route.Method)
	}
	// 空节点保留，下一次 Clear 时回收
	return true
}

func (rr *RouteRegistry) lookupLocked(key string) *RegisteredRoute {
	if route, ok := rr.literal[key]; ok {
		return route
	}
	return rr.dynamic[key]
}

// Lookup 按规范 key 精确查找，不做参数匹配
func (rr *RouteRegistry) Lookup(method, path string) (*RegisteredRoute, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	route := rr.lookupLocked(model.RouteKey(method, model.NormalizeRoutePath(path)))
	return route, route != nil
}

// Resolve 解析请求对应的路由
//
// 优先级: 静态路径 > 参数路径；同一路径上精确方法 > ALL；HEAD 可回退到 GET。
func (rr *RouteRegistry) Resolve(method, path string) (*RegisteredRoute, map[string]string, bool) {
	method = strings.ToUpper(method)
	path = model.NormalizeRoutePath(path)
	if path == "" {
		path = "/"
	}

	rr.mu.RLock()
	defer rr.mu.RUnlock()

	for _, m := range candidateMethods(method) {
		if route, ok := rr.literal[model.RouteKey(m, path)]; ok {
			return route, nil, true
		}
	}

	if len(rr.dynamic) == 0 {
		return nil, nil, false
	}
	segments := model.SplitPath(path)
	route, values := search(rr.root, segments, 0, method, nil)
	if route == nil {
		return nil, nil, false
	}
	params := make(map[string]string, len(route.params))
	for pos, name := range route.params {
		params[name] = values[pos]
	}
	return route, params, true
}

// search 深度优先，静态子节点优先，失败后回溯到参数子节点
func search(n *node, segments []string, i int, method string, values map[int]string) (*RegisteredRoute, map[int]string) {
	if i == len(segments) {
		for _, m := range candidateMethods(method) {
			if route, ok := n.routes[m]; ok {
				return route, values
			}
		}
		return nil, nil
	}

	if child, ok := n.static[segments[i]]; ok {
		if route, vals := search(child, segments, i+1, method, values); route != nil {
			return route, vals
		}
	}
	if n.param != nil {
		next := make(map[int]string, len(values)+1)
		for k, v := range values {
			next[k] = v
		}
		next[i] = segments[i]
		if route, vals := search(n.param, segments, i+1, method, next); route != nil {
			return route, vals
		}
	}
	return nil, nil
}

func candidateMethods(method string) []string {
	if method == model.MethodHead {
		return []string{model.MethodHead, model.MethodGet, model.MethodAll}
	}
	return []string{method, model.MethodAll}
}

func paramPositions(path string) map[int]string {
	var params map[int]string
	for i, seg := range model.SplitPath(path) {
		if name, ok := model.ParamName(seg); ok {
			if params == nil {
				params = map[int]string{}
			}
			params[i] = name
		}
	}
	return params
}

// Routes 当前路由快照，按 key 排序
func (rr *RouteRegistry) Routes() []RegisteredRoute {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	routes := make([]RegisteredRoute, 0, len(rr.literal)+len(rr.dynamic))
	for _, r := range rr.literal {
		routes = append(routes, *r)
	}
	for _, r := range rr.dynamic {
		routes = append(routes, *r)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Key() < routes[j].Key()
	})
	return routes
}

func (rr *RouteRegistry) Len() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.literal) + len(rr.dynamic)
}

// Clear 清空路由表
func (rr *RouteRegistry) Clear() {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.literal = map[string]*RegisteredRoute{}
	rr.dynamic = map[string]*RegisteredRoute{}
	rr.root = newNode()
}

func (rr *RouteRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, params, ok := rr.Resolve(r.Method, r.URL.Path)
	if !ok {
		rr.mu.RLock()
		notFound := rr.notFound
		rr.mu.RUnlock()
		notFound.ServeHTTP(w, r)
		return
	}
	if len(params) > 0 {
		r = r.WithContext(model.WithPathParams(r.Context(), params))
	}
	route.Handler.ServeHTTP(w, r)
}
