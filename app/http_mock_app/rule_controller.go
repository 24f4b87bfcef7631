package http_mock_app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"fake_api_server/internal/domain/iface"
	model "fake_api_server/internal/domain/model/mock_rule"
	"fake_api_server/internal/domain/registry"
	"fake_api_server/utils"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// RouteLister 路由表快照
type RouteLister interface {
	Routes() []registry.RegisteredRoute
}

type RuleController struct {
	RuleManageService iface.RuleService
	RequestLogs       iface.RequestLogService
	Liveness          iface.LivenessService
	Routes            RouteLister
}

func NewRuleController(ruleService iface.RuleService, logs iface.RequestLogService, liveness iface.LivenessService, routes RouteLister) *RuleController {
	return &RuleController{
		RuleManageService: ruleService,
		RequestLogs:       logs,
		Liveness:          liveness,
		Routes:            routes,
	}
}

// Register 挂载管理接口，调用方负责鉴权中间件
func (c *RuleController) Register(r chi.Router) {
	r.Post("/rules", c.CreateRule)
	r.Get("/rules", c.ListRules)
	r.Get("/rules/{id}", c.GetRule)
	r.Put("/rules/{id}", c.UpdateRule)
	r.Patch("/rules/{id}", c.UpdateRule)
	r.Delete("/rules/{id}", c.DeleteRule)
	r.Get("/rules/{id}/history", c.GetRuleHistory)
	r.Get("/rules/{id}/liveness", c.GetRuleLiveness)
	r.Get("/rules/{id}/logs", c.ListRuleLogs)
	r.Get("/liveness", c.ListLiveness)
	r.Get("/routes", c.ListRoutes)
}

func (c *RuleController) CreateRule(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	logger := requestLogger(r, owner)

	var req CreateRuleRequest
	if err := decodeBody(r, &req); err != nil {
		logger.WithError(err).Info("read request body err")
		writeDomainError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	rule, err := c.RuleManageService.CreateRule(r.Context(), owner, req.ToRule())
	if err != nil {
		c.fail(w, logger, "create mock rule err", err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (c *RuleController) ListRules(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	rules, err := c.RuleManageService.ListRulesForOwner(r.Context(), owner)
	if err != nil {
		c.fail(w, requestLogger(r, owner), "list mock rules err", err)
		return
	}
	if rules == nil {
		rules = []*model.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (c *RuleController) GetRule(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	rule, err := c.RuleManageService.GetRule(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, requestLogger(r, owner), "get mock rule err", err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (c *RuleController) UpdateRule(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	logger := requestLogger(r, owner)

	var req UpdateRuleRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	rule, err := c.RuleManageService.UpdateRule(r.Context(), owner, chi.URLParam(r, "id"), &req.RulePatch, req.Comment)
	if err != nil {
		c.fail(w, logger, "update mock rule err", err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (c *RuleController) DeleteRule(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	if err := c.RuleManageService.DeleteRule(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		c.fail(w, requestLogger(r, owner), "delete mock rule err", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *RuleController) GetRuleHistory(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	entries, err := c.RuleManageService.GetRuleHistory(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, requestLogger(r, owner), "get rule history err", err)
		return
	}
	if entries == nil {
		entries = []*model.RuleHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (c *RuleController) GetRuleLiveness(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := c.RuleManageService.GetRule(r.Context(), owner, id); err != nil {
		c.fail(w, requestLogger(r, owner), "get rule liveness err", err)
		return
	}
	status, ok := c.Liveness.Status(id)
	if !ok {
		// 还没探测过
		status = model.LivenessStatus{RuleID: id, FailureReason: "not probed yet"}
	}
	writeJSON(w, http.StatusOK, status)
}

// ListLiveness 只返回调用者自己规则的探活结果
func (c *RuleController) ListLiveness(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	rules, err := c.RuleManageService.ListRulesForOwner(r.Context(), owner)
	if err != nil {
		c.fail(w, requestLogger(r, owner), "list liveness err", err)
		return
	}
	mine := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		mine[rule.ID] = struct{}{}
	}
	out := []model.LivenessStatus{}
	for _, s := range c.Liveness.Statuses() {
		if _, ok := mine[s.RuleID]; ok {
			out = append(out, s)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *RuleController) ListRuleLogs(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	logs, err := c.RequestLogs.ListRequestLogs(r.Context(), owner, chi.URLParam(r, "id"), limit)
	if err != nil {
		c.fail(w, requestLogger(r, owner), "list request logs err", err)
		return
	}
	if logs == nil {
		logs = []*model.RequestLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (c *RuleController) ListRoutes(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	out := []RouteResponse{}
	for _, route := range c.Routes.Routes() {
		if route.Owner != owner {
			continue
		}
		out = append(out, RouteResponse{
			Method:      route.Method,
			Path:        route.Path,
			RuleID:      route.RuleID,
			Version:     route.Version,
			InstalledAt: route.InstalledAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// fail 领域错误按 Info 记录，其余按 Error
func (c *RuleController) fail(w http.ResponseWriter, logger *logrus.Entry, msg string, err error) {
	if model.IsDomainError(err) {
		logger.WithError(err).Info(msg)
	} else {
		logger.WithError(err).Error(msg)
	}
	writeDomainError(w, err)
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewValidationError(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultLogLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, model.NewValidationError("limit must be a positive integer", "limit")
	}
	if n > maxLogLimit {
		n = maxLogLimit
	}
	return n, nil
}

func requestLogger(r *http.Request, owner string) *logrus.Entry {
	return utils.GetLogger().WithFields(logrus.Fields{
		"owner":  owner,
		"method": r.Method,
		"path":   r.URL.Path,
	})
}
