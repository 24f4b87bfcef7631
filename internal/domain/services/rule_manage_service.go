package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fake_api_server/internal/domain/iface"
	model "fake_api_server/internal/domain/model/mock_rule"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/internal/infra/repo"
	"fake_api_server/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RouteTable 服务需要的路由表能力
type RouteTable interface {
	Install(rule *model.Rule) error
	InstallBatch(rules []*model.Rule) (int, []error)
	RemoveRule(ruleID, method, path string) bool
}

type RuleManageService struct {
	ruleRepo repo.RuleRepositoryIface
	routes   RouteTable
	reserved []string

	// 串行化写操作，保证路由表与最后一次提交一致
	mu sync.Mutex

	newID func() string
	now   func() time.Time
}

var _ iface.RuleService = (*RuleManageService)(nil)

func NewRuleManageService(c *configs.AppConfig, ruleRepo repo.RuleRepositoryIface, routes RouteTable) *RuleManageService {
	return &RuleManageService{
		ruleRepo: ruleRepo,
		routes:   routes,
		reserved: []string{c.Server.AdminPrefix, "/healthz", "/metrics"},
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRule 创建规则
func (s *RuleManageService) CreateRule(ctx context.Context, owner string, rule *model.Rule) (*model.Rule, error) {
	rule = rule.Clone()
	rule.Owner = owner
	rule.Normalize()
	if err := s.validateRule(rule); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRouteFree(ctx, rule, ""); err != nil {
		return nil, err
	}

	now := s.now()
	rule.ID = s.newID()
	rule.Version = 1
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.UsageCount = 0
	rule.LastUsed = nil

	entry := model.NewHistoryEntry(model.HistoryActionCreate, nil, rule, owner, "")
	if err := s.ruleRepo.CreateRule(ctx, rule, entry); err != nil {
		return nil, s.wrap("create rule", err)
	}

	s.syncRoute(ctx, nil, rule)
	utils.GetLogger().WithFields(ruleFields(rule)).Info("rule created")
	return rule, nil
}

func (s *RuleManageService) GetRule(ctx context.Context, owner, ruleID string) (*model.Rule, error) {
	rule, err := s.ruleRepo.FindByID(ctx, ruleID)
	if err != nil {
		return nil, s.wrap("get rule", err)
	}
	if rule.Owner != owner {
		return nil, &model.NotFoundError{RuleID: ruleID}
	}
	return rule, nil
}

func (s *RuleManageService) ListRulesForOwner(ctx context.Context, owner string) ([]*model.Rule, error) {
	rules, err := s.ruleRepo.ListRulesByOwner(ctx, owner)
	if err != nil {
		return nil, s.wrap("list rules", err)
	}
	return rules, nil
}

// UpdateRule 在副本上应用补丁，校验通过后整体提交
func (s *RuleManageService) UpdateRule(ctx context.Context, owner, ruleID string, patch *model.RulePatch, comment string) (*model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadOwned(ctx, owner, ruleID)
	if err != nil {
		return nil, err
	}

	updated := current.Clone()
	patch.Apply(updated)
	updated.ID = current.ID
	updated.Owner = current.Owner
	updated.Normalize()
	if err := s.validateRule(updated); err != nil {
		return nil, err
	}
	if updated.OwnerKey() != current.OwnerKey() {
		if err := s.checkRouteFree(ctx, updated, current.ID); err != nil {
			return nil, err
		}
	}

	updated.Version = current.Version + 1
	updated.UpdatedAt = s.now()

	entry := model.NewHistoryEntry(model.HistoryActionUpdate, current, updated, owner, comment)
	if err := s.ruleRepo.UpdateRule(ctx, updated, entry); err != nil {
		return nil, s.wrap("update rule", err)
	}

	s.syncRoute(ctx, current, updated)
	utils.GetLogger().WithFields(ruleFields(updated)).Info("rule updated")
	return updated, nil
}

func (s *RuleManageService) DeleteRule(ctx context.Context, owner, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadOwned(ctx, owner, ruleID)
	if err != nil {
		return err
	}

	entry := model.NewHistoryEntry(model.HistoryActionDelete, current, nil, owner, "")
	if err := s.ruleRepo.DeleteRule(ctx, ruleID, entry); err != nil {
		return s.wrap("delete rule", err)
	}

	s.syncRoute(ctx, current, nil)
	utils.GetLogger().WithFields(ruleFields(current)).Info("rule deleted")
	return nil
}

func (s *RuleManageService) GetRuleHistory(ctx context.Context, owner, ruleID string) ([]*model.RuleHistoryEntry, error) {
	if _, err := s.GetRule(ctx, owner, ruleID); err != nil {
		return nil, err
	}
	entries, err := s.ruleRepo.ListHistory(ctx, ruleID)
	if err != nil {
		return nil, s.wrap("get rule history", err)
	}
	return entries, nil
}

// LoadRoutes 启动时装载；单条规则失败不影响其他规则
func (s *RuleManageService) LoadRoutes(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.ruleRepo.ListAllRules(ctx)
	if err != nil {
		return 0, s.wrap("load routes", err)
	}
	active := make([]*model.Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	installed, errs := s.routes.InstallBatch(active)
	utils.GetLogger().WithFields(logrus.Fields{
		"rules":     len(rules),
		"installed": installed,
		"skipped":   len(errs),
	}).Info("routes loaded")
	return installed, nil
}

// syncRoute 让路由表反映 before -> after 的变化，调用方持有 s.mu
func (s *RuleManageService) syncRoute(ctx context.Context, before, after *model.Rule) {
	log := utils.GetLogger()
	freed := false
	if before != nil && before.IsActive() &&
		(after == nil || !after.IsActive() || after.RouteKey() != before.RouteKey()) {
		freed = s.routes.RemoveRule(before.ID, before.Method, before.Path)
	}
	if after != nil && after.IsActive() {
		// 同 key 时直接替换，没有空窗
		if err := s.routes.Install(after); err != nil {
			log.WithFields(ruleFields(after)).WithError(err).Warn("rule saved but route not installed")
		}
	}
	if !freed {
		return
	}
	if after != nil && after.IsActive() &&
		after.Method == before.Method && model.RouteShape(after.Path) == model.RouteShape(before.Path) {
		// after 已占住同一个槽位
		return
	}
	s.refillRoute(ctx, before)
}

// refillRoute 槽位释放后，其他 owner 在同一槽位上的 ACTIVE 规则重新接管
func (s *RuleManageService) refillRoute(ctx context.Context, released *model.Rule) {
	log := utils.GetLogger().WithFields(ruleFields(released))
	next, err := s.ruleRepo.FindActiveByRoute(ctx, released.Path, released.Method, released.ID)
	if err != nil {
		log.WithError(err).Warn("route released but replacement lookup failed")
		return
	}
	if next == nil {
		return
	}
	if err := s.routes.Install(next); err != nil {
		log.WithError(err).Warn("replacement route not installed")
		return
	}
	log.WithField("replacement_id", next.ID).Info("route handed over to remaining active rule")
}

func (s *RuleManageService) loadOwned(ctx context.Context, owner, ruleID string) (*model.Rule, error) {
	rule, err := s.ruleRepo.LoadByID(ctx, ruleID)
	if err != nil {
		return nil, s.wrap("load rule", err)
	}
	if rule.Owner != owner {
		return nil, &model.NotFoundError{RuleID: ruleID}
	}
	return rule, nil
}

func (s *RuleManageService) checkRouteFree(ctx context.Context, rule *model.Rule, selfID string) error {
	existing, err := s.ruleRepo.FindByRouteKey(ctx, rule.Owner, rule.Path, rule.Method)
	if err != nil {
		return s.wrap("check route", err)
	}
	if existing != nil && existing.ID != selfID {
		return &model.ConflictError{Owner: rule.Owner, Path: rule.Path, Method: rule.Method}
	}
	if !model.IsParamPath(rule.Path) {
		return nil
	}
	// /users/:id 与 /users/{uid} 在路由表中是同一个槽位
	owned, err := s.ruleRepo.ListRulesByOwner(ctx, rule.Owner)
	if err != nil {
		return s.wrap("check route", err)
	}
	shape := model.RouteShape(rule.Path)
	for _, other := range owned {
		if other.ID != selfID && other.Method == rule.Method && model.RouteShape(other.Path) == shape {
			return &model.ConflictError{Owner: rule.Owner, Path: rule.Path, Method: rule.Method}
		}
	}
	return nil
}

func (s *RuleManageService) validateRule(rule *model.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	for _, prefix := range s.reserved {
		if prefix == "" || prefix == "/" {
			continue
		}
		if rule.Path == prefix || strings.HasPrefix(rule.Path, prefix+"/") {
			return model.NewValidationError(fmt.Sprintf("path %s is reserved", prefix), "path")
		}
	}
	return nil
}

// wrap 领域错误原样返回，其余加上下文
func (s *RuleManageService) wrap(op string, err error) error {
	if model.IsDomainError(err) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func ruleFields(r *model.Rule) logrus.Fields {
	return logrus.Fields{
		"rule_id": r.ID,
		"owner":   r.Owner,
		"method":  r.Method,
		"path":    r.Path,
		"version": r.Version,
		"status":  r.Status,
	}
}
