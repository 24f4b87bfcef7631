package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"
)

// MemoryStorage 进程内存储，供开发和测试使用
type MemoryStorage struct {
	mu       sync.RWMutex
	rules    map[string]*model.Rule
	routeIdx map[string]string // owner|path|method => rule id
	history  map[string][]*model.RuleHistoryEntry
	logs     []*model.RequestLog
	nextID   uint64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		rules:    map[string]*model.Rule{},
		routeIdx: map[string]string{},
		history:  map[string][]*model.RuleHistoryEntry{},
	}
}

var (
	_ RuleStorageIface       = (*MemoryStorage)(nil)
	_ RequestLogStorageIface = (*MemoryStorage)(nil)
)

func (s *MemoryStorage) CreateRule(_ context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rule.OwnerKey()
	if _, ok := s.routeIdx[key]; ok {
		return &model.ConflictError{Owner: rule.Owner, Path: rule.Path, Method: rule.Method}
	}
	if _, ok := s.rules[rule.ID]; ok {
		return &model.ConflictError{Owner: rule.Owner, Path: rule.Path, Method: rule.Method}
	}
	s.rules[rule.ID] = rule.Clone()
	s.routeIdx[key] = rule.ID
	s.appendHistoryLocked(entry)
	return nil
}

func (s *MemoryStorage) UpdateRule(_ context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rules[rule.ID]
	if !ok {
		return &model.NotFoundError{RuleID: rule.ID}
	}
	if current.Version != rule.Version-1 {
		return ErrStaleVersion
	}
	newKey := rule.OwnerKey()
	if id, taken := s.routeIdx[newKey]; taken && id != rule.ID {
		return &model.ConflictError{Owner: rule.Owner, Path: rule.Path, Method: rule.Method}
	}

	updated := rule.Clone()
	updated.CreatedAt = current.CreatedAt
	updated.UsageCount = current.UsageCount
	updated.LastUsed = current.LastUsed

	delete(s.routeIdx, current.OwnerKey())
	s.routeIdx[newKey] = rule.ID
	s.rules[rule.ID] = updated
	s.appendHistoryLocked(entry)
	return nil
}

func (s *MemoryStorage) DeleteRule(_ context.Context, ruleID string, entry *model.RuleHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rules[ruleID]
	if !ok {
		return &model.NotFoundError{RuleID: ruleID}
	}
	delete(s.routeIdx, current.OwnerKey())
	delete(s.rules, ruleID)
	s.appendHistoryLocked(entry)
	return nil
}

func (s *MemoryStorage) appendHistoryLocked(entry *model.RuleHistoryEntry) {
	if entry == nil {
		return
	}
	s.nextID++
	e := *entry
	e.ID = s.nextID
	entry.ID = e.ID
	s.history[e.RuleID] = append(s.history[e.RuleID], &e)
}

func (s *MemoryStorage) GetRule(_ context.Context, ruleID string) (*model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[ruleID]
	if !ok {
		return nil, &model.NotFoundError{RuleID: ruleID}
	}
	return rule.Clone(), nil
}

func (s *MemoryStorage) FindByRouteKey(_ context.Context, owner, path, method string) (*model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.routeIdx[model.OwnerRouteKey(owner, path, method)]
	if !ok {
		return nil, nil
	}
	return s.rules[id].Clone(), nil
}

func (s *MemoryStorage) FindActiveByRoute(_ context.Context, path, method, excludeID string) (*model.Rule, error) {
	shape, method := model.RouteShape(path), strings.ToUpper(method)
	candidates := s.list(func(r *model.Rule) bool {
		return r.ID != excludeID && r.IsActive() &&
			strings.ToUpper(r.Method) == method && model.RouteShape(r.Path) == shape
	})
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[len(candidates)-1], nil
}

func (s *MemoryStorage) ListRulesByOwner(_ context.Context, owner string) ([]*model.Rule, error) {
	return s.list(func(r *model.Rule) bool { return r.Owner == owner }), nil
}

func (s *MemoryStorage) ListRules(_ context.Context) ([]*model.Rule, error) {
	return s.list(func(*model.Rule) bool { return true }), nil
}

func (s *MemoryStorage) list(keep func(*model.Rule) bool) []*model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]*model.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if keep(r) {
			rules = append(rules, r.Clone())
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].ID < rules[j].ID
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	return rules
}

func (s *MemoryStorage) ListHistory(_ context.Context, ruleID string) ([]*model.RuleHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*model.RuleHistoryEntry, 0, len(s.history[ruleID]))
	for _, e := range s.history[ruleID] {
		c := *e
		entries = append(entries, &c)
	}
	return entries, nil
}

func (s *MemoryStorage) IncrementUsage(_ context.Context, ruleID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[ruleID]
	if !ok {
		return &model.NotFoundError{RuleID: ruleID}
	}
	rule.UsageCount++
	t := at
	rule.LastUsed = &t
	return nil
}

func (s *MemoryStorage) SaveRequestLog(_ context.Context, entry *model.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e := *entry
	e.ID = s.nextID
	entry.ID = e.ID
	s.logs = append(s.logs, &e)
	return nil
}

func (s *MemoryStorage) ListRequestLogs(_ context.Context, ruleID string, limit int) ([]*model.RequestLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.RequestLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].RuleID != ruleID {
			continue
		}
		c := *s.logs[i]
		out = append(out, &c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
