package storage

import (
	"context"
	"errors"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"
)

// ErrStaleVersion 更新时存储中的版本已不是预期版本
var ErrStaleVersion = errors.New("rule was modified concurrently")

// RuleStorageIface 规则持久化；写操作与历史记录在同一事务内完成
type RuleStorageIface interface {
	// CreateRule 唯一键冲突返回 *model.ConflictError
	CreateRule(ctx context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error
	// UpdateRule 要求存储中的版本为 rule.Version-1
	UpdateRule(ctx context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error
	DeleteRule(ctx context.Context, ruleID string, entry *model.RuleHistoryEntry) error

	// GetRule 不存在时返回 *model.NotFoundError
	GetRule(ctx context.Context, ruleID string) (*model.Rule, error)
	// FindByRouteKey 不存在时返回 nil, nil
	FindByRouteKey(ctx context.Context, owner, path, method string) (*model.Rule, error)
	// FindActiveByRoute 任意 owner 下与 (path, method) 落在同一槽位的 ACTIVE 规则，
	// 跳过 excludeID，取最后创建的一条，与启动加载时的覆盖顺序一致；没有时返回 nil, nil
	FindActiveByRoute(ctx context.Context, path, method, excludeID string) (*model.Rule, error)
	ListRulesByOwner(ctx context.Context, owner string) ([]*model.Rule, error)
	ListRules(ctx context.Context) ([]*model.Rule, error)
	ListHistory(ctx context.Context, ruleID string) ([]*model.RuleHistoryEntry, error)

	// IncrementUsage 原子递增 usageCount 并更新 lastUsed
	IncrementUsage(ctx context.Context, ruleID string, at time.Time) error
}

// RequestLogStorageIface 请求日志，只追加
type RequestLogStorageIface interface {
	SaveRequestLog(ctx context.Context, entry *model.RequestLog) error
	// ListRequestLogs 按时间倒序
	ListRequestLogs(ctx context.Context, ruleID string, limit int) ([]*model.RequestLog, error)
}

// RuleCacheIface 规则缓存，未命中返回 nil, nil
type RuleCacheIface interface {
	GetRuleFromCache(ctx context.Context, ruleID string) (*model.Rule, error)
	SetRuleToCache(ctx context.Context, rule *model.Rule) error
	DeleteRuleFromCache(ctx context.Context, ruleID string) error
}
