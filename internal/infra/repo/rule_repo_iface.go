package repo

import (
	"context"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"
)

// RuleRepositoryIface 接口 - 定义数据仓库操作
type RuleRepositoryIface interface {
	CreateRule(ctx context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error
	UpdateRule(ctx context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error
	DeleteRule(ctx context.Context, ruleID string, entry *model.RuleHistoryEntry) error

	// FindByID 先查缓存
	FindByID(ctx context.Context, ruleID string) (*model.Rule, error)
	// LoadByID 直接读存储，写路径使用
	LoadByID(ctx context.Context, ruleID string) (*model.Rule, error)
	FindByRouteKey(ctx context.Context, owner, path, method string) (*model.Rule, error)
	// FindActiveByRoute 槽位释放后查找可以补位的其他 ACTIVE 规则
	FindActiveByRoute(ctx context.Context, path, method, excludeID string) (*model.Rule, error)
	ListRulesByOwner(ctx context.Context, owner string) ([]*model.Rule, error)
	ListAllRules(ctx context.Context) ([]*model.Rule, error)
	ListHistory(ctx context.Context, ruleID string) ([]*model.RuleHistoryEntry, error)

	IncrementUsage(ctx context.Context, ruleID string, at time.Time) error
}
