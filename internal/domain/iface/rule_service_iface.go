package iface

import (
	"context"

	model "fake_api_server/internal/domain/model/mock_rule"
)

// RuleService 规则服务接口；owner 之外的规则一律视为不存在
type RuleService interface {
	// CreateRule 创建规则并安装路由
	CreateRule(ctx context.Context, owner string, rule *model.Rule) (*model.Rule, error)
	GetRule(ctx context.Context, owner, ruleID string) (*model.Rule, error)
	ListRulesForOwner(ctx context.Context, owner string) ([]*model.Rule, error)
	// UpdateRule 版本号 +1 并追加历史
	UpdateRule(ctx context.Context, owner, ruleID string, patch *model.RulePatch, comment string) (*model.Rule, error)
	DeleteRule(ctx context.Context, owner, ruleID string) error
	GetRuleHistory(ctx context.Context, owner, ruleID string) ([]*model.RuleHistoryEntry, error)

	// LoadRoutes 启动时把存储中的 ACTIVE 规则装入路由表
	LoadRoutes(ctx context.Context) (int, error)
}

// RequestLogService 请求日志查询
type RequestLogService interface {
	ListRequestLogs(ctx context.Context, owner, ruleID string, limit int) ([]*model.RequestLog, error)
}

// LivenessService 探活结果查询
type LivenessService interface {
	Status(ruleID string) (model.LivenessStatus, bool)
	Statuses() []model.LivenessStatus
}
