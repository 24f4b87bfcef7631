package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/internal/infra/storage"
	"fake_api_server/utils"

	"github.com/avast/retry-go/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ruleRepoImpl 存储为准，redis 旁路缓存 (singleflight 防击穿, retry-go 重试, ants 异步回填)
type ruleRepoImpl struct {
	ruleStorage storage.RuleStorageIface
	ruleCache   storage.RuleCacheIface
	config      *configs.RuleRepoConfig
	taskPool    *ants.Pool
	sfGroup     singleflight.Group
}

// 确保 ruleRepoImpl 实现了 RuleRepository 接口 (编译时检查)
var _ RuleRepositoryIface = (*ruleRepoImpl)(nil)

func NewRuleRepoImpl(ruleStorage storage.RuleStorageIface, ruleCache storage.RuleCacheIface, config *configs.RuleRepoConfig) (RuleRepositoryIface, func(), error) {
	taskPool, err := ants.NewPool(config.CacheUpdatePoolSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	repo := &ruleRepoImpl{
		ruleStorage: ruleStorage,
		ruleCache:   ruleCache,
		config:      config,
		taskPool:    taskPool,
	}
	return repo, taskPool.Release, nil
}

// 领域错误和版本冲突不重试
func retryable(err error) bool {
	return !model.IsDomainError(err) && !errors.Is(err, storage.ErrStaleVersion)
}

func (r *ruleRepoImpl) writeWithRetry(fn func() error) error {
	return retry.Do(
		fn,
		retry.Attempts(uint(r.config.SaveRuleDBRetryCount)),
		retry.Delay(r.config.SaveRuleDBRetryDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
	)
}

func (r *ruleRepoImpl) CreateRule(ctx context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error {
	if err := r.writeWithRetry(func() error {
		return r.ruleStorage.CreateRule(ctx, rule, entry)
	}); err != nil {
		return err
	}
	r.invalidate(ctx, rule.ID)
	return nil
}

func (r *ruleRepoImpl) UpdateRule(ctx context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error {
	if err := r.writeWithRetry(func() error {
		return r.ruleStorage.UpdateRule(ctx, rule, entry)
	}); err != nil {
		return err
	}
	r.invalidate(ctx, rule.ID)
	return nil
}

func (r *ruleRepoImpl) DeleteRule(ctx context.Context, ruleID string, entry *model.RuleHistoryEntry) error {
	if err := r.writeWithRetry(func() error {
		return r.ruleStorage.DeleteRule(ctx, ruleID, entry)
	}); err != nil {
		return err
	}
	r.invalidate(ctx, ruleID)
	return nil
}

// invalidate 删除缓存，失败只记日志，TTL 兜底
func (r *ruleRepoImpl) invalidate(ctx context.Context, ruleID string) {
	err := retry.Do(
		func() error {
			return r.ruleCache.DeleteRuleFromCache(ctx, ruleID)
		},
		retry.Attempts(uint(r.config.RedisCacheRetryCount)),
		retry.Delay(r.config.RedisCacheRetryDelay),
	)
	if err != nil {
		utils.GetLogger().WithError(err).WithField("rule_id", ruleID).Warn("failed to invalidate rule cache")
	}
}

// FindByID 根据ID查询规则
func (r *ruleRepoImpl) FindByID(ctx context.Context, id string) (*model.Rule, error) {
	// 先从缓存查询
	rule, err := r.ruleCache.GetRuleFromCache(ctx, id)
	if err != nil {
		utils.GetLogger().WithError(err).Debug("rule cache read failed")
	}
	if rule != nil {
		return rule, nil
	}

	// 使用 singleflight 防止缓存击穿
	data, err, _ := r.sfGroup.Do("find_rule_by_id_"+id, func() (interface{}, error) {
		rule, err := r.ruleStorage.GetRule(ctx, id)
		if err != nil {
			return nil, err
		}
		r.fillCacheAsync(rule.Clone())
		return rule, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight 共享结果，返回副本
	return data.(*model.Rule).Clone(), nil
}

func (r *ruleRepoImpl) fillCacheAsync(rule *model.Rule) {
	log := utils.GetLogger()
	err := r.taskPool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := retry.Do(
			func() error {
				return r.ruleCache.SetRuleToCache(ctx, rule)
			},
			retry.Attempts(uint(r.config.RedisCacheRetryCount)),
			retry.Delay(r.config.RedisCacheRetryDelay),
		)
		if err != nil {
			log.WithError(err).WithField("rule_id", rule.ID).Warn("async cache update failed")
		}
	})
	if err != nil {
		log.WithError(err).Warn("failed to submit cache update task")
	}
}

func (r *ruleRepoImpl) LoadByID(ctx context.Context, id string) (*model.Rule, error) {
	return r.ruleStorage.GetRule(ctx, id)
}

func (r *ruleRepoImpl) FindByRouteKey(ctx context.Context, owner, path, method string) (*model.Rule, error) {
	return r.ruleStorage.FindByRouteKey(ctx, owner, path, method)
}

func (r *ruleRepoImpl) FindActiveByRoute(ctx context.Context, path, method, excludeID string) (*model.Rule, error) {
	rule, err := r.ruleStorage.FindActiveByRoute(ctx, path, method, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active rule for %s %s: %w", method, path, err)
	}
	return rule, nil
}

func (r *ruleRepoImpl) ListRulesByOwner(ctx context.Context, owner string) ([]*model.Rule, error) {
	rules, err := r.ruleStorage.ListRulesByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules for owner %s: %w", owner, err)
	}
	return rules, nil
}

// ListAllRules 探活和启动加载使用，并发调用合并为一次查询
func (r *ruleRepoImpl) ListAllRules(ctx context.Context) ([]*model.Rule, error) {
	data, err, shared := r.sfGroup.Do("list_all_rules", func() (interface{}, error) {
		rules, err := r.ruleStorage.ListRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list rules from db: %w", err)
		}
		return rules, nil
	})
	if err != nil {
		return nil, err
	}

	rules := data.([]*model.Rule)
	if !shared {
		return rules, nil
	}
	out := make([]*model.Rule, len(rules))
	for i, rule := range rules {
		out[i] = rule.Clone()
	}
	return out, nil
}

func (r *ruleRepoImpl) ListHistory(ctx context.Context, ruleID string) ([]*model.RuleHistoryEntry, error) {
	entries, err := r.ruleStorage.ListHistory(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for rule %s: %w", ruleID, err)
	}
	return entries, nil
}

func (r *ruleRepoImpl) IncrementUsage(ctx context.Context, ruleID string, at time.Time) error {
	err := r.writeWithRetry(func() error {
		return r.ruleStorage.IncrementUsage(ctx, ruleID, at)
	})
	if err != nil {
		utils.GetLogger().WithFields(logrus.Fields{"rule_id": ruleID}).WithError(err).Debug("bump usage failed")
		return err
	}
	return nil
}
