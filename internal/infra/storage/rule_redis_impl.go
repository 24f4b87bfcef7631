package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/utils"

	"github.com/go-redis/redis/v8"
)

const ruleKeyPrefix = "fake_api:rule:" // Redis Key 前缀

type redisRuleCacheImpl struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisClient redis.enabled 为 false 时返回 nil
func NewRedisClient(c *configs.AppConfig) (*redis.Client, func(), error) {
	rc := c.RedisConfig
	if !rc.Enabled {
		return nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", rc.Host, rc.Port),
		Password:     rc.Password,
		DB:           rc.Database,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   rc.MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		PoolTimeout:  rc.PoolTimeout,
		IdleTimeout:  rc.IdleTimeout,
	})

	// 测试连接是否成功
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	utils.GetLogger().WithField("addr", client.Options().Addr).Info("Successfully connected to Redis")
	cleanup := func() {
		if err := client.Close(); err != nil {
			utils.GetLogger().WithError(err).Warn("close redis")
		}
	}
	return client, cleanup, nil
}

// NewRuleCache 没有 redis 客户端时退化为空缓存
func NewRuleCache(c *configs.AppConfig, client *redis.Client) RuleCacheIface {
	if client == nil {
		return NopRuleCache{}
	}
	return NewRedisRuleCache(client, c.RedisConfig.RuleTTL)
}

func NewRedisRuleCache(client *redis.Client, ttl time.Duration) RuleCacheIface {
	return &redisRuleCacheImpl{redisClient: client, ttl: ttl}
}

var _ RuleCacheIface = (*redisRuleCacheImpl)(nil)

func (r *redisRuleCacheImpl) SetRuleToCache(ctx context.Context, rule *model.Rule) error {
	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule to JSON: %w", err)
	}

	if err := r.redisClient.Set(ctx, ruleKeyPrefix+rule.ID, ruleJSON, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set rule to redis: %w", err)
	}
	return nil
}

func (r *redisRuleCacheImpl) DeleteRuleFromCache(ctx context.Context, ruleID string) error {
	if err := r.redisClient.Del(ctx, ruleKeyPrefix+ruleID).Err(); err != nil {
		return fmt.Errorf("failed to delete rule from redis: %w", err)
	}
	return nil
}

func (r *redisRuleCacheImpl) GetRuleFromCache(ctx context.Context, ruleID string) (*model.Rule, error) {
	ruleJSON, err := r.redisClient.Get(ctx, ruleKeyPrefix+ruleID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get rule from redis: %w", err)
	}

	rule := &model.Rule{}
	if err := json.Unmarshal(ruleJSON, rule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule from JSON: %w", err)
	}
	return rule, nil
}

// NopRuleCache 未启用 redis 时使用
type NopRuleCache struct{}

var _ RuleCacheIface = NopRuleCache{}

func (NopRuleCache) GetRuleFromCache(context.Context, string) (*model.Rule, error) { return nil, nil }
func (NopRuleCache) SetRuleToCache(context.Context, *model.Rule) error            { return nil }
func (NopRuleCache) DeleteRuleFromCache(context.Context, string) error            { return nil }
