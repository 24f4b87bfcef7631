package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"

	"gorm.io/gorm"
)

type GormRuleStorage struct {
	db *gorm.DB
}

func NewGormRuleStorage(db *gorm.DB) *GormRuleStorage {
	return &GormRuleStorage{db: db}
}

var _ RuleStorageIface = (*GormRuleStorage)(nil)

func (s *GormRuleStorage) CreateRule(ctx context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rule).Error; err != nil {
			return translateWriteError(rule, "save rule", err)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append rule history: %w", err)
		}
		return nil
	})
}

func (s *GormRuleStorage) UpdateRule(ctx context.Context, rule *model.Rule, entry *model.RuleHistoryEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Rule{}).
			Where("id = ? AND version = ?", rule.ID, rule.Version-1).
			Select("*").Omit("created_at", "usage_count", "last_used").
			Updates(rule)
		if res.Error != nil {
			return translateWriteError(rule, "update rule", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Rule{}).Where("id = ?", rule.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check rule: %w", err)
			}
			if count == 0 {
				return &model.NotFoundError{RuleID: rule.ID}
			}
			return ErrStaleVersion
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append rule history: %w", err)
		}
		return nil
	})
}

func (s *GormRuleStorage) DeleteRule(ctx context.Context, ruleID string, entry *model.RuleHistoryEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Rule{}, "id = ?", ruleID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete rule: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &model.NotFoundError{RuleID: ruleID}
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append rule history: %w", err)
		}
		return nil
	})
}

func (s *GormRuleStorage) GetRule(ctx context.Context, ruleID string) (*model.Rule, error) {
	rule := &model.Rule{}
	if err := s.db.WithContext(ctx).First(rule, "id = ?", ruleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.NotFoundError{RuleID: ruleID}
		}
		return nil, fmt.Errorf("failed to get rule from db: %w", err)
	}
	return rule, nil
}

func (s *GormRuleStorage) FindByRouteKey(ctx context.Context, owner, path, method string) (*model.Rule, error) {
	var rules []*model.Rule
	err := s.db.WithContext(ctx).
		Where("owner = ? AND path = ? AND method = ?", owner, path, method).
		Limit(1).Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find rule by route: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return rules[0], nil
}

// FindActiveByRoute 参数名可能不同，按 method 粗筛后在内存里比较槽位
func (s *GormRuleStorage) FindActiveByRoute(ctx context.Context, path, method, excludeID string) (*model.Rule, error) {
	var rules []*model.Rule
	err := s.db.WithContext(ctx).
		Where("status = ? AND method = ? AND id <> ?", model.RuleStatusActive, strings.ToUpper(method), excludeID).
		Order("created_at DESC").Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active rule by route: %w", err)
	}
	shape := model.RouteShape(path)
	for _, rule := range rules {
		if model.RouteShape(rule.Path) == shape {
			return rule, nil
		}
	}
	return nil, nil
}

func (s *GormRuleStorage) ListRulesByOwner(ctx context.Context, owner string) ([]*model.Rule, error) {
	var rules []*model.Rule
	if err := s.db.WithContext(ctx).Where("owner = ?", owner).Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules for owner: %w", err)
	}
	return rules, nil
}

func (s *GormRuleStorage) ListRules(ctx context.Context) ([]*model.Rule, error) {
	var rules []*model.Rule
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (s *GormRuleStorage) ListHistory(ctx context.Context, ruleID string) ([]*model.RuleHistoryEntry, error) {
	var entries []*model.RuleHistoryEntry
	if err := s.db.WithContext(ctx).Where("rule_id = ?", ruleID).Order("version ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list rule history: %w", err)
	}
	return entries, nil
}

func (s *GormRuleStorage) IncrementUsage(ctx context.Context, ruleID string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.Rule{}).Where("id = ?", ruleID).
		UpdateColumns(map[string]any{
			"usage_count": gorm.Expr("usage_count + ?", 1),
			"last_used":   at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to bump usage: %w", err)
	}
	return nil
}

func translateWriteError(rule *model.Rule, op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &model.ConflictError{Owner: rule.Owner, Path: rule.Path, Method: rule.Method}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
