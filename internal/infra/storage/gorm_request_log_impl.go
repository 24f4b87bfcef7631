package storage

import (
	"context"
	"fmt"

	model "fake_api_server/internal/domain/model/mock_rule"

	"gorm.io/gorm"
)

// GormRequestLogStorage 请求日志与规则同库
type GormRequestLogStorage struct {
	db *gorm.DB
}

func NewGormRequestLogStorage(db *gorm.DB) *GormRequestLogStorage {
	return &GormRequestLogStorage{db: db}
}

var _ RequestLogStorageIface = (*GormRequestLogStorage)(nil)

func (s *GormRequestLogStorage) SaveRequestLog(ctx context.Context, entry *model.RequestLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save request log: %w", err)
	}
	return nil
}

func (s *GormRequestLogStorage) ListRequestLogs(ctx context.Context, ruleID string, limit int) ([]*model.RequestLog, error) {
	var logs []*model.RequestLog
	err := s.db.WithContext(ctx).Where("rule_id = ?", ruleID).
		Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list request logs: %w", err)
	}
	return logs, nil
}
