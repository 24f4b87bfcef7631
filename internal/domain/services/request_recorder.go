package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"fake_api_server/internal/domain/iface"
	model "fake_api_server/internal/domain/model/mock_rule"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/internal/infra/repo"
	"fake_api_server/internal/infra/storage"
	"fake_api_server/utils"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

// RequestRecorderIface 异步记录调用并累计使用次数，失败只记日志
type RequestRecorderIface interface {
	Record(entry *model.RequestLog)
}

type RequestRecorder struct {
	logStorage   storage.RequestLogStorageIface
	ruleRepo     repo.RuleRepositoryIface
	pool         *ants.Pool
	metrics      *Metrics
	maxBodyBytes int
}

var (
	_ RequestRecorderIface   = (*RequestRecorder)(nil)
	_ iface.RequestLogService = (*RequestRecorder)(nil)
)

func NewRequestRecorder(c *configs.AppConfig, logStorage storage.RequestLogStorageIface, ruleRepo repo.RuleRepositoryIface, metrics *Metrics) (*RequestRecorder, func(), error) {
	pool, err := ants.NewPool(c.RequestLogConfig.PoolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create recorder pool: %w", err)
	}
	rec := &RequestRecorder{
		logStorage:   logStorage,
		ruleRepo:     ruleRepo,
		pool:         pool,
		metrics:      metrics,
		maxBodyBytes: c.RequestLogConfig.MaxBodyBytes,
	}
	cleanup := func() {
		// 等待在途日志写完
		if err := pool.ReleaseTimeout(5 * time.Second); err != nil {
			utils.GetLogger().WithError(err).Warn("request recorder did not drain")
		}
	}
	return rec, cleanup, nil
}

// Record 提交到协程池；池满时丢弃
func (r *RequestRecorder) Record(entry *model.RequestLog) {
	entry.Body = truncateBody(entry.Body, r.maxBodyBytes)

	err := r.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		log := utils.GetLogger().WithFields(logrus.Fields{"rule_id": entry.RuleID})
		if err := r.logStorage.SaveRequestLog(ctx, entry); err != nil {
			log.WithError(err).Warn("failed to save request log")
		}
		if err := r.ruleRepo.IncrementUsage(ctx, entry.RuleID, entry.Timestamp); err != nil {
			log.WithError(err).Warn("failed to bump rule usage")
		}
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.DroppedLogs.Inc()
		}
		utils.GetLogger().WithError(err).WithField("rule_id", entry.RuleID).Warn("drop request log")
	}
}

// ListRequestLogs 只能查询自己规则的日志
func (r *RequestRecorder) ListRequestLogs(ctx context.Context, owner, ruleID string, limit int) ([]*model.RequestLog, error) {
	rule, err := r.ruleRepo.FindByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.Owner != owner {
		return nil, &model.NotFoundError{RuleID: ruleID}
	}
	logs, err := r.logStorage.ListRequestLogs(ctx, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list request logs: %w", err)
	}
	return logs, nil
}

// truncateBody 截断到 limit 字节以内，退回到 UTF-8 字符边界
func truncateBody(body string, limit int) string {
	if limit <= 0 || len(body) <= limit {
		return body
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
