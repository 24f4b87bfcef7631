package storage

import (
	"fmt"

	configs "fake_api_server/internal/infra/config"

	"github.com/google/wire"
	"gorm.io/gorm"
)

// StorageSet is a Wire provider set that includes all storage-related providers
var StorageSet = wire.NewSet(
	configs.NewDbOptionConfig,
	NewGormDB,
	NewMemoryStorage,
	NewRuleStorage,
	NewRequestLogStorage,
	NewRedisClient,
	NewRuleCache,
)

// NewRuleStorage 按 database.driver 选择规则存储
func NewRuleStorage(c *configs.AppConfig, db *gorm.DB, mem *MemoryStorage) RuleStorageIface {
	if c.DatabaseConfig.IsSQL() && db != nil {
		return NewGormRuleStorage(db)
	}
	return mem
}

// NewRequestLogStorage 按 requestLog.driver 选择请求日志存储
func NewRequestLogStorage(c *configs.AppConfig, db *gorm.DB, mem *MemoryStorage) (RequestLogStorageIface, func(), error) {
	switch c.RequestLogConfig.Driver {
	case configs.DriverGorm:
		if db == nil {
			return nil, nil, fmt.Errorf("requestLog driver gorm needs a SQL database")
		}
		return NewGormRequestLogStorage(db), func() {}, nil
	case configs.DriverSQLite:
		s, err := NewSQLiteRequestLogStorage(c.RequestLogConfig.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return mem, func() {}, nil
	}
}
