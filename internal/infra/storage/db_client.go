package storage

import (
	"fmt"
	"log"
	"strings"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGormDB 按 database.driver 打开连接并迁移表结构；memory 驱动返回 nil
func NewGormDB(c *configs.AppConfig, opt *configs.DatabaseOptionConfig) (*gorm.DB, func(), error) {
	if !c.DatabaseConfig.IsSQL() {
		return nil, func() {}, nil
	}

	var dialector gorm.Dialector
	dsn := c.DatabaseConfig.GetDSN()
	switch c.DatabaseConfig.Driver {
	case configs.DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		dialector = mysql.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(opt),
		TranslateError: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opt.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opt.MaxOpenConns)
	if opt.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opt.ConnMaxLifetime)
	}
	if opt.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opt.ConnMaxIdleTime)
	}

	if err := AutoMigrate(db); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	utils.GetLogger().WithFields(logrus.Fields{
		"driver": c.DatabaseConfig.Driver,
		"host":   c.DatabaseConfig.Host,
		"db":     c.DatabaseConfig.Database,
	}).Info("Successfully connected to database")

	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			utils.GetLogger().WithError(err).Warn("close database")
		}
	}
	return db, cleanup, nil
}

// AutoMigrate 创建或更新规则、历史、请求日志表
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Rule{}, &model.RuleHistoryEntry{}, &model.RequestLog{}); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

func newGormLogger(opt *configs.DatabaseOptionConfig) logger.Interface {
	level := logger.Warn
	switch strings.ToLower(opt.LogLevel) {
	case "silent":
		level = logger.Silent
	case "error":
		level = logger.Error
	case "info":
		level = logger.Info
	}
	slow := opt.SlowThreshold
	if slow == 0 {
		slow = 200 * time.Millisecond
	}
	return logger.New(
		log.New(utils.GetLogger().WriterLevel(logrus.InfoLevel), "", 0),
		logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}
