// config/app_config.go
package configs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig 服务配置
type AppConfig struct {
	Server               ServerConfig         `yaml:"server"`
	Log                  LogConfig            `yaml:"log"`
	DatabaseConfig       DatabaseConfig       `yaml:"database"`
	DatabaseOptionConfig DatabaseOptionConfig `yaml:"databaseConfig"`
	RedisConfig          RedisConfig          `yaml:"redis"`
	RuleRepoConfig       RuleRepoConfig       `yaml:"ruleRepo"`
	RequestLogConfig     RequestLogConfig     `yaml:"requestLog"`
	LivenessConfig       LivenessConfig       `yaml:"liveness"`
	AuthConfig           AuthConfig           `yaml:"auth"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AdminPrefix     string        `yaml:"adminPrefix"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

type LogConfig struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// RuleRepoConfig 封装 ruleRepoImpl 的配置参数
type RuleRepoConfig struct {
	RedisCacheRetryCount int           `json:"redisCacheRetryCount" yaml:"redisCacheRetryCount"`
	RedisCacheRetryDelay time.Duration `json:"redisCacheRetryDelay" yaml:"redisCacheRetryDelay"`
	SaveRuleDBRetryCount int           `json:"saveRuleDBRetryCount" yaml:"saveRuleDBRetryCount"`
	SaveRuleDBRetryDelay time.Duration `json:"saveRuleDBRetryDelay" yaml:"saveRuleDBRetryDelay"`
	CacheUpdatePoolSize  int           `json:"cacheUpdatePoolSize" yaml:"cacheUpdatePoolSize"`
}

type RequestLogConfig struct {
	Driver       string `yaml:"driver"`
	SQLitePath   string `yaml:"sqlitePath"`
	PoolSize     int    `yaml:"poolSize"`
	MaxBodyBytes int    `yaml:"maxBodyBytes"`
}

type LivenessConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	// BaseURL 探活请求访问本进程的地址，为空时由 server.addr 推导
	BaseURL string `yaml:"baseURL"`
}

type AuthConfig struct {
	Mode      string `yaml:"mode"` // jwt | header
	JWTSecret string `yaml:"jwtSecret"`
	Header    string `yaml:"header"`
}

// LoadAppConfig 加载配置
func LoadAppConfig() (*AppConfig, error) {
	// .env is optional
	_ = godotenv.Load()
	return LoadAppConfigFrom(getConfigPath())
}

// LoadAppConfigFrom reads, defaults and validates the config file at path.
func LoadAppConfigFrom(path string) (*AppConfig, error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := yaml.Unmarshal(configFile, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func NewRuleRepoConfig(c *AppConfig) *RuleRepoConfig {
	return &c.RuleRepoConfig
}

func NewDbOptionConfig(c *AppConfig) *DatabaseOptionConfig {
	return &c.DatabaseOptionConfig
}

// getConfigPath 获取配置文件路径
func getConfigPath() string {
	if path := os.Getenv("FAKEAPI_CONFIG_PATH"); path != "" {
		return path
	}

	env := os.Getenv("FAKEAPI_ENV")
	if env == "" {
		env = "local"
	}

	return fmt.Sprintf("config/fake_api.%s.yaml", env)
}

func (c *AppConfig) applyEnv() {
	if secret := os.Getenv("FAKEAPI_JWT_SECRET"); secret != "" {
		c.AuthConfig.JWTSecret = secret
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.AdminPrefix == "" {
		c.Server.AdminPrefix = "/_admin"
	}
	c.Server.AdminPrefix = "/" + strings.Trim(c.Server.AdminPrefix, "/")
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Rules may carry artificial delays.
		c.Server.WriteTimeout = 2 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 4 << 20
	}

	if c.DatabaseConfig.Driver == "" {
		c.DatabaseConfig.Driver = DriverMemory
	}

	repo := &c.RuleRepoConfig
	if repo.RedisCacheRetryCount <= 0 {
		repo.RedisCacheRetryCount = 3
	}
	if repo.RedisCacheRetryDelay == 0 {
		repo.RedisCacheRetryDelay = 50 * time.Millisecond
	}
	if repo.SaveRuleDBRetryCount <= 0 {
		repo.SaveRuleDBRetryCount = 3
	}
	if repo.SaveRuleDBRetryDelay == 0 {
		repo.SaveRuleDBRetryDelay = 100 * time.Millisecond
	}
	if repo.CacheUpdatePoolSize <= 0 {
		repo.CacheUpdatePoolSize = 16
	}
	if c.RedisConfig.RuleTTL == 0 {
		c.RedisConfig.RuleTTL = 10 * time.Minute
	}

	if c.RequestLogConfig.Driver == "" {
		if c.DatabaseConfig.IsSQL() {
			c.RequestLogConfig.Driver = DriverGorm
		} else {
			c.RequestLogConfig.Driver = DriverMemory
		}
	}
	if c.RequestLogConfig.PoolSize <= 0 {
		c.RequestLogConfig.PoolSize = 64
	}
	if c.RequestLogConfig.MaxBodyBytes <= 0 {
		c.RequestLogConfig.MaxBodyBytes = 64 << 10
	}

	if c.LivenessConfig.Interval == 0 {
		c.LivenessConfig.Interval = 10 * time.Second
	}
	if c.LivenessConfig.Timeout == 0 {
		c.LivenessConfig.Timeout = 3 * time.Second
	}
	if c.LivenessConfig.Concurrency <= 0 {
		c.LivenessConfig.Concurrency = 8
	}
	if c.LivenessConfig.BaseURL == "" {
		addr := c.Server.Addr
		if strings.HasPrefix(addr, ":") {
			addr = "127.0.0.1" + addr
		}
		c.LivenessConfig.BaseURL = "http://" + addr
	}

	if c.AuthConfig.Mode == "" {
		c.AuthConfig.Mode = "jwt"
	}
	if c.AuthConfig.Header == "" {
		c.AuthConfig.Header = "X-User-Id"
	}
}

// validate 验证配置
func (c *AppConfig) validate() error {
	db := c.DatabaseConfig
	switch db.Driver {
	case DriverMemory:
	case DriverMySQL, DriverPostgres:
		if db.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if db.Port == 0 {
			return fmt.Errorf("database port is required")
		}
		if db.Username == "" {
			return fmt.Errorf("database username is required")
		}
		if db.Database == "" {
			return fmt.Errorf("database name is required")
		}

		dbConfig := c.DatabaseOptionConfig
		if dbConfig.MaxIdleConns <= 0 {
			return fmt.Errorf("maxIdleConns must be positive")
		}
		if dbConfig.MaxOpenConns <= 0 {
			return fmt.Errorf("maxOpenConns must be positive")
		}
		if dbConfig.MaxOpenConns < dbConfig.MaxIdleConns {
			return fmt.Errorf("maxOpenConns must be greater than or equal to maxIdleConns")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", db.Driver)
	}

	switch c.RequestLogConfig.Driver {
	case DriverMemory:
	case DriverGorm:
		if !db.IsSQL() {
			return fmt.Errorf("requestLog driver gorm requires a mysql or postgres database")
		}
	case DriverSQLite:
		if c.RequestLogConfig.SQLitePath == "" {
			return fmt.Errorf("requestLog sqlitePath is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported requestLog driver %q", c.RequestLogConfig.Driver)
	}

	if c.RedisConfig.Enabled && c.RedisConfig.Host == "" {
		return fmt.Errorf("redis host is required when redis is enabled")
	}

	switch c.AuthConfig.Mode {
	case "jwt":
		if strings.TrimSpace(c.AuthConfig.JWTSecret) == "" {
			return fmt.Errorf("auth jwtSecret is required in jwt mode (or set FAKEAPI_JWT_SECRET)")
		}
	case "header":
	default:
		return fmt.Errorf("unsupported auth mode %q", c.AuthConfig.Mode)
	}

	return nil
}
