// Package config 负责加载应用配置
// 配置来源优先级：环境变量(JOURNAL_前缀) > 配置文件 > 默认值，.env文件中的变量视同环境变量
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/weiwangfds/scijournal/internal/logger"
)

// EnvPrefix 环境变量前缀，例如 JOURNAL_API_BASE_URL
const EnvPrefix = "JOURNAL"

// Config 应用配置
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	API          APIConfig          `mapstructure:"api"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Notification NotificationConfig `mapstructure:"notification"`
	Log          logger.Config      `mapstructure:"log"`
	Server       ServerConfig       `mapstructure:"server"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Language 界面语言 (en-US, zh-CN)
	Language string `mapstructure:"language"`
}

// APIConfig 远端接口配置
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	// RateLimit 每秒请求数，0表示不限制
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// ClearTokenOnUnauthorized 携带令牌的请求收到401时清除令牌
	ClearTokenOnUnauthorized bool `mapstructure:"clear_token_on_unauthorized"`
}

// StorageConfig 本地持久化存储配置
type StorageConfig struct {
	// Driver 存储驱动 (sqlite, memory)
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// Watch 监听存储文件变化并重新加载会话和偏好
	Watch bool `mapstructure:"watch"`
}

// CacheConfig 查询缓存配置
type CacheConfig struct {
	// KeepUnusedFor 无订阅者的缓存条目保留时长，0表示不回收
	KeepUnusedFor time.Duration `mapstructure:"keep_unused_for"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	DefaultDuration time.Duration `mapstructure:"default_duration"`
}

// DatabaseConfig 开发服务器数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// ServerConfig 开发服务器配置
type ServerConfig struct {
	Port           int            `mapstructure:"port"`
	Database       DatabaseConfig `mapstructure:"database"`
	JWTSecret      string         `mapstructure:"jwt_secret"`
	JWTExpiry      time.Duration  `mapstructure:"jwt_expiry"`
	EnableHTTP2    bool           `mapstructure:"enable_http2"`
	RateLimit      float64        `mapstructure:"rate_limit"`
	RateLimitBurst int            `mapstructure:"rate_limit_burst"`
	ReadTimeout    time.Duration  `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration  `mapstructure:"write_timeout"`
	CORSOrigins    []string       `mapstructure:"cors_origins"`
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.language", "en-US")

	v.SetDefault("api.base_url", "http://localhost:3000/api")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.user_agent", "scijournal-cli/1.0")
	v.SetDefault("api.rate_limit", 0.0)
	v.SetDefault("api.rate_limit_burst", 5)
	v.SetDefault("api.clear_token_on_unauthorized", true)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", defaultStorePath())
	v.SetDefault("storage.watch", false)

	v.SetDefault("cache.keep_unused_for", 60*time.Second)

	v.SetDefault("notification.default_duration", 4000*time.Millisecond)

	logDefaults := logger.DefaultConfig()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.output", logDefaults.Output)
	v.SetDefault("log.file_path", logDefaults.FilePath)

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.database.driver", "sqlite")
	v.SetDefault("server.database.dsn", "journal_server.db")
	v.SetDefault("server.database.max_idle_conns", 1)
	v.SetDefault("server.database.max_open_conns", 1)
	v.SetDefault("server.database.conn_max_lifetime", 3600)
	v.SetDefault("server.jwt_secret", "dev-secret-change-me")
	v.SetDefault("server.jwt_expiry", 24*time.Hour)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
}

// defaultStorePath 本地存储默认位于用户目录下
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "scijournal.db"
	}
	return filepath.Join(home, ".scijournal", "store.db")
}

// Load 加载配置
// 参数:
//   - path: 配置文件路径，为空时在当前目录和 $HOME/.scijournal 中查找 journal.yaml
//
// 返回值:
//   - *Config: 配置
//   - error: 显式指定的配置文件不存在或解析失败、配置校验失败
func Load(path string) (*Config, error) {
	// .env文件不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("journal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".scijournal"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative, got %v", c.API.RateLimit)
	}
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.DSN == "" {
		return errors.New("storage.dsn must not be empty for sqlite")
	}
	if c.Cache.KeepUnusedFor < 0 {
		return fmt.Errorf("cache.keep_unused_for must not be negative, got %s", c.Cache.KeepUnusedFor)
	}
	if c.Notification.DefaultDuration <= 0 {
		return fmt.Errorf("notification.default_duration must be positive, got %s", c.Notification.DefaultDuration)
	}
	return nil
}
