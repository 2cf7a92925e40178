package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"habittracker/pkg/config"
)

// 存储驱动
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// OutboxConfig 事件分发配置，只在 postgres 驱动且配置了 MQ 时生效
type OutboxConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
}

type PaginationConfig struct {
	PageSize    int `yaml:"page_size"`
	MaxPageSize int `yaml:"max_page_size"`
}

type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server      config.ServerConfig `yaml:"server"`
	DB          config.DBConfig     `yaml:"db"`
	Redis       config.RedisConfig  `yaml:"redis"`
	JWT         config.JWTConfig    `yaml:"jwt"`
	MQ          config.MQConfig     `yaml:"mq"`
	Storage     StorageConfig       `yaml:"storage"`
	Outbox      OutboxConfig        `yaml:"outbox"`
	Pagination  PaginationConfig    `yaml:"pagination"`
	Idempotency IdempotencyConfig   `yaml:"idempotency"`
	Log         LogConfig           `yaml:"log"`
}

// Load 按 CONFIG_ENV 加载 config/ 下的配置
func Load() (*Config, error) {
	return LoadFrom(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
}

// LoadFrom 加载 base.yaml + <env>.yaml，再用环境变量覆盖
func LoadFrom(env, dir string) (*Config, error) {
	raw, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := config.Decode(raw, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideMQFromEnv(&cfg.MQ)
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if enabled := os.Getenv("OUTBOX_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Outbox.Enabled = b
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	if c.Pagination.PageSize <= 0 {
		c.Pagination.PageSize = 5
	}
	if c.Pagination.MaxPageSize <= 0 {
		c.Pagination.MaxPageSize = 50
	}
	if c.Idempotency.TTL <= 0 {
		c.Idempotency.TTL = 24 * time.Hour
	}
	if c.Outbox.Interval <= 0 {
		c.Outbox.Interval = 2 * time.Second
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.MaxRetries <= 0 {
		c.Outbox.MaxRetries = 5
	}
}

// Validate 检查启动所必需的配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}
