// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port          int    `yaml:"port"`
	AdminSecret   string `yaml:"admin_secret"`   // HMAC secret for admin session tokens
	AdminPassword string `yaml:"admin_password"` // shared password for /admin/login
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GatewayConfig struct {
	BaseURL       string        `yaml:"base_url"`
	AccessToken   string        `yaml:"access_token"`
	Sandbox       bool          `yaml:"sandbox"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"` // per-charge gateway deadline
	SuccessURL    string        `yaml:"success_url"`
	FailureURL    string        `yaml:"failure_url"`
	PendingURL    string        `yaml:"pending_url"`
}

type BillingConfig struct {
	MinPriceCents int64 `yaml:"min_price_cents"` // sane-range guard on quoted plans
	MaxPriceCents int64 `yaml:"max_price_cents"` // 0 = no upper bound
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Billing   BillingConfig   `yaml:"billing"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Gateway.SubmitTimeout <= 0 {
		cfg.Gateway.SubmitTimeout = 25 * time.Second
	}
	if cfg.Billing.MinPriceCents <= 0 {
		cfg.Billing.MinPriceCents = 100
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = time.Minute
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 10 * time.Minute
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Gateway.AccessToken == "" && !dev {
		return nil, errors.New("gateway.access_token is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
