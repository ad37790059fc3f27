package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// SelfURL is the externally reachable base URL of this process; the
	// enqueue endpoint posts worker hints against it.
	SelfURL string `yaml:"self_url"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WorkerConfig struct {
	// Secret protects the worker and cleanup routes. Required outside dev.
	Secret string `yaml:"secret"`
	// SweepInterval is the scheduler cadence; SweepLimit the batch size.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepLimit    int           `yaml:"sweep_limit"`
	// HintWorkers bounds concurrent hint-triggered executions.
	HintWorkers int `yaml:"hint_workers"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	DefaultModel string `yaml:"default_model"`
}

type EnqueueConfig struct {
	// RatePerMinute caps enqueues per conversation; 0 disables limiting.
	RatePerMinute int `yaml:"rate_per_minute"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Worker   WorkerConfig   `yaml:"worker"`
	AI       AIConfig       `yaml:"ai"`
	Enqueue  EnqueueConfig  `yaml:"enqueue"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Environment overrides win over the file.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("WORKER_SECRET"); v != "" {
		cfg.Worker.Secret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIKey = v
	}

	cfg.Runtime.Dev = dev
	cfg.applyDefaults()

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url (or DATABASE_URL) is required")
	}
	if cfg.Worker.Secret == "" && !dev {
		return nil, fmt.Errorf("worker.secret (or WORKER_SECRET) is required outside dev mode")
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.SelfURL == "" {
		c.Server.SelfURL = fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Worker.SweepInterval <= 0 {
		c.Worker.SweepInterval = 5 * time.Second
	}
	if c.Worker.SweepLimit <= 0 {
		c.Worker.SweepLimit = 10
	}
	if c.Worker.HintWorkers <= 0 {
		c.Worker.HintWorkers = 4
	}
	if c.AI.DefaultModel == "" {
		c.AI.DefaultModel = "gpt-4o-mini"
	}
}
