package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	Addr      string        `yaml:"addr" env:"TTT_ADDR" env-default:":8080"`
	LogLevel  string        `yaml:"log-level" env:"TTT_LOG_LEVEL" env-default:"info"`
	LogFormat string        `yaml:"log-format" env:"TTT_LOG_FORMAT" env-default:"json"`
	Heartbeat time.Duration `yaml:"sse-heartbeat" env:"TTT_SSE_HEARTBEAT" env-default:"15s"`
	Storage   Storage       `yaml:"storage"`
}

type Storage struct {
	Type  string `yaml:"type" env:"TTT_STORAGE" env-default:"memory"`
	Redis Redis  `yaml:"redis"`
}

type Redis struct {
	URL          string        `yaml:"url" env:"TTT_REDIS_URL" env-default:"redis://localhost:6379"`
	PoolSize     int           `yaml:"pool-size" env:"TTT_REDIS_POOL_SIZE" env-default:"10"`
	MinIdleConns int           `yaml:"min-idle-conns" env:"TTT_REDIS_MIN_IDLE" env-default:"2"`
	GameTTL      time.Duration `yaml:"game-ttl" env:"TTT_REDIS_GAME_TTL" env-default:"24h"`
}

// Load reads the YAML file at path when one is given, then applies the
// environment on top.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values cleanenv cannot check by itself.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Heartbeat <= 0 {
		return fmt.Errorf("sse heartbeat must be positive, got %s", c.Heartbeat)
	}
	return nil
}

// Level maps LogLevel to a slog level; unknown names mean info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
