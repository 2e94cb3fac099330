package main

import (
	"fmt"
	"os"
	"time"

	"autojudge/internal/common/cache"
	"autojudge/internal/common/db"
	"autojudge/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8086"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultMonitorDir      = "content/tmp"
	defaultContentDir      = "content"
	defaultFilesDir        = "content/files"
	defaultLeaderboardDir  = "content/leaderboards"
	defaultDockerImage     = "judge_sandbox_1"
	defaultPollInterval    = time.Second
	defaultRefillThreshold = 10
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// WorkerConfig holds the grading loop settings.
type WorkerConfig struct {
	// MonitorDir is polled for job descriptors.
	MonitorDir string `yaml:"monitorDir"`
	// ContentDir is bind-mounted into the sandbox container.
	ContentDir string `yaml:"contentDir"`
	// FilesDir stores submitted source files.
	FilesDir string `yaml:"filesDir"`
	// LeaderboardDir stores per-contest snapshot files.
	LeaderboardDir string `yaml:"leaderboardDir"`
	// DockerImage is the sandbox image tag.
	DockerImage string `yaml:"dockerImage"`
	// BuildImage builds the sandbox image from ContentDir at startup.
	BuildImage      bool          `yaml:"buildImage"`
	PollInterval    time.Duration `yaml:"pollInterval"`
	RefillThreshold int           `yaml:"refillThreshold"`
}

// LinterConfig holds static-analysis settings.
type LinterConfig struct {
	Enabled bool `yaml:"enabled"`
	// Commands maps file extensions to checker command lines.
	Commands map[string][]string `yaml:"commands"`
	// DensityPenalty scales how fast the score decays with findings
	// per source line.
	DensityPenalty float64 `yaml:"densityPenalty"`
}

// AppConfig holds judge-worker config.
type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Logger   logger.Config     `yaml:"logger"`
	Database db.MySQLConfig    `yaml:"database"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Worker   WorkerConfig      `yaml:"worker"`
	Linter   LinterConfig      `yaml:"linter"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Worker.MonitorDir == "" {
		cfg.Worker.MonitorDir = defaultMonitorDir
	}
	if cfg.Worker.ContentDir == "" {
		cfg.Worker.ContentDir = defaultContentDir
	}
	if cfg.Worker.FilesDir == "" {
		cfg.Worker.FilesDir = defaultFilesDir
	}
	if cfg.Worker.LeaderboardDir == "" {
		cfg.Worker.LeaderboardDir = defaultLeaderboardDir
	}
	if cfg.Worker.DockerImage == "" {
		cfg.Worker.DockerImage = defaultDockerImage
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = defaultPollInterval
	}
	if cfg.Worker.RefillThreshold <= 0 {
		cfg.Worker.RefillThreshold = defaultRefillThreshold
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
}
