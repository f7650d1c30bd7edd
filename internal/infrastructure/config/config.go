package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Pool      PoolConfig      `yaml:"pool"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Store     StoreConfig     `yaml:"store"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"HOST" yaml:"host"`
	Port string `envconfig:"PORT" yaml:"port"`
	// AllowOrigins lists the CORS origins allowed to reach the API.
	AllowOrigins []string `envconfig:"ALLOW_ORIGINS" yaml:"allow_origins"`
	// TargetsFile names the YAML inventory of dispatch targets.
	TargetsFile string `envconfig:"TARGETS_FILE" yaml:"targets_file"`
}

// WorkspaceConfig holds sandboxed-workspace configuration.
type WorkspaceConfig struct {
	// BaseDir is the directory under which every workspace root lives.
	BaseDir string `envconfig:"WORKSPACE_BASE_DIR" yaml:"base_dir"`
	// EscapePolicy selects how list/cd handle paths that resolve outside
	// the root: "clamp" degrades to the root, "reject" denies the request.
	EscapePolicy string `envconfig:"WORKSPACE_ESCAPE_POLICY" yaml:"escape_policy"`
	// ExecTimeout bounds ordinary workspace commands.
	ExecTimeout time.Duration `envconfig:"WORKSPACE_EXEC_TIMEOUT" yaml:"exec_timeout"`
	// InstallTimeout bounds known-slow package-install commands.
	InstallTimeout time.Duration `envconfig:"WORKSPACE_INSTALL_TIMEOUT" yaml:"install_timeout"`
}

// PoolConfig holds SSH session pool configuration.
type PoolConfig struct {
	// MaxSessionAge forces a reconnect regardless of liveness; long-lived
	// transports to third-party hosts degrade silently while still
	// reporting active.
	MaxSessionAge  time.Duration `envconfig:"POOL_MAX_SESSION_AGE" yaml:"max_session_age"`
	MaxIdle        time.Duration `envconfig:"POOL_MAX_IDLE" yaml:"max_idle"`
	ConnectTimeout time.Duration `envconfig:"POOL_CONNECT_TIMEOUT" yaml:"connect_timeout"`
	ConnectBackoff time.Duration `envconfig:"POOL_CONNECT_BACKOFF" yaml:"connect_backoff"`
	RetryBackoff   time.Duration `envconfig:"POOL_RETRY_BACKOFF" yaml:"retry_backoff"`
	// CleanupSchedule is a cron expression for the idle-session sweep.
	CleanupSchedule string `envconfig:"POOL_CLEANUP_SCHEDULE" yaml:"cleanup_schedule"`
	ExecTimeout     time.Duration `envconfig:"POOL_EXEC_TIMEOUT" yaml:"exec_timeout"`
	InstallTimeout  time.Duration `envconfig:"POOL_INSTALL_TIMEOUT" yaml:"install_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// StoreConfig holds metrics snapshot persistence configuration.
type StoreConfig struct {
	Path    string `envconfig:"STORE_PATH" yaml:"path"`
	Enabled bool   `envconfig:"STORE_ENABLED" yaml:"enabled"`
	// SnapshotSchedule is a cron expression for periodic metric sampling
	// of every known target.
	SnapshotSchedule string `envconfig:"STORE_SNAPSHOT_SCHEDULE" yaml:"snapshot_schedule"`
	// Retention bounds how long snapshots are kept.
	Retention time.Duration `envconfig:"STORE_RETENTION" yaml:"retention"`
}

// Load builds configuration in three layers: built-in defaults, the
// optional YAML file named by CONFIG_FILE, then environment variables.
// Environment always wins.
func Load() (*Config, error) {
	cfg := *Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Workspace.EscapePolicy {
	case "clamp", "reject":
	default:
		return fmt.Errorf("invalid escape policy %q (want clamp or reject)", c.Workspace.EscapePolicy)
	}
	return nil
}

// LoadOrDefault loads configuration, falling back to defaults on error.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the built-in defaults without consulting the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8000",
			AllowOrigins: []string{"*"},
			TargetsFile:  "targets.yaml",
		},
		Workspace: WorkspaceConfig{
			BaseDir:        "/var/lib/commandx/workspaces",
			EscapePolicy:   "clamp",
			ExecTimeout:    30 * time.Second,
			InstallTimeout: 5 * time.Minute,
		},
		Pool: PoolConfig{
			MaxSessionAge:   10 * time.Minute,
			MaxIdle:         30 * time.Minute,
			ConnectTimeout:  5 * time.Second,
			ConnectBackoff:  500 * time.Millisecond,
			RetryBackoff:    200 * time.Millisecond,
			CleanupSchedule: "*/5 * * * *",
			ExecTimeout:     30 * time.Second,
			InstallTimeout:  5 * time.Minute,
		},
		Logging:   LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{RequestsPerSecond: 100, Burst: 200, Enabled: true},
		Store: StoreConfig{
			Path:             "commandx.db",
			Enabled:          true,
			SnapshotSchedule: "@every 5m",
			Retention:        30 * 24 * time.Hour,
		},
	}
}
