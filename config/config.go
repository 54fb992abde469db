// Package config provides configuration loading, validation and hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Run modes. Test mode unlocks destructive helpers and the auth bypass.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
	ModeTest        = "test"
)

// Storage drivers.
const (
	DriverMemory    = "memory"
	DriverDisk      = "disk"
	DriverCassandra = "cassandra"
)

// Config is the root configuration structure.
type Config struct {
	Mode    string        `yaml:"mode"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Uploads UploadsConfig `yaml:"uploads"`
	Session SessionConfig `yaml:"session"`
	Testing TestingConfig `yaml:"testing"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Docs    DocsConfig    `yaml:"docs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig selects and configures the record store.
type StorageConfig struct {
	Driver    string          `yaml:"driver"` // "memory", "disk" or "cassandra"
	DataDir   string          `yaml:"data_dir"`
	Cassandra CassandraConfig `yaml:"cassandra,omitempty"`
}

// CassandraConfig configures the cassandra driver.
type CassandraConfig struct {
	Hosts    []string      `yaml:"hosts"`
	Keyspace string        `yaml:"keyspace"`
	Timeout  time.Duration `yaml:"timeout"`
}

// UploadsConfig configures attachment storage.
type UploadsConfig struct {
	Dir string `yaml:"dir"`
}

// SessionConfig configures session tokens.
type SessionConfig struct {
	Secret    string        `yaml:"secret"`
	ExpiresIn time.Duration `yaml:"expires_in"`
}

// TestingConfig holds switches that must never be on in production.
type TestingConfig struct {
	// DisableAuthentication skips all access checks. Test mode only.
	DisableAuthentication bool `yaml:"disable_authentication"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DocsConfig configures the Swagger UI endpoint.
type DocsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file. Environment variables inside
// the file are expanded, then RECORDBASE_* variables override.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv builds configuration entirely from environment variables,
// for container deployments without a config file.
//
// Environment variables:
//
//	RECORDBASE_MODE             - production, development or test
//	RECORDBASE_SERVER_HOST      - bind host (default: 0.0.0.0)
//	RECORDBASE_SERVER_PORT      - bind port (default: 8000)
//	RECORDBASE_STORAGE_DRIVER   - memory, disk or cassandra
//	RECORDBASE_STORAGE_DATA_DIR - data directory for the disk driver
//	RECORDBASE_UPLOADS_DIR      - attachment directory
//	RECORDBASE_SESSION_SECRET   - token signing secret (required)
//	RECORDBASE_LOG_LEVEL        - debug, info, warn, error
//	RECORDBASE_LOG_FORMAT       - json or console
func LoadFromEnv() (*Config, error) {
	var cfg Config
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads from the file when it exists, otherwise from the
// environment.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	if os.Getenv("RECORDBASE_SESSION_SECRET") != "" {
		return LoadFromEnv()
	}
	return nil, fmt.Errorf("no configuration found: provide a config file or set RECORDBASE_SESSION_SECRET")
}

// Default returns a ready-to-run test configuration backed by the memory
// driver.
func Default() *Config {
	cfg := &Config{
		Mode: ModeTest,
		Session: SessionConfig{
			Secret: "test-secret",
		},
	}
	setDefaults(cfg)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECORDBASE_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("RECORDBASE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("RECORDBASE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RECORDBASE_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("RECORDBASE_STORAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("RECORDBASE_UPLOADS_DIR"); v != "" {
		cfg.Uploads.Dir = v
	}
	if v := os.Getenv("RECORDBASE_SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
	if v := os.Getenv("RECORDBASE_SESSION_EXPIRES_IN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.ExpiresIn = d
		}
	}
	if v := os.Getenv("RECORDBASE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RECORDBASE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = ModeProduction
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Storage.Driver == "" {
		if cfg.Mode == ModeTest {
			cfg.Storage.Driver = DriverMemory
		} else {
			cfg.Storage.Driver = DriverDisk
		}
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.Cassandra.Keyspace == "" {
		cfg.Storage.Cassandra.Keyspace = "recordbase"
	}
	if cfg.Storage.Cassandra.Timeout == 0 {
		cfg.Storage.Cassandra.Timeout = 10 * time.Second
	}
	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = "uploads"
	}
	if cfg.Session.ExpiresIn == 0 {
		cfg.Session.ExpiresIn = 60 * 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	switch cfg.Mode {
	case ModeProduction, ModeDevelopment, ModeTest:
	default:
		return fmt.Errorf("mode must be production, development or test, got %q", cfg.Mode)
	}
	switch cfg.Storage.Driver {
	case DriverMemory, DriverDisk:
	case DriverCassandra:
		if len(cfg.Storage.Cassandra.Hosts) == 0 {
			return fmt.Errorf("storage.cassandra.hosts is required for the cassandra driver")
		}
	default:
		return fmt.Errorf("storage.driver must be memory, disk or cassandra, got %q", cfg.Storage.Driver)
	}
	if cfg.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}
	if cfg.Testing.DisableAuthentication && cfg.Mode != ModeTest {
		return fmt.Errorf("testing.disable_authentication is only allowed in test mode")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", cfg.Logging.Format)
	}
	return nil
}
