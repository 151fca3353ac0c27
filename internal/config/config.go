// Package config loads service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OneInX/Manifest-InX/internal/release"
)

// Environment overrides.
const (
	EnvHTTPAddr = "MICROINX_HTTP_ADDR"
	EnvGRPCAddr = "MICROINX_GRPC_ADDR"
	EnvAuditDB  = "MICROINX_AUDIT_DB"
	EnvLogLevel = "MICROINX_LOG_LEVEL"
	EnvBaseDir  = "MICROINX_BASE_DIR"
)

// Config holds all MicroInX service configuration.
type Config struct {
	Release ReleaseConfig `yaml:"release"`
	Server  ServerConfig  `yaml:"server"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
}

// ReleaseConfig controls where release artifacts are resolved and how often
// they are re-verified.
type ReleaseConfig struct {
	ManifestPath   string `yaml:"manifest_path"`
	BaseDir        string `yaml:"base_dir"`
	LayoutDir      string `yaml:"layout_dir"`
	VerifyEachCall bool   `yaml:"verify_each_call"`
	Watch          bool   `yaml:"watch"`
}

// ServerConfig configures the HTTP and gRPC listeners. An empty address
// disables that listener.
type ServerConfig struct {
	HTTPAddr          string `yaml:"http_addr"`
	GRPCAddr          string `yaml:"grpc_addr"`
	ReadHeaderTimeout string `yaml:"read_header_timeout"`
}

// AuditConfig enables the SQLite audit log when DBPath is set.
type AuditConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Release: ReleaseConfig{
			LayoutDir: release.DefaultLayoutDir,
		},
		Server: ServerConfig{
			HTTPAddr:          "127.0.0.1:8080",
			ReadHeaderTimeout: "5s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv(EnvGRPCAddr); v != "" {
		c.Server.GRPCAddr = v
	}
	if v := os.Getenv(EnvAuditDB); v != "" {
		c.Audit.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvBaseDir); v != "" {
		c.Release.BaseDir = v
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	if c.Release.LayoutDir == "" {
		return fmt.Errorf("config: release.layout_dir must not be empty")
	}
	if _, err := c.Server.HeaderTimeout(); err != nil {
		return err
	}
	return nil
}

// HeaderTimeout parses ReadHeaderTimeout. Empty means no timeout.
func (s ServerConfig) HeaderTimeout() (time.Duration, error) {
	if s.ReadHeaderTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.ReadHeaderTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: read_header_timeout: %w", err)
	}
	return d, nil
}

// ReleaseOptions converts the release section into verifier options.
func (c *Config) ReleaseOptions() release.Options {
	return release.Options{
		ManifestPath: c.Release.ManifestPath,
		BaseDir:      c.Release.BaseDir,
		LayoutDir:    c.Release.LayoutDir,
	}
}
