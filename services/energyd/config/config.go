package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSecretEnv names the variable holding the JWT secret when the file
// does not set one.
const DefaultSecretEnv = "ENERGYD_JWT_SECRET"

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for energyd. Ledger parameters live
// in the TOML file referenced by Params.
type Config struct {
	ListenAddress   string               `yaml:"listen"`
	Params          string               `yaml:"params"`
	ReadTimeout     Duration             `yaml:"read_timeout"`
	ShutdownTimeout Duration             `yaml:"shutdown_timeout"`
	Auth            AuthConfig           `yaml:"auth"`
	RateLimits      map[string]RateLimit `yaml:"rate_limits"`
	Logging         LoggingConfig        `yaml:"logging"`
	Telemetry       TelemetryConfig      `yaml:"telemetry"`
}

type AuthConfig struct {
	HMACSecret    string   `yaml:"hmac_secret"`
	HMACSecretEnv string   `yaml:"hmac_secret_env"`
	Issuer        string   `yaml:"issuer"`
	Audience      string   `yaml:"audience"`
	ScopeClaim    string   `yaml:"scope_claim"`
	ClockSkew     Duration `yaml:"clock_skew"`
}

// RateLimit applies to one route group: "lock", "claim", "fees", "admin" or
// "read".
type RateLimit struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

type LoggingConfig struct {
	Format     string `yaml:"format"`
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	Headers  string `yaml:"headers"`
	Metrics  bool   `yaml:"metrics"`
	Traces   bool   `yaml:"traces"`
}

// Load reads the YAML file at path, applies defaults and resolves the JWT
// secret from the environment when the file leaves it empty.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		cfg.Auth.HMACSecret = strings.TrimSpace(os.Getenv(cfg.Auth.HMACSecretEnv))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8088"
	}
	if c.Params == "" {
		c.Params = "energy.toml"
	}
	if c.ReadTimeout.Duration <= 0 {
		c.ReadTimeout.Duration = 10 * time.Second
	}
	if c.ShutdownTimeout.Duration <= 0 {
		c.ShutdownTimeout.Duration = 5 * time.Second
	}
	if c.Auth.HMACSecretEnv == "" {
		c.Auth.HMACSecretEnv = DefaultSecretEnv
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks the daemon settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth: hmac secret required (set hmac_secret or %s)", c.Auth.HMACSecretEnv)
	}
	for group, limit := range c.RateLimits {
		switch group {
		case "lock", "claim", "fees", "admin", "read":
		default:
			return fmt.Errorf("rate_limits: unknown group %q", group)
		}
		if limit.RatePerSecond <= 0 || limit.Burst <= 0 {
			return fmt.Errorf("rate_limits.%s: rate and burst must be positive", group)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	return nil
}
