// Package config provides the server configuration, loaded from a
// YAML, JSON or TOML file with environment overrides.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/effective-security/mcpbus/tools/tavily"
	"github.com/effective-security/x/configloader"
	"github.com/joeshaw/envdecode"
)

// Transport names
const (
	TransportNATS  = "nats"
	TransportRedis = "redis"
	TransportLocal = "local"
)

// Defaults
const (
	DefaultSubject  = "mcp.requests"
	DefaultNATSURL  = "nats://localhost:4222"
	DefaultRedisURL = "redis://localhost:6379/0"
	DefaultLogLevel = "INFO"
)

// LogLevels lists the accepted log_level values
var LogLevels = []string{"CRITICAL", "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG", "TRACE"}

// Config of the server
type Config struct {
	// Transport is one of nats, redis or local
	Transport string `json:"transport" yaml:"transport" toml:"transport"`
	// Subject the server listens on
	Subject string `json:"subject" yaml:"subject" toml:"subject"`
	// QueueGroup shares the subject between several instances
	QueueGroup string `json:"queue_group,omitempty" yaml:"queue_group,omitempty" toml:"queue_group"`
	// DrainTimeout is a duration string, like 30s
	DrainTimeout string `json:"drain_timeout,omitempty" yaml:"drain_timeout,omitempty" toml:"drain_timeout"`
	// LogLevel is one of LogLevels
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" toml:"log_level"`
	// EnableEcho registers the echo tool
	EnableEcho bool `json:"enable_echo,omitempty" yaml:"enable_echo,omitempty" toml:"enable_echo"`

	Server ServerConfig  `json:"server" yaml:"server" toml:"server"`
	NATS   NATSConfig    `json:"nats" yaml:"nats" toml:"nats"`
	Redis  RedisConfig   `json:"redis" yaml:"redis" toml:"redis"`
	Tavily tavily.Config `json:"tavily" yaml:"tavily" toml:"tavily"`
}

// ServerConfig is reported in initialize
type ServerConfig struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty" toml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty" toml:"version"`
}

// NATSConfig provides the NATS connection
type NATSConfig struct {
	URL  string `json:"url,omitempty" yaml:"url,omitempty" toml:"url"`
	Name string `json:"name,omitempty" yaml:"name,omitempty" toml:"name"`
}

// RedisConfig provides the Redis connection
type RedisConfig struct {
	URL    string `json:"url,omitempty" yaml:"url,omitempty" toml:"url"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix"`
}

// environment lists the variables that override the file values
type environment struct {
	Transport    string `env:"MCP_TRANSPORT"`
	Subject      string `env:"MCP_SUBJECT"`
	QueueGroup   string `env:"MCP_QUEUE_GROUP"`
	DrainTimeout string `env:"MCP_DRAIN_TIMEOUT"`
	LogLevel     string `env:"LOG_LEVEL"`
	NATSURL      string `env:"NATS_URL"`
	RedisURL     string `env:"REDIS_URL"`
	APIKey       string `env:"TAVILY_API_KEY"`
	BaseURL      string `env:"TAVILY_BASE_URL"`
}

// Default returns the configuration with defaults
func Default() *Config {
	return &Config{
		Transport:    TransportNATS,
		Subject:      DefaultSubject,
		DrainTimeout: mcp.DefaultDrainTimeout.String(),
		LogLevel:     DefaultLogLevel,
		Server: ServerConfig{
			Name:    mcp.DefaultServerName,
			Version: mcp.DefaultServerVersion,
		},
		NATS: NATSConfig{
			URL: DefaultNATSURL,
		},
		Redis: RedisConfig{
			URL: DefaultRedisURL,
		},
	}
}

// Load returns the validated configuration
func Load(file string) (*Config, error) {
	cfg, err := LoadFile(file)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile returns the configuration from the file, if provided,
// with the environment overrides applied. The result is not validated.
func LoadFile(file string) (*Config, error) {
	cfg := Default()
	if file != "" {
		if err := loadFile(file, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(file string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".toml":
		data, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, "failed to read config %s", file)
		}
		if _, err = toml.Decode(os.ExpandEnv(string(data)), cfg); err != nil {
			return errors.Wrapf(err, "failed to parse config %s", file)
		}
	default:
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return errors.WithMessagef(err, "failed to load config %s", file)
		}
	}
	return nil
}

// ApplyEnv overrides the values set in the environment
func (c *Config) ApplyEnv() error {
	var env environment
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return errors.Wrap(err, "failed to decode environment")
	}

	override(&c.Transport, env.Transport)
	override(&c.Subject, env.Subject)
	override(&c.QueueGroup, env.QueueGroup)
	override(&c.DrainTimeout, env.DrainTimeout)
	override(&c.LogLevel, env.LogLevel)
	override(&c.NATS.URL, env.NATSURL)
	override(&c.Redis.URL, env.RedisURL)
	override(&c.Tavily.APIKey, env.APIKey)
	override(&c.Tavily.BaseURL, env.BaseURL)
	return nil
}

func override(field *string, value string) {
	if value != "" {
		*field = value
	}
}

// Validate returns an error if the configuration can not be served
func (c *Config) Validate() error {
	if !slices.Contains([]string{TransportNATS, TransportRedis, TransportLocal}, c.Transport) {
		return errors.Newf("unsupported transport: %q, expected nats, redis or local", c.Transport)
	}
	if c.Subject == "" {
		return errors.New("subject is required")
	}
	if c.LogLevel != "" && !slices.Contains(LogLevels, strings.ToUpper(c.LogLevel)) {
		return errors.Newf("unsupported log level: %q", c.LogLevel)
	}
	if _, err := c.GetDrainTimeout(); err != nil {
		return err
	}
	return tavily.ValidateAPIKey(c.Tavily.APIKey)
}

// GetDrainTimeout returns the parsed drain timeout,
// or mcp.DefaultDrainTimeout when not set
func (c *Config) GetDrainTimeout() (time.Duration, error) {
	if c.DrainTimeout == "" {
		return mcp.DefaultDrainTimeout, nil
	}
	d, err := time.ParseDuration(c.DrainTimeout)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid drain_timeout")
	}
	if d <= 0 {
		return 0, errors.Newf("invalid drain_timeout: %s", c.DrainTimeout)
	}
	return d, nil
}
