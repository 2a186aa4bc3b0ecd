// Package config provides the configuration schema and loader for the
// ripple example bot.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the bot.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the bot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Node    NodeConfig    `yaml:"node"`
	Server  ServerConfig  `yaml:"server"`
}

// DiscordConfig holds the platform connection settings.
type DiscordConfig struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// ShardCount is the gateway shard count. Zero means unsharded (1).
	ShardCount uint64 `yaml:"shard_count"`
}

// NodeConfig locates the audio node the bot plays through.
type NodeConfig struct {
	// Host is the audio node hostname or address.
	Host string `yaml:"host"`

	// Port is the audio node websocket port.
	Port uint16 `yaml:"port"`

	// Password is the node's authorization token.
	Password string `yaml:"password"`

	// TLS selects an encrypted connection to the node.
	TLS bool `yaml:"tls"`

	// WaitBudget caps how many unrelated voice events a connection wait
	// tolerates before timing out. Zero uses the library default.
	WaitBudget int `yaml:"wait_budget"`
}

// ServerConfig holds logging and metrics settings.
type ServerConfig struct {
	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on. Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}
	if cfg.Node.Host == "" {
		errs = append(errs, errors.New("node.host is required"))
	}
	if cfg.Node.Port == 0 {
		errs = append(errs, errors.New("node.port is required"))
	}
	if cfg.Node.WaitBudget < 0 {
		errs = append(errs, fmt.Errorf("node.wait_budget %d must not be negative", cfg.Node.WaitBudget))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	return errors.Join(errs...)
}
