// Package config loads server configuration from defaults, a YAML file,
// environment variables and command-line overrides, in that order of
// increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Sections are separated
// by a double underscore: VELOCITY_SERVER__MAX_CLIENTS sets
// server.max_clients.
const EnvPrefix = "VELOCITY_"

// Config holds the server configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Store  StoreConfig  `koanf:"store"`
	Log    LogConfig    `koanf:"log"`
	Admin  AdminConfig  `koanf:"admin"`
}

// ServerConfig configures the RESP listener.
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	MaxClients   int           `koanf:"max_clients"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// RateLimit is commands per second per connection; 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`
}

// StoreConfig configures the keyspace.
type StoreConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	AddSource bool   `koanf:"add_source"`
}

// AdminConfig configures the admin HTTP interface.
type AdminConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// Defaults returns the built-in configuration as flat koanf keys.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":          "0.0.0.0:6379",
		"server.max_clients":   10000,
		"server.read_timeout":  "0s",
		"server.write_timeout": "0s",
		"server.rate_limit":    0.0,
		"store.sweep_interval": "1s",
		"log.level":            "info",
		"log.format":           "json",
		"log.add_source":       false,
		"admin.enabled":        true,
		"admin.addr":           "127.0.0.1:8080",
	}
}

// Loader layers configuration sources on one koanf instance.
type Loader struct {
	k *koanf.Koanf
}

// NewLoader creates a Loader seeded with Defaults.
func NewLoader() (*Loader, error) {
	l := &Loader{k: koanf.New(".")}
	if err := l.LoadMap(Defaults()); err != nil {
		return nil, err
	}
	return l, nil
}

// LoadFile merges a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges VELOCITY_* environment variables.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}
	if err := l.k.Load(env.Provider(EnvPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap merges flat keys, used for defaults and flag overrides.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Config unmarshals and validates the merged configuration.
func (l *Loader) Config() (*Config, error) {
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Dump renders the merged configuration as YAML.
func (l *Loader) Dump() ([]byte, error) {
	return l.k.Marshal(yaml.Parser())
}

// Load builds the configuration from defaults, the file at path (if any),
// the environment and overrides.
func Load(path string, overrides map[string]any) (*Config, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	if err := l.LoadFile(path); err != nil {
		return nil, err
	}
	if err := l.LoadEnv(); err != nil {
		return nil, err
	}
	if err := l.LoadMap(overrides); err != nil {
		return nil, err
	}
	return l.Config()
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.MaxClients < 0 {
		errs = append(errs, fmt.Errorf("server.max_clients must be >= 0, got %d", c.Server.MaxClients))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be >= 0, got %s", c.Server.ReadTimeout))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be >= 0, got %s", c.Server.WriteTimeout))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must be >= 0, got %g", c.Server.RateLimit))
	}
	if c.Store.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("store.sweep_interval must be >= 0, got %s", c.Store.SweepInterval))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}

	if c.Admin.Enabled && c.Admin.Addr == "" {
		errs = append(errs, errors.New("admin.addr must not be empty when admin is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
