// Package config handles nsprov tool configuration and the named values
// that drive provisioning.
//
// Tool configuration is loaded with overlay semantics:
//
//  1. Start with built-in defaults (embedded via go:embed from default.toml)
//  2. Overlay with config file values (if file exists)
//  3. CLI flags and environment variables override at runtime (handled by CLI layer)
//
// The TOML decoder only sets fields present in the file, leaving
// unspecified fields at their default values. If the config file exists
// but is invalid, Load returns an error rather than silently falling
// back to defaults.
//
// Named values (agent identities, interface names, history paths) are
// separate: they are read through a Values source and turned into an
// nsprov.ProvisioningConfig by Resolver.
package config

import (
	_ "embed"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultConfigTOML string

const (
	// DefaultConfigPath is the default path to the nsprov config file.
	DefaultConfigPath = "/etc/nsprov/nsprov.toml"
)

// Config is the top-level nsprov configuration.
type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Runtime   RuntimeConfig   `toml:"runtime"`
	Provision ProvisionConfig `toml:"provision"`
	Veth      VethConfig      `toml:"veth"`
	Keys      Keys            `toml:"keys"`
}

// LoggingConfig controls logging behaviour.
type LoggingConfig struct {
	// Level is the log spec (e.g., "info" or "info,manager=debug").
	Level string `toml:"level"`
	// Format is the output format: "text" or "json".
	Format string `toml:"format"`
	// Components provides an alternative way to specify per-component levels.
	Components map[string]string `toml:"components"`
}

// ToSpec converts the LoggingConfig to a log spec string.
// If Level is set, it takes precedence. Otherwise, Components are used.
func (c *LoggingConfig) ToSpec() string {
	if c.Level != "" {
		return c.Level
	}

	if len(c.Components) == 0 {
		return ""
	}

	parts := make([]string, 0, len(c.Components)+1)
	parts = append(parts, "info")

	for component, level := range c.Components {
		parts = append(parts, component+"="+level)
	}

	return strings.Join(parts, ",")
}

// RuntimeConfig locates runtime state.
type RuntimeConfig struct {
	Dir string `toml:"dir"`
}

// RollbackPolicy selects what happens to completed steps when
// provisioning fails.
type RollbackPolicy string

const (
	// RollbackNone leaves partial state in place.
	RollbackNone RollbackPolicy = "none"
	// RollbackCompensate undoes completed steps in reverse order.
	RollbackCompensate RollbackPolicy = "compensate"
)

// ProvisionConfig controls the provisioning run.
type ProvisionConfig struct {
	Rollback          RollbackPolicy `toml:"rollback"`
	AgentReadyTimeout duration       `toml:"agent_ready_timeout"`
}

// ReadyTimeout returns how long to wait for a launched agent to report
// ready.
func (c ProvisionConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.AgentReadyTimeout)
}

// VethConfig controls address allocation for veth channels.
type VethConfig struct {
	Pool          string `toml:"pool"`
	ChannelPrefix int    `toml:"channel_prefix"`
}

// PoolPrefix parses Pool.
func (c VethConfig) PoolPrefix() (netip.Prefix, error) {
	p, err := netip.ParsePrefix(c.Pool)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("veth pool %q: %w", c.Pool, err)
	}
	return p.Masked(), nil
}

// duration decodes TOML strings such as "10s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// DefaultConfig returns the default configuration from the embedded default.toml.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default.toml: %v", err))
	}
	return cfg
}

// Load reads configuration from a file path with overlay semantics.
//
// Behaviour:
//   - File missing: returns default configuration (no error)
//   - File exists and valid: overlays file values onto defaults
//   - File exists but invalid: returns error (fail fast)
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Provision.Rollback {
	case RollbackNone, RollbackCompensate:
	default:
		return fmt.Errorf("provision.rollback: unknown policy %q", c.Provision.Rollback)
	}
	if _, err := c.Veth.PoolPrefix(); err != nil {
		return err
	}
	if c.Veth.ChannelPrefix < 8 || c.Veth.ChannelPrefix > 30 {
		return fmt.Errorf("veth.channel_prefix: %d out of range 8..30", c.Veth.ChannelPrefix)
	}
	return c.Keys.Validate()
}
