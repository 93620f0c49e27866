// Package config provides configuration management for the debug engine.
//
// Configuration controls:
//   - Controller endpoint: where the engine dials the debug controller
//   - Skip patterns: files treated as debugger support code (never halted in)
//   - Default variable name filters per scope
//   - Passive mode and the call-trace default
//
// Configuration can be loaded from a JSON file or use sensible defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/calebgr/tracedbg/internal/errors"
)

// Config holds the engine configuration
type Config struct {
	// Controller endpoint
	Host string `json:"host"`
	Port int    `json:"port"`

	// Passive indicates the engine was started by the program under debug
	// rather than by the controller. Step-quit terminates with status 42
	// in this mode.
	Passive bool `json:"passive"`

	// SkipPrefixes lists path prefixes of the debugger's own support code.
	// Line halts are suppressed in matching files; call/return events still
	// maintain the frame stack and raise events are never suppressed.
	SkipPrefixes []string `json:"skipPrefixes"`

	// LocalsFilter and GlobalsFilter are name patterns excluded from
	// variable dumps until overridden by a set-filter command.
	LocalsFilter  []string `json:"localsFilter"`
	GlobalsFilter []string `json:"globalsFilter"`

	// CallTrace enables call/return trace reporting from session start.
	CallTrace bool `json:"callTrace"`

	// MaxLineLength bounds inbound protocol lines.
	MaxLineLength int `json:"maxLineLength"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:          "127.0.0.1",
		Port:          42424,
		MaxLineLength: 1 << 20,
		SkipPrefixes: []string{
			"<", // dynamically generated code has no real file
		},
	}
}

// LoadConfig loads configuration from a JSON file, merged over defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.CodeConfigInvalid, fmt.Sprintf("invalid config %s", path), err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.Wrap(errors.CodeConfigInvalid,
			fmt.Sprintf("invalid config %s: port %d out of range", path, cfg.Port), nil)
	}

	return cfg, nil
}

// Address returns the controller endpoint in host:port form.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ShouldSkip reports whether file belongs to the debugger's support code.
func (c *Config) ShouldSkip(file string) bool {
	for _, p := range c.SkipPrefixes {
		if strings.HasPrefix(file, p) {
			return true
		}
	}
	return false
}

// ScopeFilter returns the default name filter for the given variable scope.
func (c *Config) ScopeFilter(scope int) []string {
	if scope == 0 {
		return c.LocalsFilter
	}
	return c.GlobalsFilter
}
