// Package config provides TOML configuration file loading for the adapter.
// The configuration file lives at ~/.crealink/config.toml by default, but
// can be overridden with the --config flag. CLI flags always take
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the adapter configuration file structure.
type Config struct {
	// Host is the printer's address on the LAN.
	Host string `toml:"host"`

	// Port is the control channel port.
	// Default: 9999 (K1/FDM line); legacy resin printers use 18188.
	Port int `toml:"port"`

	// Password is the optional shared printer password. An empty password
	// is accepted by printers without one configured.
	Password string `toml:"password"`

	// JournalPath is the SQLite database for telemetry history.
	// Empty disables the journal. Default: ~/.crealink/crealink.db
	JournalPath string `toml:"journal_path"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level"`

	// ConnectTimeoutMs bounds each connection attempt. Default: 10000.
	ConnectTimeoutMs int `toml:"connect_timeout_ms"`

	// ReconnectInitialMs is the first reconnect backoff delay. Default: 1000.
	ReconnectInitialMs int `toml:"reconnect_initial_ms"`

	// ReconnectMaxMs caps the reconnect backoff delay. Default: 60000.
	ReconnectMaxMs int `toml:"reconnect_max_ms"`

	// StaleAfterMs is how long without a frame before the connection is
	// considered degraded and recycled. Default: 90000.
	StaleAfterMs int `toml:"stale_after_ms"`

	// CommandRate and CommandBurst bound outbound commands per second.
	// Defaults: 5 / 5.
	CommandRate  float64 `toml:"command_rate"`
	CommandBurst int     `toml:"command_burst"`
}

// DefaultConfigPath returns the default config file location:
// ~/.crealink/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".crealink", "config.toml"), nil
}

// Load reads and parses the config file at the given path, then fills in
// defaults for unset fields. A missing file is not an error: defaults are
// returned so the CLI can run on flags alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 9999
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ConnectTimeoutMs == 0 {
		c.ConnectTimeoutMs = 10000
	}
	if c.ReconnectInitialMs == 0 {
		c.ReconnectInitialMs = 1000
	}
	if c.ReconnectMaxMs == 0 {
		c.ReconnectMaxMs = 60000
	}
	if c.StaleAfterMs == 0 {
		c.StaleAfterMs = 90000
	}
	if c.CommandRate == 0 {
		c.CommandRate = 5
	}
	if c.CommandBurst == 0 {
		c.CommandBurst = 5
	}
}

// WriteDefault creates a config file with commented defaults at the given
// path. If the file already exists it is left untouched.
func WriteDefault(path, host string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // never overwrite
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# crealink configuration

# Printer address on the LAN
host = %q

# Control channel port: 9999 for K1/FDM printers, 18188 for legacy resin
port = 9999

# Optional shared printer password
password = ""
`, host)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
