package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-backed configuration for the sync daemon.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		DBPath  string `yaml:"db_path"`
	} `yaml:"server"`
	Backend struct {
		// URL is the fixed automation webhook endpoint. A per-tenant
		// override delivered at login takes precedence for action calls.
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		PollSeconds    int    `yaml:"poll_seconds"`
	} `yaml:"backend"`
	Sync struct {
		// NameEditWindowSeconds suppresses server name facts after a local
		// edit for this many seconds.
		NameEditWindowSeconds int `yaml:"name_edit_window_seconds"`
		// ToggleExpiryTicks bounds how many polls a pending automation
		// toggle may stay optimistic before it is dropped.
		ToggleExpiryTicks int `yaml:"toggle_expiry_ticks"`
		BusinessHours     struct {
			OpenHour  int `yaml:"open_hour"`
			CloseHour int `yaml:"close_hour"`
		} `yaml:"business_hours"`
	} `yaml:"sync"`
	Maintenance struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
		// DeletionRetention is how long deletion windows are kept before
		// the maintenance job clears them (e.g. "168h").
		DeletionRetention string `yaml:"deletion_retention"`
	} `yaml:"maintenance"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	if c == nil {
		return ""
	}
	addr := c.Server.Address
	if strings.Contains(addr, ":") || c.Server.Port == 0 {
		return addr
	}
	return fmt.Sprintf("%s:%d", addr, c.Server.Port)
}

// ApplyDefaults fills unset values with the daemon defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = 15
	}
	if c.Backend.PollSeconds <= 0 {
		c.Backend.PollSeconds = 3
	}
	if c.Sync.NameEditWindowSeconds <= 0 {
		c.Sync.NameEditWindowSeconds = 30
	}
	if c.Sync.ToggleExpiryTicks <= 0 {
		c.Sync.ToggleExpiryTicks = 10
	}
	if c.Sync.BusinessHours.OpenHour == 0 && c.Sync.BusinessHours.CloseHour == 0 {
		c.Sync.BusinessHours.OpenHour = 8
		c.Sync.BusinessHours.CloseHour = 18
	}
	if c.Maintenance.DeletionRetention == "" {
		c.Maintenance.DeletionRetention = "168h"
	}
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ResolveConfigPath returns the config path to use: the explicit flag value
// when set, otherwise the LEADSYNC_CONFIG env var, otherwise the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv("LEADSYNC_CONFIG"); v != "" {
		return v
	}
	return flagVal
}
