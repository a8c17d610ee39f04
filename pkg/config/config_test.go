package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Backend.TimeoutSeconds != 15 || c.Backend.PollSeconds != 3 {
		t.Fatalf("backend defaults: %+v", c.Backend)
	}
	if c.Sync.NameEditWindowSeconds != 30 || c.Sync.ToggleExpiryTicks != 10 {
		t.Fatalf("sync defaults: %+v", c.Sync)
	}
	if c.Sync.BusinessHours.OpenHour != 8 || c.Sync.BusinessHours.CloseHour != 18 {
		t.Fatalf("business hours defaults: %+v", c.Sync.BusinessHours)
	}
	if c.Maintenance.DeletionRetention != "168h" {
		t.Fatalf("retention default: %q", c.Maintenance.DeletionRetention)
	}
}

func TestAddr(t *testing.T) {
	var c Config
	c.Server.Address = "127.0.0.1"
	c.Server.Port = 8090
	if got := c.Addr(); got != "127.0.0.1:8090" {
		t.Fatalf("addr: %q", got)
	}
	c.Server.Address = ":9000"
	if got := c.Addr(); got != ":9000" {
		t.Fatalf("addr with colon: %q", got)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  address: "0.0.0.0"
  port: 8090
  db_path: "/var/lib/leadsync"
backend:
  url: "https://hook.example/webhook"
  poll_seconds: 5
sync:
  name_edit_window_seconds: 45
rate_limit:
  rps: 20
  burst: 40
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.URL != "https://hook.example/webhook" || cfg.Backend.PollSeconds != 5 {
		t.Fatalf("backend: %+v", cfg.Backend)
	}
	if cfg.Sync.NameEditWindowSeconds != 45 {
		t.Fatalf("sync: %+v", cfg.Sync)
	}
	if cfg.RateLimit.RPS != 20 || cfg.RateLimit.Burst != 40 {
		t.Fatalf("rate limit: %+v", cfg.RateLimit)
	}
}

func TestLoadEffectiveConfigPrecedence(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.DBPath = "/from/file"
	fileCfg.Backend.URL = "https://file.example"

	envCfg := &Config{}
	envCfg.Server.Address = "envhost"
	envCfg.Backend.URL = "https://env.example"

	flags := Flags{
		Addr:    ":7000",
		DB:      "./flagdb",
		Webhook: "https://flag.example",
		Set:     map[string]bool{"webhook": true},
	}

	eff, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if eff.Source != "config" {
		t.Fatalf("source: %q", eff.Source)
	}
	// explicit flag beats the file
	if eff.Webhook != "https://flag.example" {
		t.Fatalf("webhook: %q", eff.Webhook)
	}
	// file value survives when no flag was set
	if eff.DBPath != "/from/file" {
		t.Fatalf("db path: %q", eff.DBPath)
	}
	// env fills gaps the file left empty
	if eff.Config.Server.Address != "envhost" {
		t.Fatalf("address: %q", eff.Config.Server.Address)
	}
	// defaults applied on the merged result
	if eff.Config.Backend.PollSeconds != 3 {
		t.Fatalf("poll default missing: %d", eff.Config.Backend.PollSeconds)
	}
}

func TestLoadEffectiveConfigMissingExplicitFile(t *testing.T) {
	flags := Flags{Config: "/no/such/file.yaml", Set: map[string]bool{"config": true}}
	if _, err := LoadEffectiveConfig(flags, &Config{}, false, &Config{}, false); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}
