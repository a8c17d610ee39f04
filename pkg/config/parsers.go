package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr    string
	DB      string
	Webhook string
	Config  string
	Set     map[string]bool
}

// EffectiveConfigResult holds the merged config plus resolved values the
// rest of the daemon needs at startup.
type EffectiveConfigResult struct {
	Config  *Config
	Addr    string
	DBPath  string
	Webhook string
	Source  string // "flags", "config", or "env"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8090", "HTTP listen address")
	dbPtr := flag.String("db", "./.leadsync", "Pebble DB path")
	hookPtr := flag.String("webhook", "", "Automation backend webhook URL")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Webhook: *hookPtr, Config: *cfgPtr, Set: setFlags}
}

// ParseConfigFile resolves the config path and loads the YAML file. It
// returns the parsed config, a boolean indicating whether the file was
// present, and an error for fatal parsing problems.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs reads environment variables into a fresh Config and
// reports whether any env override was present.
func ParseConfigEnvs() (*Config, bool) {
	envCfg := &Config{}
	envUsed := false

	if v := os.Getenv("LEADSYNC_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	}
	if v := os.Getenv("LEADSYNC_DB_PATH"); v != "" {
		envUsed = true
		envCfg.Server.DBPath = v
	}
	if v := os.Getenv("LEADSYNC_WEBHOOK_URL"); v != "" {
		envUsed = true
		envCfg.Backend.URL = v
	}
	if v := os.Getenv("LEADSYNC_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Backend.PollSeconds = n
		}
	}
	if v := os.Getenv("LEADSYNC_FETCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Backend.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("LEADSYNC_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			envCfg.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("LEADSYNC_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("LEADSYNC_MAINTENANCE_CRON"); v != "" {
		envUsed = true
		envCfg.Maintenance.Enabled = true
		envCfg.Maintenance.Cron = v
	}
	return envCfg, envUsed
}

// LoadEffectiveConfig merges the three sources. Explicit flags win over the
// config file, which wins over env. The merged config always has defaults
// applied.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envUsed bool) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	// If user explicitly passed --config, require the file to exist.
	if flags.Set["config"] && !fileExists {
		return res, fmt.Errorf("config file %s not found", flags.Config)
	}

	cfg := &Config{}
	src := "flags"
	switch {
	case fileExists:
		*cfg = *fileCfg
		src = "config"
	case envUsed:
		*cfg = *envCfg
		src = "env"
	}

	// env fills gaps the file left empty
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = envCfg.Backend.URL
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = envCfg.Server.DBPath
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = envCfg.Server.Address
		cfg.Server.Port = envCfg.Server.Port
	}

	// flags win
	if flags.Set["addr"] {
		cfg.Server.Address = flags.Addr
		cfg.Server.Port = parsePortFromAddr(flags.Addr)
	}
	if flags.Set["db"] {
		cfg.Server.DBPath = flags.DB
	}
	if flags.Set["webhook"] {
		cfg.Backend.URL = flags.Webhook
	}
	cfg.ApplyDefaults()

	res.Config = cfg
	res.Addr = cfg.Addr()
	res.DBPath = cfg.Server.DBPath
	res.Webhook = cfg.Backend.URL
	res.Source = src
	if res.Addr == "" {
		res.Addr = flags.Addr
	}
	if res.DBPath == "" {
		res.DBPath = flags.DB
	}
	return res, nil
}

// parsePortFromAddr extracts port integer from host:port string.
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
