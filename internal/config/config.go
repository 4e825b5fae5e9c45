// Package config handles loading and validating the huntdesk.toml configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Releases ReleasesConfig `toml:"releases"`
	Hunt     HuntConfig     `toml:"hunt"`
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
}

// BackendConfig points at the DFIR platform REST API.
type BackendConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
	// Timeout is the HTTP timeout in seconds (0 = http.Client default, no timeout).
	Timeout int `toml:"timeout"`
	// EnrichWorkers bounds concurrent enrichment lookups.
	EnrichWorkers int `toml:"enrich_workers"`
	// EnrichCacheSize is the number of enrichment results kept in memory.
	EnrichCacheSize int `toml:"enrich_cache_size"`
}

// ReleasesConfig configures the appliance release feed.
type ReleasesConfig struct {
	// Repo is "owner/name" on GitHub.
	Repo        string `toml:"repo"`
	APIURL      string `toml:"api_url"`
	GitHubToken string `toml:"github_token"`
	// Fallback is a URL or local file path holding a static copy of the releases JSON.
	Fallback string `toml:"fallback"`
}

// HuntConfig holds defaults for the hunting console.
type HuntConfig struct {
	Index    string `toml:"index"`
	Limit    int    `toml:"limit"`
	RulesDir string `toml:"rules_dir"`
}

// LogConfig mirrors logging.Config in TOML form.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// ServerConfig configures the local API.
type ServerConfig struct {
	Port int `toml:"port"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:             "http://localhost:8000/api",
			Timeout:         30,
			EnrichWorkers:   4,
			EnrichCacheSize: 1024,
		},
		Releases: ReleasesConfig{
			Repo:     "iyulab/huntdesk-ova",
			APIURL:   "https://api.github.com",
			Fallback: "assets/releases.json",
		},
		Hunt: HuntConfig{
			Index: "logs-*",
			Limit: 50,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Server: ServerConfig{Port: 8743},
	}
}

// Load reads a huntdesk.toml file and returns a validated Config.
// A missing file at the default path is not an error; defaults are used.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if required {
			return nil, fmt.Errorf("config file not found: %s\n  Create one with: cp huntdesk.example.toml huntdesk.toml", path)
		}
	}

	// Environment variable overrides for sensitive values
	if v := os.Getenv("HUNTDESK_API_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("HUNTDESK_API_TOKEN"); v != "" {
		cfg.Backend.Token = v
	}
	if v := os.Getenv("HUNTDESK_GITHUB_TOKEN"); v != "" {
		cfg.Releases.GitHubToken = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		return fmt.Errorf("backend.url must be http(s): %q", c.Backend.URL)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must be >= 0, got %d", c.Backend.Timeout)
	}
	if c.Backend.EnrichWorkers <= 0 {
		c.Backend.EnrichWorkers = 4
	}
	if c.Backend.EnrichCacheSize <= 0 {
		c.Backend.EnrichCacheSize = 1024
	}

	if c.Releases.Repo != "" && strings.Count(c.Releases.Repo, "/") != 1 {
		return fmt.Errorf("releases.repo must be owner/name, got %q", c.Releases.Repo)
	}
	c.Releases.APIURL = strings.TrimRight(c.Releases.APIURL, "/")

	if c.Hunt.Index == "" {
		c.Hunt.Index = "logs-*"
	}
	if c.Hunt.Limit <= 0 {
		c.Hunt.Limit = 50
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	case "":
		c.Log.Level = "info"
	default:
		return fmt.Errorf("unsupported log.level: %q", c.Log.Level)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}
