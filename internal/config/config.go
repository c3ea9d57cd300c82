// Package config provides YAML-based configuration loading for fieldops.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level fieldops configuration, loaded from fieldops.yaml.
type Config struct {
	BaseURL    string    `yaml:"base_url"`
	TimeoutSec int       `yaml:"timeout_sec"`
	Store      Store     `yaml:"store"`
	Chat       Chat      `yaml:"chat"`
	Notify     Notify    `yaml:"notify"`
	DevServer  DevServer `yaml:"devserver"`
}

// Store holds settings for the durable credential store.
type Store struct {
	Path string `yaml:"path"`
}

// Chat holds settings for the conversation polling loop.
type Chat struct {
	PollIntervalSec int `yaml:"poll_interval_sec"`
}

// Notify holds settings for the event notifier daemon.
type Notify struct {
	PollIntervalSec int     `yaml:"poll_interval_sec"`
	DigestCron      string  `yaml:"digest_cron"` // 5-field cron expression
	Discord         Discord `yaml:"discord"`
	Slack           Slack   `yaml:"slack"`
}

// Discord holds credentials for the Discord notify adapter.
type Discord struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Slack holds credentials for the Slack notify adapter.
type Slack struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DevServer holds settings for the local development backend.
type DevServer struct {
	Port        int    `yaml:"port"`
	Driver      string `yaml:"driver"` // "sqlite" or "mysql"
	DSN         string `yaml:"dsn"`
	Secret      string `yaml:"secret"` // JWT signing secret
	TokenTTLMin int    `yaml:"token_ttl_min"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields the defaults, so first-run works without any setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8055"
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = 30
	}
	if c.Store.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.Store.Path = filepath.Join(home, ".fieldops", "credentials.db")
	}
	if c.Chat.PollIntervalSec == 0 {
		c.Chat.PollIntervalSec = 5
	}
	if c.Notify.PollIntervalSec == 0 {
		c.Notify.PollIntervalSec = 15
	}
	if c.DevServer.Port == 0 {
		c.DevServer.Port = 8055
	}
	if c.DevServer.Driver == "" {
		c.DevServer.Driver = "sqlite"
	}
	if c.DevServer.DSN == "" && c.DevServer.Driver == "sqlite" {
		c.DevServer.DSN = "fieldops-dev.db"
	}
	if c.DevServer.Secret == "" {
		c.DevServer.Secret = "fieldops-dev-secret"
	}
	if c.DevServer.TokenTTLMin == 0 {
		c.DevServer.TokenTTLMin = 15
	}
}

// validate checks that all supplied fields are consistent.
func (c *Config) validate() error {
	var errs []string
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, "base_url must start with http:// or https://")
	}
	if c.TimeoutSec < 0 {
		errs = append(errs, "timeout_sec must not be negative")
	}
	if c.Chat.PollIntervalSec < 0 {
		errs = append(errs, "chat.poll_interval_sec must not be negative")
	}
	if c.Notify.PollIntervalSec < 0 {
		errs = append(errs, "notify.poll_interval_sec must not be negative")
	}
	if d := c.DevServer.Driver; d != "sqlite" && d != "mysql" {
		errs = append(errs, fmt.Sprintf("devserver.driver %q is not supported (sqlite, mysql)", d))
	}
	if c.DevServer.Driver == "mysql" && c.DevServer.DSN == "" {
		errs = append(errs, "devserver.dsn is required for the mysql driver")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
