package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Parse tests ---

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8055" {
		t.Errorf("base url = %q, want default", cfg.BaseURL)
	}
	if cfg.TimeoutSec != 30 {
		t.Errorf("timeout = %d, want 30", cfg.TimeoutSec)
	}
	if cfg.Chat.PollIntervalSec != 5 {
		t.Errorf("chat poll interval = %d, want 5", cfg.Chat.PollIntervalSec)
	}
	if cfg.Notify.PollIntervalSec != 15 {
		t.Errorf("notify poll interval = %d, want 15", cfg.Notify.PollIntervalSec)
	}
	if cfg.Store.Path == "" {
		t.Error("store path should default to a home-relative location")
	}
	if cfg.DevServer.Driver != "sqlite" {
		t.Errorf("devserver driver = %q, want sqlite", cfg.DevServer.Driver)
	}
}

func TestParse_FullConfig(t *testing.T) {
	data := []byte(`
base_url: https://api.fieldops.example
timeout_sec: 10
store:
  path: /tmp/creds.db
chat:
  poll_interval_sec: 2
notify:
  poll_interval_sec: 30
  digest_cron: "0 8 * * *"
  discord:
    bot_token: abc
    channel_id: "123"
devserver:
  port: 9000
  driver: mysql
  dsn: root@tcp(localhost:3306)/fieldops
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "https://api.fieldops.example" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.Chat.PollIntervalSec != 2 {
		t.Errorf("chat poll interval = %d, want 2", cfg.Chat.PollIntervalSec)
	}
	if cfg.Notify.DigestCron != "0 8 * * *" {
		t.Errorf("digest cron = %q", cfg.Notify.DigestCron)
	}
	if cfg.Notify.Discord.BotToken != "abc" {
		t.Errorf("discord token = %q", cfg.Notify.Discord.BotToken)
	}
	if cfg.DevServer.Port != 9000 {
		t.Errorf("devserver port = %d, want 9000", cfg.DevServer.Port)
	}
}

func TestParse_InvalidBaseURL(t *testing.T) {
	_, err := Parse([]byte("base_url: ftp://nope"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "base_url") {
		t.Errorf("error should mention base_url, got: %v", err)
	}
}

func TestParse_UnsupportedDriver(t *testing.T) {
	_, err := Parse([]byte("devserver:\n  driver: postgres\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "driver") {
		t.Errorf("error should mention driver, got: %v", err)
	}
}

func TestParse_MysqlRequiresDSN(t *testing.T) {
	_, err := Parse([]byte("devserver:\n  driver: mysql\n"))
	if err == nil {
		t.Fatal("expected validation error for mysql without dsn")
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("base_url: [nope"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

// --- Load tests ---

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8055" {
		t.Errorf("base url = %q, want default", cfg.BaseURL)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldops.yaml")
	if err := os.WriteFile(path, []byte("base_url: http://10.0.2.2:8055\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://10.0.2.2:8055" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
}
