package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FullFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
host = "192.168.1.50"
port = 18188
password = "secret"
journal_path = "/tmp/crealink.db"
log_level = "debug"
connect_timeout_ms = 5000
reconnect_initial_ms = 500
reconnect_max_ms = 30000
stale_after_ms = 45000
command_rate = 2.5
command_burst = 3
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Host != "192.168.1.50" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 18188 {
		t.Errorf("Port = %d, want 18188", cfg.Port)
	}
	if cfg.Password != "secret" {
		t.Errorf("Password = %q", cfg.Password)
	}
	if cfg.JournalPath != "/tmp/crealink.db" {
		t.Errorf("JournalPath = %q", cfg.JournalPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.ConnectTimeoutMs != 5000 {
		t.Errorf("ConnectTimeoutMs = %d", cfg.ConnectTimeoutMs)
	}
	if cfg.ReconnectInitialMs != 500 || cfg.ReconnectMaxMs != 30000 {
		t.Errorf("reconnect window = %d/%d", cfg.ReconnectInitialMs, cfg.ReconnectMaxMs)
	}
	if cfg.StaleAfterMs != 45000 {
		t.Errorf("StaleAfterMs = %d", cfg.StaleAfterMs)
	}
	if cfg.CommandRate != 2.5 || cfg.CommandBurst != 3 {
		t.Errorf("command limits = %v/%d", cfg.CommandRate, cfg.CommandBurst)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() on missing file error: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("default Port = %d, want 9999", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.ConnectTimeoutMs != 10000 {
		t.Errorf("default ConnectTimeoutMs = %d, want 10000", cfg.ConnectTimeoutMs)
	}
	if cfg.ReconnectInitialMs != 1000 || cfg.ReconnectMaxMs != 60000 {
		t.Errorf("default reconnect window = %d/%d", cfg.ReconnectInitialMs, cfg.ReconnectMaxMs)
	}
	if cfg.StaleAfterMs != 90000 {
		t.Errorf("default StaleAfterMs = %d, want 90000", cfg.StaleAfterMs)
	}
	if cfg.CommandRate != 5 || cfg.CommandBurst != 5 {
		t.Errorf("default command limits = %v/%d, want 5/5", cfg.CommandRate, cfg.CommandBurst)
	}
	if cfg.Host != "" {
		t.Errorf("Host should default empty, got %q", cfg.Host)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("host = \"printer.local\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "printer.local" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want default 9999", cfg.Port)
	}
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("host = [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid TOML")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := WriteDefault(path, "192.168.1.50"); err != nil {
		t.Fatalf("WriteDefault() error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of written default error: %v", err)
	}
	if cfg.Host != "192.168.1.50" {
		t.Errorf("Host = %q, want 192.168.1.50", cfg.Host)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
}

func TestWriteDefault_NeverOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("host = \"keep-me\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := WriteDefault(path, "replace-attempt"); err != nil {
		t.Fatalf("WriteDefault() error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "keep-me" {
		t.Errorf("existing config was overwritten: Host = %q", cfg.Host)
	}
}
