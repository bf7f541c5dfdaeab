package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HistoryBackend != HistoryBackendFile {
		t.Errorf("HistoryBackend = %q, want %q", cfg.HistoryBackend, HistoryBackendFile)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d, want 50", cfg.HistoryLimit)
	}
	if cfg.RequestTimeout != 300 {
		t.Errorf("RequestTimeout = %d, want 300", cfg.RequestTimeout)
	}
	if cfg.Markdown.Style != "dark" {
		t.Errorf("Markdown.Style = %q, want dark", cfg.Markdown.Style)
	}
}

func TestGetConfigDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	got, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() returned error: %v", err)
	}
	if got != dir {
		t.Errorf("GetConfigDir() = %s, want %s", got, dir)
	}
}

func TestGetConfigDir_Default(t *testing.T) {
	t.Setenv(HomeEnv, "")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() returned error: %v", err)
	}
	if filepath.Base(dir) != ".llmchat" {
		t.Errorf("GetConfigDir() = %s, want .llmchat suffix", dir)
	}
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	t.Setenv(HomeEnv, dir)

	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.HistoryBackend = HistoryBackendBolt
	cfg.Proxy = "http://127.0.0.1:8080"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() returned error: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file perm = %o, want 600", perm)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if loaded != cfg {
		t.Errorf("LoadConfig() = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	data, _ := json.Marshal(map[string]any{"log_level": "warn"})
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d, want default 50", cfg.HistoryLimit)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() expected error for invalid JSON")
	}
	if cfg != DefaultConfig() {
		t.Error("LoadConfig() should return defaults on parse error")
	}
}

func TestConfigSet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(Config) bool
	}{
		{"log_level", "DEBUG", false, func(c Config) bool { return c.LogLevel == "debug" }},
		{"log_level", "loud", true, nil},
		{"history_backend", "bolt", false, func(c Config) bool { return c.HistoryBackend == HistoryBackendBolt }},
		{"history_backend", "sqlite", true, nil},
		{"history_limit", "20", false, func(c Config) bool { return c.HistoryLimit == 20 }},
		{"history_limit", "0", true, nil},
		{"request_timeout", "abc", true, nil},
		{"proxy", "socks5://localhost:1080", false, func(c Config) bool { return c.Proxy == "socks5://localhost:1080" }},
		{"copy_to_clipboard", "true", false, func(c Config) bool { return c.CopyToClipboard }},
		{"copy_to_clipboard", "maybe", true, nil},
		{"markdown.style", "light", false, func(c Config) bool { return c.Markdown.Style == "light" }},
		{"markdown.enable_emoji", "false", false, func(c Config) bool { return !c.Markdown.EnableEmoji }},
		{"unknown", "x", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Set(%q, %q) did not apply: %+v", tt.key, tt.value, cfg)
			}
		})
	}
}

func TestSettableKeysAreAccepted(t *testing.T) {
	valid := map[string]string{
		"log_level":                  "info",
		"history_backend":            "file",
		"history_limit":              "10",
		"request_timeout":            "60",
		"proxy":                      "",
		"copy_to_clipboard":          "false",
		"markdown.style":             "dark",
		"markdown.enable_emoji":      "true",
		"markdown.preserve_newlines": "true",
	}
	for _, key := range SettableKeys() {
		cfg := DefaultConfig()
		if err := cfg.Set(key, valid[key]); err != nil {
			t.Errorf("Set(%q) returned error: %v", key, err)
		}
	}
}
