// Package config handles application preferences and the set of backend
// API configurations for llmchat.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// HomeEnv overrides the configuration directory when set
const HomeEnv = "LLMCHAT_HOME"

// History backends
const (
	HistoryBackendFile = "file"
	HistoryBackendBolt = "bolt"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style"`             // "dark", "light", "notty" or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji"`      // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"` // Preserve original line breaks
}

// Config represents the user preferences
type Config struct {
	LogLevel       string `json:"log_level"`
	HistoryBackend string `json:"history_backend"`
	// HistoryLimit is the number of trailing messages sent as context.
	HistoryLimit int `json:"history_limit"`
	// RequestTimeout bounds a whole streamed response, in seconds.
	RequestTimeout int `json:"request_timeout"`
	// Proxy is used for every request when set. Otherwise the standard
	// HTTP_PROXY, HTTPS_PROXY and NO_PROXY variables apply.
	Proxy           string         `json:"proxy,omitempty"`
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	Markdown        MarkdownConfig `json:"markdown"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		LogLevel:        "info",
		HistoryBackend:  HistoryBackendFile,
		HistoryLimit:    50,
		RequestTimeout:  300,
		CopyToClipboard: false,
		Markdown:        DefaultMarkdownConfig(),
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(HomeEnv)); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".llmchat"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory holds API credentials
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetLogPath returns the path to the log file
func GetLogPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "llmchat.log"), nil
}

// GetHistoryDir returns the directory of the file history backend
func GetHistoryDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "history"), nil
}

// GetHistoryDBPath returns the database path of the bolt history backend
func GetHistoryDBPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "history.db"), nil
}

// LoadConfig loads the configuration from disk
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(configDir, "config.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SettableKeys lists the keys accepted by Set
func SettableKeys() []string {
	return []string{
		"log_level",
		"history_backend",
		"history_limit",
		"request_timeout",
		"proxy",
		"copy_to_clipboard",
		"markdown.style",
		"markdown.enable_emoji",
		"markdown.preserve_newlines",
	}
}

// Set updates a single preference from its string form
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)

	switch key {
	case "log_level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "warning", "error":
			c.LogLevel = strings.ToLower(value)
		default:
			return fmt.Errorf("invalid log_level %q: use debug, info, warn or error", value)
		}
	case "history_backend":
		switch value {
		case HistoryBackendFile, HistoryBackendBolt:
			c.HistoryBackend = value
		default:
			return fmt.Errorf("invalid history_backend %q: use file or bolt", value)
		}
	case "history_limit":
		n, err := parsePositive(key, value)
		if err != nil {
			return err
		}
		c.HistoryLimit = n
	case "request_timeout":
		n, err := parsePositive(key, value)
		if err != nil {
			return err
		}
		c.RequestTimeout = n
	case "proxy":
		c.Proxy = value
	case "copy_to_clipboard":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		c.CopyToClipboard = b
	case "markdown.style":
		if value == "" {
			return fmt.Errorf("markdown.style cannot be empty")
		}
		c.Markdown.Style = value
	case "markdown.enable_emoji":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		c.Markdown.EnableEmoji = b
	case "markdown.preserve_newlines":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		c.Markdown.PreserveNewLines = b
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func parsePositive(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, value)
	}
	return n, nil
}

// writeFileAtomic writes to a temporary file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
