package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

const (
	// DefaultResponseTimeoutSeconds is how long send_message_to_human waits
	// for a human reply when the caller does not override it.
	DefaultResponseTimeoutSeconds = 300

	// DefaultMaxHistorySize bounds the in-memory conversation log.
	DefaultMaxHistorySize = 1000
)

type Config struct {
	ServerName string         `json:"server_name" env:"HUMANLINK_SERVER_NAME"`
	Telegram   TelegramConfig `json:"telegram"`
	Bridge     BridgeConfig   `json:"bridge"`
	Logging    LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token  string `json:"token" env:"HUMANLINK_TELEGRAM_TOKEN"`
	ChatID int64  `json:"chat_id" env:"HUMANLINK_TELEGRAM_CHAT_ID"`
	Proxy  string `json:"proxy" env:"HUMANLINK_TELEGRAM_PROXY"`
}

type BridgeConfig struct {
	DefaultTimeoutSeconds int `json:"default_timeout_seconds" env:"HUMANLINK_BRIDGE_DEFAULT_TIMEOUT_SECONDS"`
	MaxHistorySize        int `json:"max_history_size" env:"HUMANLINK_BRIDGE_MAX_HISTORY_SIZE"`
}

type LoggingConfig struct {
	Level       string `json:"level" env:"HUMANLINK_LOGGING_LEVEL"`
	FileEnabled bool   `json:"file_enabled" env:"HUMANLINK_LOGGING_FILE_ENABLED"`
	FilePath    string `json:"file_path" env:"HUMANLINK_LOGGING_FILE_PATH"`
}

func DefaultConfig() *Config {
	return &Config{
		ServerName: "humanlink",
		Telegram: TelegramConfig{
			Token:  "",
			ChatID: 0,
			Proxy:  "",
		},
		Bridge: BridgeConfig{
			DefaultTimeoutSeconds: DefaultResponseTimeoutSeconds,
			MaxHistorySize:        DefaultMaxHistorySize,
		},
		Logging: LoggingConfig{
			Level:       "INFO",
			FileEnabled: false,
			FilePath:    "~/.humanlink/humanlink.log",
		},
	}
}

// LoadConfig reads the JSON config file at path, then applies environment
// overrides. A missing file is not an error; defaults plus environment
// variables are enough to run.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every configuration problem at once so the operator can
// fix them in a single pass.
func (c *Config) Validate() []string {
	var errs []string
	if c.Telegram.Token == "" {
		errs = append(errs, "telegram token is required (HUMANLINK_TELEGRAM_TOKEN)")
	}
	if c.Telegram.ChatID == 0 {
		errs = append(errs, "telegram chat_id is required (HUMANLINK_TELEGRAM_CHAT_ID)")
	}
	if c.Bridge.DefaultTimeoutSeconds <= 0 {
		errs = append(errs, "bridge default_timeout_seconds must be positive")
	}
	if c.Bridge.MaxHistorySize <= 0 {
		errs = append(errs, "bridge max_history_size must be positive")
	}
	return errs
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
