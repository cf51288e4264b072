package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version   string         `yaml:"version"`
	Strava    StravaConfig   `yaml:"strava"`
	Storage   StorageConfig  `yaml:"storage"`
	Sync      SyncConfig     `yaml:"sync"`
	Report    ReportConfig   `yaml:"report"`
	Server    ServerConfig   `yaml:"server"`
	Telegram  TelegramConfig `yaml:"telegram"`
	LogLevel  string         `yaml:"log_level"`
}

// StravaConfig contains remote API and OAuth endpoint configuration.
type StravaConfig struct {
	APIBaseURL     string        `yaml:"api_base_url"`
	AuthURL        string        `yaml:"auth_url"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig contains paths of all locally persisted state.
type StorageConfig struct {
	TokenFile    string `yaml:"token_file"`
	DatabasePath string `yaml:"database_path"`
	WatermarkLog string `yaml:"watermark_log"`
}

// SyncConfig contains synchronization run configuration.
type SyncConfig struct {
	SafetyMargin time.Duration `yaml:"safety_margin"`
	KudosWorkers int           `yaml:"kudos_workers"`
}

// ReportConfig contains CSV export configuration.
type ReportConfig struct {
	OutputCSV string `yaml:"output_csv"`
}

// ServerConfig contains the serve-mode HTTP configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelegramConfig controls optional run notifications.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Version: "1.0",
		Strava: StravaConfig{
			APIBaseURL:     "https://www.strava.com/api/v3",
			AuthURL:        "https://www.strava.com/oauth/token",
			RequestTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			TokenFile:    "json/strava_tokens.json",
			DatabasePath: "bd/strava.sqlite",
			WatermarkLog: "data/strava_activities.log",
		},
		Sync: SyncConfig{
			SafetyMargin: 300 * time.Second,
			KudosWorkers: 4,
		},
		Report: ReportConfig{
			OutputCSV: "data/strava_report.csv",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			HTTPPort:        8318,
			ShutdownTimeout: 30 * time.Second,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Strava.APIBaseURL == "" {
		return fmt.Errorf("strava.api_base_url is required")
	}
	if c.Strava.AuthURL == "" {
		return fmt.Errorf("strava.auth_url is required")
	}
	if c.Strava.RequestTimeout <= 0 {
		return fmt.Errorf("strava.request_timeout must be positive")
	}
	if c.Storage.TokenFile == "" {
		return fmt.Errorf("storage.token_file is required")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	if c.Storage.WatermarkLog == "" {
		return fmt.Errorf("storage.watermark_log is required")
	}
	if c.Sync.SafetyMargin < 0 {
		return fmt.Errorf("sync.safety_margin cannot be negative")
	}
	if c.Sync.KudosWorkers < 1 || c.Sync.KudosWorkers > 64 {
		return fmt.Errorf("sync.kudos_workers must be between 1 and 64")
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be a valid port")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return nil
}

// Addr returns the host:port address for serve mode.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}
