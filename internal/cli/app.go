package cli

import (
	"fmt"
	"strconv"

	"github.com/stravasync/stravasync/internal/config"
	"github.com/stravasync/stravasync/internal/logging"
	"github.com/stravasync/stravasync/internal/metrics"
	"github.com/stravasync/stravasync/internal/store"
	"github.com/stravasync/stravasync/internal/strava"
	"github.com/stravasync/stravasync/internal/sync"
	"github.com/stravasync/stravasync/internal/telegram"
	"github.com/stravasync/stravasync/internal/token"
	"github.com/stravasync/stravasync/internal/watermark"
)

// loadAppConfig loads the configuration file and applies global flag
// overrides. A missing config file falls back to defaults so the tool
// runs with environment credentials alone.
func loadAppConfig() (*config.Config, error) {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load(true)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if globalFlags.DBPath != "" {
		cfg.Storage.DatabasePath = globalFlags.DBPath
	}
	if globalFlags.TokenFile != "" {
		cfg.Storage.TokenFile = globalFlags.TokenFile
	}
	if globalFlags.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	level := logging.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.NewLogger(logging.WithLevel(level))
}

func newTokenManager(cfg *config.Config, logger *logging.Logger, opts ...token.ManagerOption) *token.Manager {
	opts = append([]token.ManagerOption{
		token.WithSafetyMargin(cfg.Sync.SafetyMargin),
		token.WithTimeout(cfg.Strava.RequestTimeout),
	}, opts...)
	return token.NewManager(
		token.NewStore(cfg.Storage.TokenFile),
		cfg.Strava.AuthURL,
		cfg.Strava.ClientID,
		cfg.Strava.ClientSecret,
		logger,
		opts...,
	)
}

// buildOrchestrator wires the full sync pipeline from configuration.
// The caller owns the returned store and must close it.
func buildOrchestrator(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) (*sync.Orchestrator, *store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []sync.OrchestratorOption{
		sync.WithKudosWorkers(cfg.Sync.KudosWorkers),
	}
	if cfg.Telegram.Enabled {
		opts = append(opts, sync.WithNotifier(&telegram.Notifier{
			Token:  cfg.Telegram.BotToken,
			ChatID: cfg.Telegram.ChatID,
		}))
	}

	manager := newTokenManager(cfg, logger, token.WithRefreshObserver(func(outcome string) {
		m.TokenRefreshes.WithLabelValues(outcome).Inc()
	}))
	client := strava.NewClient(cfg.Strava.APIBaseURL, cfg.Strava.RequestTimeout, logger,
		strava.WithObserver(func(endpoint string, status int) {
			m.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		}))

	orch := sync.NewOrchestrator(
		manager,
		client,
		st,
		watermark.NewLog(cfg.Storage.WatermarkLog),
		m,
		logger,
		opts...,
	)
	return orch, st, nil
}
