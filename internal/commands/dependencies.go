package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/diogo/llmchat/internal/api"
	"github.com/diogo/llmchat/internal/config"
	"github.com/diogo/llmchat/internal/history"
	"github.com/diogo/llmchat/internal/logging"
	"github.com/diogo/llmchat/internal/models"
)

// Dependencies holds the components a command works with, built from the
// user configuration.
type Dependencies struct {
	Config    config.Config
	Logger    *slog.Logger
	Configs   *config.APIConfigStore
	History   *history.History
	Transport api.Transport

	closers []func() error
}

// NewDependencies loads the configuration and opens logging, the API
// config store, the history backend and the transport.
func NewDependencies(notifier config.Notifier) (*Dependencies, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}

	d := &Dependencies{Config: cfg}

	logPath, err := config.GetLogPath()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := logging.OpenFile(cfg.LogLevel, logPath)
	if err != nil {
		return nil, err
	}
	d.Logger = logger
	d.closers = append(d.closers, closeLog)

	persister, err := config.DefaultAPIConfigPersister()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Configs, err = config.NewAPIConfigStore(persister,
		config.WithLogger(logger),
		config.WithNotifier(notifier),
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to load API configurations: %w", err)
	}

	records, err := openRecordStore(cfg.HistoryBackend)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.History, err = history.New(records, history.WithLogger(logger))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	d.Transport = api.NewClient(
		api.WithTimeout(cfg.RequestTimeout),
		api.WithProxy(cfg.Proxy),
		api.WithLogger(logger),
	)
	return d, nil
}

// Close releases the log file
func (d *Dependencies) Close() {
	for _, c := range d.closers {
		_ = c()
	}
	d.closers = nil
}

func openRecordStore(backend string) (history.RecordStore, error) {
	switch backend {
	case config.HistoryBackendBolt:
		path, err := config.GetHistoryDBPath()
		if err != nil {
			return nil, err
		}
		return history.NewBoltStore(path)
	default:
		dir, err := config.GetHistoryDir()
		if err != nil {
			return nil, err
		}
		return history.NewFileStore(dir)
	}
}

// fixedConfig pins one API configuration for a single invocation
type fixedConfig struct {
	cfg models.APIConfig
}

func (f fixedConfig) Selected() (models.APIConfig, bool) { return f.cfg, true }

// resolveAPIConfig finds a configuration by id, then by name.
// An empty reference means the stored selection.
func resolveAPIConfig(store *config.APIConfigStore, ref string) (models.APIConfig, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		cfg, ok := store.Selected()
		if !ok {
			return models.APIConfig{}, errors.New("no API configuration selected: add one with 'llmchat api add'")
		}
		return cfg, nil
	}
	if cfg, ok := store.Get(ref); ok {
		return cfg, nil
	}

	var matches []models.APIConfig
	for _, cfg := range store.List() {
		if strings.EqualFold(cfg.Name, ref) {
			matches = append(matches, cfg)
		}
	}
	switch len(matches) {
	case 0:
		return models.APIConfig{}, fmt.Errorf("no API configuration matching %q", ref)
	case 1:
		return matches[0], nil
	default:
		return models.APIConfig{}, fmt.Errorf("%d API configurations are named %q: use the id", len(matches), ref)
	}
}
