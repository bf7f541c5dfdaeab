package config

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/logging"
	"github.com/diogo/llmchat/internal/models"
)

// Canceller aborts the in-flight response, if any
type Canceller interface {
	CancelActive()
}

// CancellerFunc adapts a function to Canceller
type CancellerFunc func()

// CancelActive calls f
func (f CancellerFunc) CancelActive() { f() }

// Notifier shows a short transient message to the user
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(string)

// Notify calls f
func (f NotifierFunc) Notify(message string) { f(message) }

type nopNotifier struct{}

func (nopNotifier) Notify(string) {}

// StoreOption configures an APIConfigStore
type StoreOption func(*APIConfigStore)

// WithNotifier sets the user notification channel
func WithNotifier(n Notifier) StoreOption {
	return func(s *APIConfigStore) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *APIConfigStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCanceller sets the in-flight response canceller
func WithCanceller(c Canceller) StoreOption {
	return func(s *APIConfigStore) {
		s.canceller = c
	}
}

// APIConfigStore owns the list of API configurations and the selection.
// Every mutation is written through the persister before the in-memory
// state changes, so a failed write leaves the store untouched.
type APIConfigStore struct {
	persister APIConfigPersister
	notifier  Notifier
	logger    *slog.Logger

	// opMu serializes mutations; mu guards the fields below it.
	opMu      sync.Mutex
	canceller Canceller

	mu         sync.RWMutex
	configs    []models.APIConfig
	selectedID string
}

// NewAPIConfigStore loads the configurations and restores the selection.
// A stored selection that no longer resolves falls back to the first entry,
// and the correction is persisted.
func NewAPIConfigStore(p APIConfigPersister, opts ...StoreOption) (*APIConfigStore, error) {
	s := &APIConfigStore{
		persister: p,
		notifier:  nopNotifier{},
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	configs, err := p.LoadConfigs()
	if err != nil {
		return nil, err
	}
	selectedID, err := p.LoadSelectedID()
	if err != nil {
		return nil, err
	}

	resolved := ""
	if indexOf(configs, selectedID) >= 0 {
		resolved = selectedID
	} else if len(configs) > 0 {
		resolved = configs[0].ID
	}

	if resolved != selectedID {
		if err := p.SaveSelectedID(resolved); err != nil {
			return nil, fmt.Errorf("failed to restore selection: %w", err)
		}
		s.logger.Info("restored API config selection", "stored", selectedID, "selected", resolved)
	}

	s.configs = configs
	s.selectedID = resolved
	return s, nil
}

// SetCanceller wires the canceller after construction, since the
// controller that cancels sessions itself reads from the store.
func (s *APIConfigStore) SetCanceller(c Canceller) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.canceller = c
}

// List returns a copy of the configurations in insertion order
func (s *APIConfigStore) List() []models.APIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.configs)
}

// Get returns the configuration with id
func (s *APIConfigStore) Get(id string) (models.APIConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.configs, id); i >= 0 {
		return s.configs[i], true
	}
	return models.APIConfig{}, false
}

// Selected returns the selected configuration
func (s *APIConfigStore) Selected() (models.APIConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.configs, s.selectedID); i >= 0 {
		return s.configs[i], true
	}
	return models.APIConfig{}, false
}

// SelectedID returns the identifier of the selected configuration
func (s *APIConfigStore) SelectedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// Add appends cfg. A content-equal entry rejects the add with
// ErrDuplicateConfig. The first added configuration becomes selected.
func (s *APIConfigStore) Add(cfg models.APIConfig) (models.APIConfig, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cfg, err := validate(cfg)
	if err != nil {
		return models.APIConfig{}, err
	}

	configs, selectedID := s.snapshot()
	for _, existing := range configs {
		if existing.ContentEquals(cfg) {
			s.notifier.Notify("Configuration already exists")
			return models.APIConfig{}, apierrors.ErrDuplicateConfig
		}
	}

	if cfg.ID == "" || indexOf(configs, cfg.ID) >= 0 {
		cfg.ID = uuid.NewString()
	}

	next := append(slices.Clone(configs), cfg)
	if err := s.persister.SaveConfigs(next); err != nil {
		return models.APIConfig{}, err
	}

	nextSelected := selectedID
	if selectedID == "" {
		nextSelected = cfg.ID
		if err := s.persister.SaveSelectedID(nextSelected); err != nil {
			s.restoreConfigs(configs)
			return models.APIConfig{}, err
		}
	}

	s.commit(next, nextSelected)
	s.logger.Info("API config added", "id", cfg.ID, "provider", cfg.Provider, "model", cfg.Model)
	s.notifier.Notify("Configuration added")
	return cfg, nil
}

// Update replaces the entry with cfg.ID. Updating to content equal to a
// different entry is rejected with ErrDuplicateConfig.
func (s *APIConfigStore) Update(cfg models.APIConfig) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cfg, err := validate(cfg)
	if err != nil {
		return err
	}

	configs, selectedID := s.snapshot()
	i := indexOf(configs, cfg.ID)
	if i < 0 {
		return apierrors.ErrConfigNotFound
	}

	if configs[i].ContentEquals(cfg) && configs[i].Name == cfg.Name {
		return nil
	}
	for j, other := range configs {
		if j != i && other.ContentEquals(cfg) {
			s.notifier.Notify("Configuration already exists")
			return apierrors.ErrDuplicateConfig
		}
	}

	next := slices.Clone(configs)
	next[i] = cfg
	if err := s.persister.SaveConfigs(next); err != nil {
		return err
	}

	s.commit(next, selectedID)
	s.logger.Info("API config updated", "id", cfg.ID, "selected", cfg.ID == selectedID)
	s.notifier.Notify("Configuration updated")
	return nil
}

// Delete removes the entry with id. Deleting the selected entry cancels
// the in-flight response and selects the first remaining entry, if any.
func (s *APIConfigStore) Delete(id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	configs, selectedID := s.snapshot()
	i := indexOf(configs, id)
	if i < 0 {
		return apierrors.ErrConfigNotFound
	}

	wasSelected := id == selectedID
	if wasSelected {
		s.cancelActive()
	}

	next := slices.Delete(slices.Clone(configs), i, i+1)
	nextSelected := selectedID
	if wasSelected {
		nextSelected = ""
		if len(next) > 0 {
			nextSelected = next[0].ID
		}
	}

	if err := s.persister.SaveConfigs(next); err != nil {
		return err
	}
	if wasSelected {
		if err := s.persister.SaveSelectedID(nextSelected); err != nil {
			s.restoreConfigs(configs)
			return err
		}
	}

	s.commit(next, nextSelected)
	s.logger.Info("API config deleted", "id", id, "selected", nextSelected)
	s.notifier.Notify("Configuration deleted")
	return nil
}

// Clear removes every configuration and the selection
func (s *APIConfigStore) Clear() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	configs, _ := s.snapshot()
	s.cancelActive()

	if err := s.persister.SaveConfigs(nil); err != nil {
		return err
	}
	if err := s.persister.SaveSelectedID(""); err != nil {
		s.restoreConfigs(configs)
		return err
	}

	s.commit(nil, "")
	s.logger.Info("API configs cleared", "count", len(configs))
	s.notifier.Notify("All configurations cleared")
	return nil
}

// Select makes id the active configuration. Selecting the already
// selected entry does nothing.
func (s *APIConfigStore) Select(id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	configs, selectedID := s.snapshot()
	if id == selectedID {
		return nil
	}
	i := indexOf(configs, id)
	if i < 0 {
		return apierrors.ErrConfigNotFound
	}

	s.cancelActive()
	if err := s.persister.SaveSelectedID(id); err != nil {
		return err
	}

	s.commit(configs, id)
	s.logger.Info("API config selected", "id", id)
	s.notifier.Notify("Using " + configs[i].Label())
	return nil
}

func (s *APIConfigStore) snapshot() ([]models.APIConfig, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configs, s.selectedID
}

func (s *APIConfigStore) commit(configs []models.APIConfig, selectedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = configs
	s.selectedID = selectedID
}

// restoreConfigs undoes a configs write whose selection write failed
func (s *APIConfigStore) restoreConfigs(configs []models.APIConfig) {
	if err := s.persister.SaveConfigs(configs); err != nil {
		s.logger.Error("failed to roll back API configs", "error", err)
	}
}

func (s *APIConfigStore) cancelActive() {
	if s.canceller != nil {
		s.canceller.CancelActive()
	}
}

func validate(cfg models.APIConfig) (models.APIConfig, error) {
	if _, err := models.ParseProvider(string(cfg.Provider)); err != nil {
		return cfg, apierrors.NewConfigError("provider", err.Error())
	}
	cfg = cfg.Normalized()
	if cfg.Model == "" {
		cfg.Model = models.DefaultModel(cfg.Provider)
	}
	if cfg.Address == "" && cfg.Provider != models.ProviderMock {
		return cfg, apierrors.NewConfigError("address", "address is required")
	}
	return cfg, nil
}

func indexOf(configs []models.APIConfig, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(configs, func(c models.APIConfig) bool { return c.ID == id })
}
