package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/diogo/llmchat/internal/models"
)

// APIConfigPersister is the durable store behind APIConfigStore
type APIConfigPersister interface {
	LoadConfigs() ([]models.APIConfig, error)
	SaveConfigs(configs []models.APIConfig) error
	LoadSelectedID() (string, error)
	SaveSelectedID(id string) error
}

// apiConfigFile is the on-disk layout of apiconfigs.json
type apiConfigFile struct {
	Configs    []models.APIConfig `json:"configs"`
	SelectedID string             `json:"selected_id,omitempty"`
}

// FileAPIConfigPersister keeps API configurations in a single JSON file
type FileAPIConfigPersister struct {
	path string
	mu   sync.Mutex
}

// NewFileAPIConfigPersister creates a persister for path
func NewFileAPIConfigPersister(path string) *FileAPIConfigPersister {
	return &FileAPIConfigPersister{path: path}
}

// DefaultAPIConfigPersister returns the persister for the config directory
func DefaultAPIConfigPersister() (*FileAPIConfigPersister, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	return NewFileAPIConfigPersister(filepath.Join(configDir, "apiconfigs.json")), nil
}

// Path returns the backing file path
func (p *FileAPIConfigPersister) Path() string {
	return p.path
}

func (p *FileAPIConfigPersister) read() (apiConfigFile, error) {
	var f apiConfigFile

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, fmt.Errorf("failed to read API configs: %w", err)
	}

	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse API configs: %w", err)
	}
	return f, nil
}

func (p *FileAPIConfigPersister) write(f apiConfigFile) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if f.Configs == nil {
		f.Configs = []models.APIConfig{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal API configs: %w", err)
	}

	// 0o600: the file holds credentials
	if err := writeFileAtomic(p.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write API configs: %w", err)
	}
	return nil
}

// LoadConfigs returns the stored configurations
func (p *FileAPIConfigPersister) LoadConfigs() ([]models.APIConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.read()
	if err != nil {
		return nil, err
	}
	return f.Configs, nil
}

// SaveConfigs replaces the stored configurations and keeps the selection
func (p *FileAPIConfigPersister) SaveConfigs(configs []models.APIConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.read()
	if err != nil {
		return err
	}
	f.Configs = configs
	return p.write(f)
}

// LoadSelectedID returns the stored selection, "" when none
func (p *FileAPIConfigPersister) LoadSelectedID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.read()
	if err != nil {
		return "", err
	}
	return f.SelectedID, nil
}

// SaveSelectedID stores the selection and keeps the configurations
func (p *FileAPIConfigPersister) SaveSelectedID(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.read()
	if err != nil {
		return err
	}
	f.SelectedID = id
	return p.write(f)
}
