package config

import (
	"sync/atomic"

	"github.com/restcache/restcache/types"
)

type Manager struct {
	configPath string
	loader     *Loader
	config     atomic.Pointer[types.ServiceConfig]
}

func NewManager(configPath string) (*Manager, error) {
	m := &Manager{
		configPath: configPath,
		loader:     NewLoader(),
	}

	if err := m.Load(); err != nil {
		return nil, err
	}

	return m, nil
}

// NewManagerFromConfig wraps an explicitly constructed config, validating it
// the same way file loading does.
func NewManagerFromConfig(config *types.ServiceConfig) (*Manager, error) {
	m := &Manager{loader: NewLoader()}

	if config == nil {
		return nil, types.ErrConfigNotFound
	}
	if err := m.loader.Validate(config); err != nil {
		return nil, err
	}

	m.config.Store(config)
	return m, nil
}

func (m *Manager) Load() error {
	config, err := m.loader.LoadFromFile(m.configPath)
	if err != nil {
		return err
	}

	m.config.Store(config)
	return nil
}

func (m *Manager) GetConfig() *types.ServiceConfig {
	return m.config.Load()
}
