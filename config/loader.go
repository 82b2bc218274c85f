package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/restcache/restcache/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file "+configPath)
	}

	return l.Load(data)
}

func (l *Loader) Load(data []byte) (*types.ServiceConfig, error) {
	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.WrapError(err, "failed to parse YAML config")
	}

	if err := l.Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func (l *Loader) Validate(config *types.ServiceConfig) error {
	if err := l.validator.Struct(config); err != nil {
		return types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}
	return nil
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:    "restcache",
		Version: "dev",
		Server: &types.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30,
			WriteTimeout:    30,
			IdleTimeout:     120,
			ShutdownTimeout: 10,
		},
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Cache: &types.CacheConfig{
			Enabled:    true,
			Type:       "memory",
			DefaultTTL: 60,
		},
		Invalidation: &types.InvalidationConfig{
			Enabled:  false,
			Strategy: "tags",
		},
		Middleware: &types.MiddlewareConfig{
			Enabled:              true,
			DefaultTTL:           60,
			Methods:              []string{"GET"},
			VaryHeaders:          []string{"Accept", "Accept-Encoding"},
			CacheControlHeader:   true,
			AutoVary:             true,
			CompressionThreshold: 1024,
		},
		Metrics: &types.MetricsConfig{
			Enabled: true,
			Type:    "prometheus",
		},
		Janitor: &types.JanitorConfig{
			Enabled:  false,
			Schedule: "@every 5m",
		},
	}
}
