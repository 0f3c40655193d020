// Package config loads the gateway configuration from an optional YAML file.
// Command line flags are applied on top by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ruteri/cas-gateway/interfaces"
	"github.com/ruteri/cas-gateway/storage"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr       = "127.0.0.1:8080"
	DefaultMetricsAddr      = "127.0.0.1:8090"
	DefaultBackend          = string(interfaces.EmbeddedBackend)
	DefaultKuboAPIAddr      = "127.0.0.1:5001"
	DefaultKuboTimeout      = 30 * time.Second
	DefaultCompressionLevel = 3
)

// Config is the complete gateway configuration.
type Config struct {
	ListenAddr  string        `yaml:"listen_addr"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Storage     StorageConfig `yaml:"storage"`
	Log         LogConfig     `yaml:"log"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is "kubo" or "embedded".
	Backend        string         `yaml:"backend"`
	Cache          bool           `yaml:"cache"`
	MaxConcurrency int            `yaml:"max_concurrency"`
	Kubo           KuboConfig     `yaml:"kubo"`
	Embedded       EmbeddedConfig `yaml:"embedded"`
}

type KuboConfig struct {
	APIAddr string        `yaml:"api_addr"`
	Timeout time.Duration `yaml:"timeout"`
	Pin     bool          `yaml:"pin"`
}

type EmbeddedConfig struct {
	// Dir is the pebble data directory. Empty keeps blocks in memory.
	Dir              string `yaml:"dir"`
	Compress         bool   `yaml:"compress"`
	CompressionLevel int    `yaml:"compression_level"`
}

type LogConfig struct {
	JSON    bool   `yaml:"json"`
	Debug   bool   `yaml:"debug"`
	Service string `yaml:"service"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenAddr:  DefaultListenAddr,
		MetricsAddr: DefaultMetricsAddr,
		Storage: StorageConfig{
			Backend: DefaultBackend,
			Kubo: KuboConfig{
				APIAddr: DefaultKuboAPIAddr,
				Timeout: DefaultKuboTimeout,
				Pin:     true,
			},
			Embedded: EmbeddedConfig{
				Compress:         true,
				CompressionLevel: DefaultCompressionLevel,
			},
		},
		Log: LogConfig{
			Service: "cas-gateway",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration before anything is started.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}

	kind, err := interfaces.ParseBackendKind(c.Storage.Backend)
	if err != nil {
		errs = append(errs, err)
	}
	if kind == interfaces.KuboBackend && c.Storage.Kubo.APIAddr == "" {
		errs = append(errs, errors.New("storage.kubo.api_addr is required for the kubo backend"))
	}
	if c.Storage.Kubo.Timeout < 0 {
		errs = append(errs, errors.New("storage.kubo.timeout must not be negative"))
	}
	if c.Storage.MaxConcurrency < 0 {
		errs = append(errs, errors.New("storage.max_concurrency must not be negative"))
	}
	if c.Storage.Embedded.CompressionLevel < 0 || c.Storage.Embedded.CompressionLevel > 22 {
		errs = append(errs, errors.New("storage.embedded.compression_level must be between 0 and 22"))
	}

	return errors.Join(errs...)
}

// StorageConfig converts the storage section into the selector's input.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Backend: c.Storage.Backend,
		Cache:   c.Storage.Cache,
		Kubo: storage.KuboConfig{
			APIAddr: c.Storage.Kubo.APIAddr,
			Timeout: c.Storage.Kubo.Timeout,
			Pin:     c.Storage.Kubo.Pin,
		},
		Embedded: storage.EmbeddedConfig{
			Dir:              c.Storage.Embedded.Dir,
			Compress:         c.Storage.Embedded.Compress,
			CompressionLevel: c.Storage.Embedded.CompressionLevel,
		},
	}
}
