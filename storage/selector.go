package storage

import (
	"fmt"
	"log/slog"

	"github.com/ruteri/cas-gateway/interfaces"
)

// Config selects and configures the storage backend.
type Config struct {
	// Backend is one of interfaces.BackendKinds.
	Backend string

	Kubo     KuboConfig
	Embedded EmbeddedConfig

	// Cache wraps the selected backend in an in-memory read-through cache.
	Cache bool
}

// Select resolves cfg.Backend once and constructs only that backend.
//
// Supported identifiers:
//   - kubo - remote IPFS (Kubo) node over its RPC API
//   - embedded - in-process pebble block store
//
// Returns an error wrapping interfaces.ErrUnknownBackend if the identifier is
// absent or unrecognized, or the backend's own error if construction fails.
func Select(cfg Config, log *slog.Logger) (interfaces.StorageBackend, error) {
	if log == nil {
		log = slog.Default()
	}

	kind, err := interfaces.ParseBackendKind(cfg.Backend)
	if err != nil {
		return nil, err
	}

	var backend interfaces.StorageBackend
	switch kind {
	case interfaces.KuboBackend:
		backend, err = createKuboBackend(cfg.Kubo, log)
	case interfaces.EmbeddedBackend:
		backend, err = createEmbeddedBackend(cfg.Embedded, log)
	default:
		// ParseBackendKind only returns known kinds.
		return nil, fmt.Errorf("%w: %q", interfaces.ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache {
		log.Debug("Wrapping backend with read-through cache", slog.String("backend", backend.Name()))
		backend = WrapWithCache(backend, NewMemoryCache(), log)
	}

	log.Info("Storage backend selected", slog.String("kind", kind.String()), slog.String("backend", backend.Name()))
	return backend, nil
}

func createKuboBackend(cfg KuboConfig, log *slog.Logger) (interfaces.StorageBackend, error) {
	log.Debug("Creating Kubo backend", slog.String("apiAddr", cfg.APIAddr), slog.Duration("timeout", cfg.Timeout))
	return NewKuboBackend(cfg, log)
}

func createEmbeddedBackend(cfg EmbeddedConfig, log *slog.Logger) (interfaces.StorageBackend, error) {
	log.Debug("Creating embedded backend", slog.String("dir", cfg.Dir), slog.Bool("compress", cfg.Compress))
	return NewEmbeddedBackend(cfg, log)
}
