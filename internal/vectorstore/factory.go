package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider names.
const (
	ProviderChromem = "chromem"
	ProviderQdrant  = "qdrant"
	ProviderMemory  = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Provider string
	Chromem  ChromemConfig
	Qdrant   QdrantConfig
}

// NewAdapter creates the configured backend:
//   - "chromem" (default): embedded, persisted under Chromem.Path
//   - "qdrant": remote Qdrant server
//   - "memory": non-persistent, for tests and demos
func NewAdapter(cfg Config, logger *zap.Logger) (Adapter, error) {
	switch cfg.Provider {
	case ProviderChromem, "":
		store, err := NewChromemStore(cfg.Chromem, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case ProviderQdrant:
		store, err := NewQdrantStore(cfg.Qdrant, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case ProviderMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant, memory)",
			ErrInvalidConfig, cfg.Provider)
	}
}
