// Package embedding turns knowledge text into fixed-size vectors for the
// pgvector similarity search.
package embedding

import (
	"context"
	"fmt"
)

// EmbeddingProvider defines the interface for generating text embeddings.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

type Config struct {
	Provider      string // "none", "hash" or "ollama"
	Dimension     int
	OllamaBaseURL string
	OllamaModel   string
}

// New returns nil, nil for the "none" provider; callers then skip embeddings.
func New(cfg Config) (EmbeddingProvider, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "hash":
		return NewHashProvider(cfg.Dimension), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
