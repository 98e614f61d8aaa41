// Package embeddings maps text segments to fixed-length vectors.
//
// Three providers are available: a local Ollama server (default), any
// OpenAI-compatible embeddings endpoint, and an offline feature-hashing
// embedder that needs no model at all.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Embedder maps texts to vectors, one per input, in input order.
// Identical text must always produce the identical vector.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider names an embedder implementation.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderHash   Provider = "hash"
)

// ErrCountMismatch is returned when a backend answers with a different number
// of vectors than texts were sent.
var ErrCountMismatch = errors.New("embedding count mismatch")

// Config selects and configures an embedder.
type Config struct {
	Provider     Provider
	BaseURL      string        // ollama/openai endpoint
	SocketPath   string        // ollama over a unix socket (Docker Model Runner style)
	Model        string        // model name, e.g. "all-minilm"
	APIKey       string        // openai only
	Timeout      time.Duration // per request
	MaxRetries   uint64        // ollama only, transient failures
	RetryBackoff time.Duration // ollama only, first retry delay
	Dimensions   int           // hash only
}

// New builds the embedder selected by config.Provider.
func New(config Config) (Embedder, error) {
	switch config.Provider {
	case ProviderOllama, "":
		return NewOllama(config)
	case ProviderOpenAI:
		return NewOpenAI(config)
	case ProviderHash:
		return NewHash(config.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", config.Provider)
	}
}

// checkCount verifies a backend returned exactly one vector per text.
func checkCount(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrCountMismatch, len(vectors), len(texts))
	}
	return nil
}
