// Package retriever selects the chunks of a document nearest to a query.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mfenderov/pagerag/internal/embeddings"
	"github.com/mfenderov/pagerag/internal/vectorindex"
)

const DefaultTopK = 3

var (
	// ErrEmptyIndex wraps vectorindex.ErrEmptyIndex so callers can match either.
	ErrEmptyIndex = fmt.Errorf("nothing to retrieve from: %w", vectorindex.ErrEmptyIndex)
	// ErrEmbedding marks a failure to embed the query.
	ErrEmbedding = errors.New("failed to embed query")
)

type Retriever struct {
	embedder    embeddings.Embedder
	defaultTopK int
}

// New creates a retriever. defaultTopK <= 0 selects DefaultTopK.
func New(embedder embeddings.Embedder, defaultTopK int) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Retriever{embedder: embedder, defaultTopK: defaultTopK}
}

// Retrieve embeds query and returns up to topK chunks, nearest first.
// chunks[i] must correspond to row i of index. topK <= 0 uses the default.
func (r *Retriever) Retrieve(ctx context.Context, query string, chunks []string, index *vectorindex.Index, topK int) ([]string, error) {
	if len(chunks) == 0 || index == nil || index.Len() == 0 {
		return nil, ErrEmptyIndex
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one query", ErrEmbedding, len(vectors))
	}

	hits, err := index.SearchWithDistances(vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	result := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Row >= len(chunks) {
			return nil, fmt.Errorf("index row %d has no chunk (%d chunks)", hit.Row, len(chunks))
		}
		result = append(result, chunks[hit.Row])
	}

	if len(hits) > 0 {
		slog.Debug("retrieved chunks", "k", topK, "returned", len(hits), "nearest", hits[0].Distance)
	}
	return result, nil
}
