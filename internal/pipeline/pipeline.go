// Package pipeline answers questions about a single document: it indexes the
// document (or reuses a cached index), retrieves the closest chunks, builds
// the prompt and asks the model.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mfenderov/pagerag/internal/chunker"
	"github.com/mfenderov/pagerag/internal/content"
	"github.com/mfenderov/pagerag/internal/doccache"
	"github.com/mfenderov/pagerag/internal/embeddings"
	"github.com/mfenderov/pagerag/internal/llm"
	"github.com/mfenderov/pagerag/internal/prompt"
	"github.com/mfenderov/pagerag/internal/retriever"
	"github.com/mfenderov/pagerag/internal/vectorindex"
)

const DefaultDocumentQuery = "pdf content"

// Config holds pipeline configuration.
type Config struct {
	ChunkSize     int    // words per chunk
	TopK          int    // chunks sent to the model
	DocumentQuery string // retrieval query for documents, which carry no question
}

// Pipeline is safe for concurrent use; the cache is the only shared state.
type Pipeline struct {
	config    Config
	cache     *doccache.Cache
	embedder  embeddings.Embedder
	retriever *retriever.Retriever
	generator llm.Generator
}

// New wires a pipeline from its collaborators.
func New(config Config, cache *doccache.Cache, embedder embeddings.Embedder, r *retriever.Retriever, generator llm.Generator) *Pipeline {
	if config.ChunkSize <= 0 {
		config.ChunkSize = chunker.DefaultSize
	}
	if config.TopK <= 0 {
		config.TopK = retriever.DefaultTopK
	}
	if config.DocumentQuery == "" {
		config.DocumentQuery = DefaultDocumentQuery
	}
	return &Pipeline{
		config:    config,
		cache:     cache,
		embedder:  embedder,
		retriever: r,
		generator: generator,
	}
}

// CacheLen reports how many documents are currently indexed.
func (p *Pipeline) CacheLen() int {
	return p.cache.Len()
}

// AskPage answers question about web page content. HTML content is converted
// to Markdown first.
func (p *Pipeline) AskPage(ctx context.Context, question, pageContent, action string) (string, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(pageContent) == "" {
		return "", ErrMissingInput
	}

	text, err := content.Normalise(pageContent)
	if err != nil {
		return "", fmt.Errorf("failed to normalise page content: %w", err)
	}
	if text == "" {
		return "", ErrMissingInput
	}

	a := prompt.ParseAction(action)
	chunks, err := p.retrieve(ctx, text, question)
	if err != nil {
		return "", err
	}
	return p.generate(ctx, prompt.Page(a, chunks, question), a)
}

// AskDocument summarises or explains extracted document text. Retrieval uses
// the configured document query rather than a caller question.
func (p *Pipeline) AskDocument(ctx context.Context, text, action string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrUnreadableDocument
	}

	a := prompt.ParseAction(action)
	chunks, err := p.retrieve(ctx, text, p.config.DocumentQuery)
	if err != nil {
		return "", err
	}
	return p.generate(ctx, prompt.Document(a, chunks), a)
}

func (p *Pipeline) retrieve(ctx context.Context, text, query string) ([]string, error) {
	entry, err := p.cache.GetOrBuild(ctx, text, func(ctx context.Context) (*doccache.Entry, error) {
		return p.index(ctx, text)
	})
	if err != nil {
		return nil, err
	}

	chunks, err := p.retriever.Retrieve(ctx, query, entry.Chunks, entry.Index, p.config.TopK)
	if err != nil {
		if errors.Is(err, retriever.ErrEmbedding) {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrIndexFailure, err)
	}
	return chunks, nil
}

// index chunks text, embeds every chunk and builds the vector index.
func (p *Pipeline) index(ctx context.Context, text string) (*doccache.Entry, error) {
	chunks := chunker.Chunk(text, p.config.ChunkSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrIndexFailure, vectorindex.ErrEmptyIndex)
	}

	vectors, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %w: got %d vectors for %d chunks",
			ErrEmbeddingFailure, embeddings.ErrCountMismatch, len(vectors), len(chunks))
	}

	idx, err := vectorindex.Build(vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexFailure, err)
	}
	slog.Debug("index built", "rows", idx.Len(), "dim", idx.Dim())
	return &doccache.Entry{Chunks: chunks, Index: idx}, nil
}

func (p *Pipeline) generate(ctx context.Context, text string, a prompt.Action) (string, error) {
	start := time.Now()
	answer, err := p.generator.Generate(ctx, text)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", ErrGenerationTimeout, err)
		}
		return "", fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	slog.Debug("answer generated", "action", a, "prompt_chars", len(text), "duration", time.Since(start))
	return answer, nil
}
