package cmd

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mfenderov/pagerag/internal/config"
	"github.com/mfenderov/pagerag/internal/doccache"
	"github.com/mfenderov/pagerag/internal/embeddings"
	"github.com/mfenderov/pagerag/internal/llm"
	"github.com/mfenderov/pagerag/internal/pipeline"
	"github.com/mfenderov/pagerag/internal/retriever"
)

// components holds everything a command needs to answer questions.
type components struct {
	pipeline *pipeline.Pipeline
	llm      *llm.Client
	registry *prometheus.Registry
}

// buildComponents wires embedder, cache, retriever and LLM client from cfg.
func buildComponents(cfg config.Config) (*components, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	embedder, err := embeddings.New(embeddings.Config{
		Provider:     embeddings.Provider(cfg.Embeddings.Provider),
		BaseURL:      cfg.Embeddings.BaseURL,
		SocketPath:   cfg.Embeddings.SocketPath,
		Model:        cfg.Embeddings.Model,
		APIKey:       cfg.Embeddings.APIKey,
		Timeout:      cfg.Embeddings.Timeout,
		MaxRetries:   cfg.Embeddings.MaxRetries,
		RetryBackoff: cfg.Embeddings.RetryBackoff,
		Dimensions:   cfg.Embeddings.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	cache, err := doccache.New(doccache.Config{MaxEntries: cfg.Cache.MaxEntries}, doccache.NewMetrics(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create document cache: %w", err)
	}

	llmClient, err := llm.New(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		SocketPath: cfg.LLM.SocketPath,
		Model:      cfg.LLM.Model,
		Timeout:    cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	p := pipeline.New(pipeline.Config{
		ChunkSize:     cfg.Retrieval.ChunkSize,
		TopK:          cfg.Retrieval.TopK,
		DocumentQuery: cfg.Retrieval.DocumentQuery,
	}, cache, embedder, retriever.New(embedder, cfg.Retrieval.TopK), llmClient)

	slog.Debug("pipeline ready",
		"embeddings_provider", cfg.Embeddings.Provider,
		"embeddings_model", cfg.Embeddings.Model,
		"llm_model", cfg.LLM.Model,
		"chunk_size", cfg.Retrieval.ChunkSize,
		"top_k", cfg.Retrieval.TopK,
		"cache_entries", cfg.Cache.MaxEntries)

	return &components{pipeline: p, llm: llmClient, registry: reg}, nil
}
