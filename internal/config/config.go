package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Embeddings Embeddings `mapstructure:"embeddings"`
	LLM        LLM        `mapstructure:"llm"`
	Retrieval  Retrieval  `mapstructure:"retrieval"`
	Cache      Cache      `mapstructure:"cache"`
	Scraper    Scraper    `mapstructure:"scraper"`
	MCP        MCP        `mapstructure:"mcp"`
}

// Server holds HTTP server configuration.
type Server struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"` // must exceed llm.timeout
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	UploadDir      string        `mapstructure:"upload_dir"` // empty means the OS temp dir
	AllowOrigins   []string      `mapstructure:"allow_origins"`
}

// Embeddings holds embedder configuration.
type Embeddings struct {
	Provider     string        `mapstructure:"provider"` // ollama, openai or hash
	BaseURL      string        `mapstructure:"base_url"`
	SocketPath   string        `mapstructure:"socket_path"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   uint64        `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Dimensions   int           `mapstructure:"dimensions"` // hash provider only
}

// LLM holds language model configuration.
type LLM struct {
	BaseURL    string        `mapstructure:"base_url"`
	SocketPath string        `mapstructure:"socket_path"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Retrieval holds chunking and search configuration.
type Retrieval struct {
	ChunkSize     int    `mapstructure:"chunk_size"`
	TopK          int    `mapstructure:"top_k"`
	DocumentQuery string `mapstructure:"document_query"`
}

// Cache holds document cache configuration.
type Cache struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// Scraper holds page fetching configuration for the ask command.
type Scraper struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	TryMarkdownFirst bool          `mapstructure:"try_markdown_first"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:           "127.0.0.1:5000",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   330 * time.Second, // llm timeout plus retrieval headroom
			MaxUploadBytes: 32 << 20,
			AllowOrigins:   []string{"*"},
		},
		Embeddings: Embeddings{
			Provider:     "ollama",
			BaseURL:      "http://localhost:11434",
			Model:        "all-minilm",
			Timeout:      60 * time.Second,
			MaxRetries:   2,
			RetryBackoff: 200 * time.Millisecond,
			Dimensions:   384,
		},
		LLM: LLM{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2:1b",
			Timeout: 300 * time.Second,
		},
		Retrieval: Retrieval{
			ChunkSize:     400,
			TopK:          3,
			DocumentQuery: "pdf content",
		},
		Cache: Cache{
			MaxEntries: 128,
		},
		Scraper: Scraper{
			Timeout:          30 * time.Second,
			UserAgent:        "pagerag/1.0",
			TryMarkdownFirst: false,
		},
		MCP: MCP{
			Name:    "pagerag",
			Version: "1.0.0",
		},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Retrieval.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.chunk_size must be positive, got %d", c.Retrieval.ChunkSize))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout))
	}
	if c.Embeddings.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("embeddings.timeout must be positive, got %s", c.Embeddings.Timeout))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive, got %s", c.Server.WriteTimeout))
	} else if c.Server.WriteTimeout <= c.LLM.Timeout {
		errs = append(errs, fmt.Errorf("server.write_timeout (%s) must exceed llm.timeout (%s)", c.Server.WriteTimeout, c.LLM.Timeout))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	switch c.Embeddings.Provider {
	case "", "ollama", "openai", "hash":
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider %q is not one of ollama, openai, hash", c.Embeddings.Provider))
	}
	return errors.Join(errs...)
}
