package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "all-minilm"
	defaultTimeout     = 60 * time.Second
	defaultBackoff     = 200 * time.Millisecond
)

// Ollama wraps the Ollama batch embeddings API (/api/embed).
type Ollama struct {
	httpClient *http.Client
	baseURL    string
	model      string
	maxRetries uint64
	backoff    time.Duration
}

// NewOllama creates a new Ollama embeddings client. When SocketPath is set the
// client dials the unix socket and BaseURL is ignored.
func NewOllama(config Config) (*Ollama, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaultBackoff
	}

	httpClient := &http.Client{Timeout: config.Timeout}
	baseURL := strings.TrimRight(config.BaseURL, "/")

	if config.SocketPath != "" {
		socketPath := config.SocketPath
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		}
		baseURL = "http://localhost"
	} else if baseURL == "" {
		return nil, fmt.Errorf("base URL or socket path is required")
	}

	return &Ollama{
		httpClient: httpClient,
		baseURL:    baseURL,
		model:      config.Model,
		maxRetries: config.MaxRetries,
		backoff:    config.RetryBackoff,
	}, nil
}

// embedRequest is the request payload for /api/embed.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the response from /api/embed.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// MaxInputChars limits each input to stay within the model context window.
// all-minilm truncates at 256 word pieces anyway; chunks of 400 words fit
// comfortably below this.
const MaxInputChars = 20000

// Embed generates one embedding per text. Texts exceeding MaxInputChars are
// truncated from the end.
func (c *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	input := make([]string, len(texts))
	for i, text := range texts {
		input[i] = truncate(text, MaxInputChars)
	}
	slog.Debug("generating embeddings", "model", c.model, "texts", len(input))

	body, err := json.Marshal(embedRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	vectors, err := retry.DoValue(ctx, backoff, func(ctx context.Context) ([][]float32, error) {
		return c.do(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	if err := checkCount(texts, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// truncate cuts text to at most limit bytes without splitting a rune.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

// do performs one request. Connection failures and 5xx answers are marked
// retryable.
func (c *Ollama) do(ctx context.Context, body []byte) ([][]float32, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		return nil, retry.RetryableError(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, retry.RetryableError(fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embedResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if embResp.Error != "" {
		return nil, fmt.Errorf("API error: %s", embResp.Error)
	}

	if len(embResp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return embResp.Embeddings, nil
}
