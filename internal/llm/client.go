// Package llm talks to a local Ollama server's completion endpoint.
package llm

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
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2:1b"
	DefaultTimeout = 300 * time.Second
)

var (
	// ErrTimeout is returned when the model does not answer within the
	// configured timeout.
	ErrTimeout = errors.New("llm request timed out")
	// ErrGeneration covers every other failed generation: transport errors,
	// non-200 answers and undecodable bodies.
	ErrGeneration = errors.New("llm generation failed")
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds LLM client configuration.
type Config struct {
	BaseURL    string        // e.g. http://localhost:11434
	SocketPath string        // optional unix socket, overrides BaseURL
	Model      string        // e.g. "llama3.2:1b"
	Timeout    time.Duration // upper bound for one generation
}

// Client wraps the Ollama /api/generate endpoint with streaming disabled.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	timeout    time.Duration
}

// New creates a new LLM client.
func New(config Config) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
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
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		model:      config.Model,
		timeout:    config.Timeout,
	}, nil
}

// generateRequest is the request payload for /api/generate.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the non-streaming response from /api/generate.
type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Generate sends prompt to the model and returns its full response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, err)
		}
		return "", fmt.Errorf("%w: request failed: %w", ErrGeneration, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, err)
		}
		return "", fmt.Errorf("%w: failed to read response: %w", ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: API error (status %d): %s", ErrGeneration, resp.StatusCode, string(respBody))
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal response: %w", ErrGeneration, err)
	}

	if genResp.Error != "" {
		return "", fmt.Errorf("%w: API error: %s", ErrGeneration, genResp.Error)
	}

	slog.Debug("generation complete", "model", c.model, "duration", time.Since(start), "chars", len(genResp.Response))
	return genResp.Response, nil
}

// Ping checks that the server is reachable by listing local models.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach llm server: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm server returned status %d", resp.StatusCode)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
