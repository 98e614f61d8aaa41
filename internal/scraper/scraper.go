// Package scraper fetches a single web page for the ask command.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/mfenderov/pagerag/internal/content"
	"github.com/mfenderov/pagerag/pkg/models"
)

// ErrNoContent is returned when the page answered but had an empty body.
var ErrNoContent = errors.New("page has no content")

// Config holds scraper configuration.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	TryMarkdownFirst bool // Try to fetch a markdown version of the page first
}

// Scraper fetches web pages and returns their normalised content.
type Scraper struct {
	config     Config
	httpClient *http.Client
}

// New creates a new Scraper with the given configuration.
func New(config Config) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "pagerag/1.0"
	}
	return &Scraper{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Fetch downloads pageURL and converts HTML bodies to Markdown. Links are
// not followed.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (*models.Page, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", pageURL)
	}

	if s.config.TryMarkdownFirst {
		if md, contentType, ok := s.tryMarkdownVariants(ctx, pageURL); ok {
			slog.Debug("using markdown variant", "url", pageURL)
			return &models.Page{
				URL:         pageURL,
				Content:     strings.TrimSpace(md),
				ContentType: contentType,
				FetchedAt:   time.Now(),
			}, nil
		}
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(s.config.UserAgent),
	)
	c.SetRequestTimeout(s.config.Timeout)

	var (
		page     *models.Page
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			slog.Debug("fetch cancelled", "url", r.URL.String())
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		body := string(r.Body)
		contentType := r.Headers.Get("Content-Type")
		slog.Debug("fetched page", "url", r.Request.URL.String(), "content_type", contentType, "size", len(body))

		p := &models.Page{
			URL:         r.Request.URL.String(),
			ContentType: contentType,
			FetchedAt:   time.Now(),
		}
		if content.IsMarkdownContentType(contentType) || content.IsMarkdownPath(p.URL) {
			p.Content = strings.TrimSpace(body)
		} else {
			if strings.Contains(strings.ToLower(contentType), "html") || content.Detect(body) == content.KindHTML {
				p.Title = content.ExtractTitle(body)
			}
			p.Content, fetchErr = content.Normalise(body)
		}
		page = p
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("failed to fetch %s (status %d): %w", pageURL, r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if page == nil || page.Content == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, pageURL)
	}
	return page, nil
}

// markdownVariants returns potential markdown versions of a URL.
func markdownVariants(pageURL string) []string {
	// GitHub blob pages have a raw markdown twin
	if strings.Contains(pageURL, "github.com") && strings.Contains(pageURL, "/blob/") {
		raw := strings.Replace(pageURL, "github.com", "raw.githubusercontent.com", 1)
		raw = strings.Replace(raw, "/blob/", "/", 1)
		return []string{raw}
	}
	if content.IsMarkdownPath(pageURL) {
		return nil
	}
	return []string{strings.TrimSuffix(pageURL, "/") + ".md"}
}

// tryMarkdownVariants attempts to fetch markdown versions of the URL.
// Returns the content, content-type, and success flag.
func (s *Scraper) tryMarkdownVariants(ctx context.Context, pageURL string) (string, string, bool) {
	for _, variantURL := range markdownVariants(pageURL) {
		if ctx.Err() != nil {
			return "", "", false
		}
		if body, contentType, ok := s.tryFetchMarkdown(ctx, variantURL); ok {
			return body, contentType, true
		}
	}
	return "", "", false
}

// tryFetchMarkdown attempts to fetch a single markdown URL.
func (s *Scraper) tryFetchMarkdown(ctx context.Context, variantURL string) (string, string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, variantURL, nil)
	if err != nil {
		return "", "", false
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", false
	}

	text := string(body)
	contentType := resp.Header.Get("Content-Type")
	if content.IsMarkdownContentType(contentType) || content.Detect(text) == content.KindMarkdown {
		return text, contentType, true
	}
	return "", "", false
}
