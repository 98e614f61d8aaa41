// Package doccache memoises the chunks and vector index built for a document,
// keyed by a fingerprint of its content.
//
// Builds for the same fingerprint are collapsed into one; builds for
// different fingerprints run independently. Failed builds are never stored.
package doccache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/mfenderov/pagerag/internal/vectorindex"
)

const DefaultMaxEntries = 128

var ErrInvalidCapacity = errors.New("cache capacity must be greater than zero")

// Entry is the immutable result of indexing one document. Row i of Index
// belongs to Chunks[i].
type Entry struct {
	Chunks []string
	Index  *vectorindex.Index
}

// BuildFunc produces the entry for a document on a cache miss.
type BuildFunc func(ctx context.Context) (*Entry, error)

type Config struct {
	MaxEntries int
}

// Cache is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, *Entry]
	flights singleflight.Group
	metrics *Metrics
}

// New creates a cache holding at most config.MaxEntries documents. metrics
// may be nil.
func New(config Config, metrics *Metrics) (*Cache, error) {
	if config.MaxEntries <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, config.MaxEntries)
	}
	entries, err := lru.New[string, *Entry](config.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU: %w", err)
	}
	return &Cache{entries: entries, metrics: metrics}, nil
}

// Fingerprint returns the hex SHA-256 digest of content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// GetOrBuild returns the entry for content, calling build only when no entry
// exists and no build for the same content is already running. Concurrent
// callers for the same content share one build and its result. The build
// runs detached from ctx's cancellation so an abandoned caller does not fail
// the others; ctx still bounds how long this caller waits.
func (c *Cache) GetOrBuild(ctx context.Context, content string, build BuildFunc) (*Entry, error) {
	key := Fingerprint(content)

	if entry, ok := c.entries.Get(key); ok {
		c.metrics.hit()
		slog.Debug("document cache hit", "fingerprint", key[:12])
		return entry, nil
	}
	c.metrics.miss()

	buildCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		// another flight may have stored it between Get and DoChan
		if entry, ok := c.entries.Get(key); ok {
			return entry, nil
		}

		start := time.Now()
		entry, err := build(buildCtx)
		c.metrics.build(err)
		if err != nil {
			slog.Warn("document index build failed", "fingerprint", key[:12], "error", err)
			return nil, err
		}
		if entry == nil {
			return nil, fmt.Errorf("build returned no entry")
		}

		// only capacity evictions count; Purge is not one
		if evicted := c.entries.Add(key, entry); evicted {
			slog.Debug("document cache eviction", "size", c.entries.Len())
			c.metrics.evicted()
		}
		c.metrics.size(c.entries.Len())
		slog.Debug("document indexed",
			"fingerprint", key[:12],
			"chunks", len(entry.Chunks),
			"duration", time.Since(start))
		return entry, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Contains reports whether an entry for content is stored, without touching
// its recency.
func (c *Cache) Contains(content string) bool {
	return c.entries.Contains(Fingerprint(content))
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
	c.metrics.size(0)
}
