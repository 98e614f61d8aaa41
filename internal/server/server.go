// Package server exposes the question answering pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const LivenessMessage = "AI backend running with RAG (Web + PDF) + Ollama"

// Asker answers questions about page content and document text.
type Asker interface {
	AskPage(ctx context.Context, question, pageContent, action string) (string, error)
	AskDocument(ctx context.Context, text, action string) (string, error)
	CacheLen() int
}

// TextExtractor reads the text of an uploaded file stored at path.
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	UploadDir      string // empty means os.TempDir()
	AllowOrigins   []string
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	config    Config
	asker     Asker
	extractor TextExtractor
	router    *gin.Engine
}

// New builds the router. Request metrics are registered with reg and served
// from /metrics together with everything else reg holds.
func New(config Config, asker Asker, extractor TextExtractor, reg *prometheus.Registry) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 32 << 20
	}
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"*"}
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		config:    config,
		asker:     asker,
		extractor: extractor,
	}

	metrics := newHTTPMetrics(reg)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(MetricsMiddleware(metrics))
	r.Use(CORSMiddleware(config.AllowOrigins))

	r.GET("/", s.handleIndex)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	r.POST("/ask", s.handleAsk)
	r.POST("/ask_pdf", s.handleAskPDF)

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on config.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "address", fmt.Sprintf("http://%s", ln.Addr()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Debug("shutdown requested, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("server shutdown completed")
	return nil
}
