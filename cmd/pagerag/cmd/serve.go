package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mfenderov/pagerag/internal/pdftext"
	"github.com/mfenderov/pagerag/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP backend.

Routes:
  GET  /         liveness text
  POST /ask      {"question", "page_content", "action"} -> {"answer"}
  POST /ask_pdf  multipart "file" + "action" -> {"answer"}
  GET  /healthz  status and cache size
  GET  /metrics  Prometheus metrics

Example:
  pagerag serve --addr 0.0.0.0:5000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	raiseLogFloor(slog.LevelInfo)
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := c.llm.Ping(pingCtx); err != nil {
		slog.Warn("LLM server not reachable yet; requests will fail until it is", "error", err)
	}
	cancel()

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		UploadDir:      cfg.Server.UploadDir,
		AllowOrigins:   cfg.Server.AllowOrigins,
	}, c.pipeline, pdftext.New(), c.registry)

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on http://%s\n", cfg.Server.Addr)
	return srv.Run(ctx)
}
