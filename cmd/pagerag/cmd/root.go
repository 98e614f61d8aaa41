package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfenderov/pagerag/internal/config"
)

var (
	cfgFile  string
	verbose  bool
	cfg      config.Config
	logLevel = new(slog.LevelVar)
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "pagerag",
	Short: "pagerag: question answering over a single web page or PDF",
	Long: `pagerag chunks the text of a web page or PDF, embeds the chunks, retrieves
the ones closest to your question and asks a local Ollama model.

Commands:
  serve  Start the HTTP backend used by the browser extension
  mcp    Start the MCP server on stdio
  ask    Ask one question about a URL or a local file`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	logLevel.Set(slog.LevelWarn)
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// raiseLogFloor lowers the threshold to at least level unless --verbose
// already set a lower one.
func raiseLogFloor(level slog.Level) {
	if logLevel.Level() > level {
		logLevel.Set(level)
	}
}

func initConfig() {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/pagerag")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// PAGERAG_LLM_MODEL -> llm.model
	viper.SetEnvPrefix("PAGERAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	for _, key := range []string{
		"server.addr",
		"server.read_timeout",
		"server.write_timeout",
		"server.max_upload_bytes",
		"server.upload_dir",
		"server.allow_origins",
		"embeddings.provider",
		"embeddings.base_url",
		"embeddings.socket_path",
		"embeddings.model",
		"embeddings.api_key",
		"embeddings.timeout",
		"embeddings.max_retries",
		"embeddings.retry_backoff",
		"embeddings.dimensions",
		"llm.base_url",
		"llm.socket_path",
		"llm.model",
		"llm.timeout",
		"retrieval.chunk_size",
		"retrieval.top_k",
		"retrieval.document_query",
		"cache.max_entries",
		"scraper.timeout",
		"scraper.user_agent",
		"scraper.try_markdown_first",
		"mcp.name",
		"mcp.version",
	} {
		viper.BindEnv(key, "PAGERAG_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Handle special case: origins as comma-separated string from env
	if origins := os.Getenv("PAGERAG_SERVER_ALLOW_ORIGINS"); origins != "" {
		cfg.Server.AllowOrigins = strings.Split(origins, ",")
	}
}
