package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/pagerag/internal/pdftext"
	"github.com/mfenderov/pagerag/internal/scraper"
)

var (
	askQuestion string
	askURL      string
	askFile     string
	askAction   string
	askFormat   string
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question about a web page or a local file",
	Long: `Ask one question about a web page, a text/Markdown file or a PDF.

PDF files are summarized (or explained with --action explain); the question
is not used for PDF retrieval.

Examples:
  # Question about a page
  pagerag ask --url https://go.dev/doc/effective_go --question "How are errors handled?" --action answer

  # Summarize a PDF
  pagerag ask --file report.pdf

  # JSON output for scripting
  pagerag ask --file notes.md --question "What is due?" --format json`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "Question to ask")
	askCmd.Flags().StringVar(&askURL, "url", "", "Web page to fetch")
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "Local PDF, Markdown or text file")
	askCmd.Flags().StringVarP(&askAction, "action", "a", "summarize", "summarize, explain or answer")
	askCmd.Flags().StringVar(&askFormat, "format", "text", "Output format: text or json")
	askCmd.MarkFlagsMutuallyExclusive("url", "file")
	askCmd.MarkFlagsOneRequired("url", "file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	var answer, source string
	switch {
	case askURL != "":
		source = askURL
		s := scraper.New(scraper.Config{
			UserAgent:        cfg.Scraper.UserAgent,
			Timeout:          cfg.Scraper.Timeout,
			TryMarkdownFirst: cfg.Scraper.TryMarkdownFirst,
		})
		page, err := s.Fetch(ctx, askURL)
		if err != nil {
			return err
		}
		answer, err = c.pipeline.AskPage(ctx, question(page.Title), page.Content, askAction)
		if err != nil {
			return err
		}

	case isPDF(askFile):
		source = askFile
		text, err := pdftext.New().ExtractFile(ctx, askFile)
		if err != nil {
			return fmt.Errorf("could not read text from PDF: %w", err)
		}
		answer, err = c.pipeline.AskDocument(ctx, text, askAction)
		if err != nil {
			return err
		}

	default:
		source = askFile
		data, err := os.ReadFile(askFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", askFile, err)
		}
		answer, err = c.pipeline.AskPage(ctx, question(filepath.Base(askFile)), string(data), askAction)
		if err != nil {
			return err
		}
	}

	if askFormat == "json" {
		output, err := json.MarshalIndent(map[string]string{
			"source": source,
			"answer": answer,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(answer))
	return nil
}

// question returns --question, or a generic one naming the source so that
// summarize and explain work without a question.
func question(name string) string {
	if strings.TrimSpace(askQuestion) != "" {
		return askQuestion
	}
	if name == "" {
		name = "this content"
	}
	return "What is " + name + " about?"
}

func isPDF(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 5)
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return string(head) == "%PDF-"
}
