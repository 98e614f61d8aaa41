package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/pagerag/internal/pipeline"
)

// Asker answers questions about page content and document text.
type Asker interface {
	AskPage(ctx context.Context, question, pageContent, action string) (string, error)
	AskDocument(ctx context.Context, text, action string) (string, error)
}

// TextExtractor reads the text of a document on disk.
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Server exposes the pipeline as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	asker     Asker
	extractor TextExtractor
}

// NewServer creates a new MCP server with the ask tools.
func NewServer(config Config, asker Asker, extractor TextExtractor) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		asker:     asker,
		extractor: extractor,
	}

	askPageTool := mcp.NewTool("ask_page",
		mcp.WithDescription("Answer a question about the text of a web page. Returns the model's answer as plain text."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question about the page"),
		),
		mcp.WithString("page_content",
			mcp.Required(),
			mcp.Description("Extracted page text, Markdown or HTML"),
		),
		mcp.WithString("action",
			mcp.Description("summarize (default), explain, or anything else to answer the question"),
		),
	)
	mcpServer.AddTool(askPageTool, s.askPageHandler)

	askPDFTool := mcp.NewTool("ask_pdf",
		mcp.WithDescription("Summarize or explain a local PDF file."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
		mcp.WithString("action",
			mcp.Description("summarize (default) or explain"),
		),
	)
	mcpServer.AddTool(askPDFTool, s.askPDFHandler)

	return s
}

// askPageHandler handles the ask_page tool call.
func (s *Server) askPageHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := req.GetString("question", "")
	pageContent := req.GetString("page_content", "")
	action := req.GetString("action", "")

	answer, err := s.asker.AskPage(ctx, question, pageContent, action)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(answer), nil
}

// askPDFHandler handles the ask_pdf tool call.
func (s *Server) askPDFHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil || path == "" {
		return mcp.NewToolResultError("No PDF uploaded"), nil
	}
	if _, err := os.Stat(path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot open %s: %v", path, err)), nil
	}

	text, err := s.extractor.ExtractFile(ctx, path)
	if err != nil {
		slog.Debug("pdf extraction failed", "path", path, "error", err)
		return mcp.NewToolResultError("Could not read text from PDF"), nil
	}

	answer, err := s.asker.AskDocument(ctx, text, req.GetString("action", ""))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, pipeline.ErrMissingInput):
		return mcp.NewToolResultError("No question or page content received")
	case errors.Is(err, pipeline.ErrUnreadableDocument):
		return mcp.NewToolResultError("Could not read text from PDF")
	default:
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err))
	}
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
