package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mfenderov/pagerag/internal/pipeline"
)

type fakeAsker struct {
	question, content, text, action string
	err                             error
}

func (a *fakeAsker) AskPage(_ context.Context, question, pageContent, action string) (string, error) {
	a.question, a.content, a.action = question, pageContent, action
	if a.err != nil {
		return "", a.err
	}
	return "page answer", nil
}

func (a *fakeAsker) AskDocument(_ context.Context, text, action string) (string, error) {
	a.text, a.action = text, action
	if a.err != nil {
		return "", a.err
	}
	return "pdf answer", nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e fakeExtractor) ExtractFile(context.Context, string) (string, error) {
	return e.text, e.err
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", res.Content[0])
	}
	return text.Text
}

func TestServer_Creation(t *testing.T) {
	s := NewServer(Config{Name: "pagerag", Version: "1.0.0"}, &fakeAsker{}, fakeExtractor{})
	if s.mcpServer == nil {
		t.Error("mcpServer should not be nil")
	}
}

func TestAskPageTool(t *testing.T) {
	asker := &fakeAsker{}
	s := NewServer(Config{Name: "pagerag", Version: "test"}, asker, fakeExtractor{})

	res, err := s.askPageHandler(context.Background(), callTool("ask_page", map[string]any{
		"question":     "What is Go?",
		"page_content": "Go is a language.",
		"action":       "explain",
	}))
	if err != nil {
		t.Fatalf("askPageHandler() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "page answer" {
		t.Errorf("answer = %q", got)
	}
	if asker.question != "What is Go?" || asker.content != "Go is a language." || asker.action != "explain" {
		t.Errorf("asker got (%q, %q, %q)", asker.question, asker.content, asker.action)
	}
}

func TestAskPageTool_MissingInput(t *testing.T) {
	s := NewServer(Config{}, &fakeAsker{err: pipeline.ErrMissingInput}, fakeExtractor{})

	res, err := s.askPageHandler(context.Background(), callTool("ask_page", map[string]any{"question": "q"}))
	if err != nil {
		t.Fatalf("askPageHandler() error = %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error")
	}
	if got := resultText(t, res); got != "No question or page content received" {
		t.Errorf("message = %q", got)
	}
}

func TestAskPDFTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		args      map[string]any
		extractor fakeExtractor
		askErr    error
		wantError bool
		want      string
	}{
		{
			name:      "answer",
			args:      map[string]any{"path": path, "action": "summarize"},
			extractor: fakeExtractor{text: "pdf words"},
			want:      "pdf answer",
		},
		{
			name:      "missing path",
			args:      map[string]any{},
			wantError: true,
			want:      "No PDF uploaded",
		},
		{
			name:      "nonexistent file",
			args:      map[string]any{"path": filepath.Join(t.TempDir(), "missing.pdf")},
			wantError: true,
		},
		{
			name:      "extraction failure",
			args:      map[string]any{"path": path},
			extractor: fakeExtractor{err: errors.New("bad xref")},
			wantError: true,
			want:      "Could not read text from PDF",
		},
		{
			name:      "no text",
			args:      map[string]any{"path": path},
			extractor: fakeExtractor{text: ""},
			askErr:    pipeline.ErrUnreadableDocument,
			wantError: true,
			want:      "Could not read text from PDF",
		},
		{
			name:      "generation failure",
			args:      map[string]any{"path": path},
			extractor: fakeExtractor{text: "words"},
			askErr:    pipeline.ErrGenerationFailure,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{}, &fakeAsker{err: tt.askErr}, tt.extractor)

			res, err := s.askPDFHandler(context.Background(), callTool("ask_pdf", tt.args))
			if err != nil {
				t.Fatalf("askPDFHandler() error = %v", err)
			}
			if res.IsError != tt.wantError {
				t.Fatalf("IsError = %v, want %v (%s)", res.IsError, tt.wantError, resultText(t, res))
			}
			if tt.want != "" {
				if got := resultText(t, res); got != tt.want {
					t.Errorf("text = %q, want %q", got, tt.want)
				}
			}
		})
	}
}
