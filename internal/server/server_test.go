package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/pagerag/internal/doccache"
	"github.com/mfenderov/pagerag/internal/embeddings"
	"github.com/mfenderov/pagerag/internal/pdftext"
	"github.com/mfenderov/pagerag/internal/pipeline"
	"github.com/mfenderov/pagerag/internal/retriever"
	"github.com/mfenderov/pagerag/pkg/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type countingEmbedder struct {
	inner *embeddings.Hash
	calls atomic.Int32
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	return e.inner.Embed(ctx, texts)
}

type mockLLM struct {
	mu      sync.Mutex
	prompts []string
}

func (g *mockLLM) Generate(_ context.Context, p string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	return "mock answer", nil
}

// recordingExtractor remembers the paths it was asked to read.
type recordingExtractor struct {
	inner TextExtractor
	paths []string
}

func (e *recordingExtractor) ExtractFile(ctx context.Context, path string) (string, error) {
	e.paths = append(e.paths, path)
	return e.inner.ExtractFile(ctx, path)
}

type harness struct {
	server    *Server
	embedder  *countingEmbedder
	llm       *mockLLM
	cache     *doccache.Cache
	extractor *recordingExtractor
	uploadDir string
	registry  *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	cache, err := doccache.New(doccache.Config{MaxEntries: 16}, doccache.NewMetrics(reg))
	require.NoError(t, err)

	emb := &countingEmbedder{inner: embeddings.NewHash(64)}
	llm := &mockLLM{}
	p := pipeline.New(pipeline.Config{ChunkSize: 400, TopK: 3}, cache, emb, retriever.New(emb, 3), llm)

	uploadDir := t.TempDir()
	ext := &recordingExtractor{inner: pdftext.New()}
	srv := New(Config{UploadDir: uploadDir}, p, ext, reg)

	return &harness{server: srv, embedder: emb, llm: llm, cache: cache, extractor: ext, uploadDir: uploadDir, registry: reg}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

func askRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeAnswer(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Answer
}

// blankPDF returns a one-page PDF with no content stream.
func blankPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, filename string, data []byte, action string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if action != "" {
		require.NoError(t, mw.WriteField("action", action))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/ask_pdf", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIndex(t *testing.T) {
	h := newHarness(t)
	w := h.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, LivenessMessage, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestAsk_SingleChunkAnswer(t *testing.T) {
	h := newHarness(t)
	content := "The sky is blue. Water is wet. Fire is hot."

	w := h.do(askRequest(t, models.AskRequest{
		Question:    "What color is the sky?",
		PageContent: content,
		Action:      "answer",
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "mock answer", decodeAnswer(t, w))
	require.Len(t, h.llm.prompts, 1)
	assert.Contains(t, h.llm.prompts[0], content)
	assert.Contains(t, h.llm.prompts[0], "What color is the sky?")
	assert.Contains(t, h.llm.prompts[0], "Answer the question using the content below.")
}

func TestAsk_ActionIsCaseSensitive(t *testing.T) {
	h := newHarness(t)

	w := h.do(askRequest(t, models.AskRequest{
		Question:    "What color is the sky?",
		PageContent: "The sky is blue.",
		Action:      "Summarize",
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, h.llm.prompts, 1)
	assert.Contains(t, h.llm.prompts[0], "Answer the question using the content below.")
	assert.NotContains(t, h.llm.prompts[0], "bullet points")
}

func TestAsk_SecondQuestionReusesIndex(t *testing.T) {
	h := newHarness(t)
	content := strings.Repeat("gophers dig tunnels under the garden ", 200)

	w := h.do(askRequest(t, models.AskRequest{Question: "who digs?", PageContent: content}))
	require.Equal(t, http.StatusOK, w.Code)
	// chunk batch plus query
	assert.Equal(t, int32(2), h.embedder.calls.Load())

	w = h.do(askRequest(t, models.AskRequest{Question: "where?", PageContent: content, Action: "explain"}))
	require.Equal(t, http.StatusOK, w.Code)
	// only the new query
	assert.Equal(t, int32(3), h.embedder.calls.Load())
	assert.Equal(t, 1, h.cache.Len())
}

func TestAsk_EmptyContent(t *testing.T) {
	tests := []struct {
		name string
		body models.AskRequest
	}{
		{"empty page content", models.AskRequest{Question: "q", PageContent: ""}},
		{"missing question", models.AskRequest{PageContent: "text"}},
		{"whitespace content", models.AskRequest{Question: "q", PageContent: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			w := h.do(askRequest(t, tt.body))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"answer":"No question or page content received"}`, w.Body.String())
			assert.Zero(t, h.embedder.calls.Load())
			assert.Empty(t, h.llm.prompts)
		})
	}
}

func TestAsk_MalformedJSON(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":`))
	w := h.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestAsk_JSONWithoutContentType(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q","page_content":"some words"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := h.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mock answer", decodeAnswer(t, w))
}

func TestAskPDF_NoText(t *testing.T) {
	h := newHarness(t)
	w := h.do(uploadRequest(t, "file", "scan.pdf", blankPDF(), ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"Could not read text from PDF"}`, w.Body.String())
	assert.Empty(t, h.llm.prompts)

	require.Len(t, h.extractor.paths, 1)
	assert.Equal(t, h.uploadDir, filepath.Dir(h.extractor.paths[0]))
	_, err := os.Stat(h.extractor.paths[0])
	assert.True(t, errors.Is(err, os.ErrNotExist), "temp file should be removed, stat err = %v", err)

	entries, err := os.ReadDir(h.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAskPDF_NotAPDF(t *testing.T) {
	h := newHarness(t)
	w := h.do(uploadRequest(t, "file", "notes.pdf", []byte("plain text pretending to be a pdf"), ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Could not read text from PDF", decodeAnswer(t, w))

	entries, err := os.ReadDir(h.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAskPDF_MissingFile(t *testing.T) {
	h := newHarness(t)

	w := h.do(uploadRequest(t, "", "", nil, "summarize"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No PDF uploaded", decodeAnswer(t, w))

	w = h.do(uploadRequest(t, "document", "x.pdf", blankPDF(), ""))
	assert.Equal(t, "No PDF uploaded", decodeAnswer(t, w))

	w = h.do(httptest.NewRequest(http.MethodPost, "/ask_pdf", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No PDF uploaded", decodeAnswer(t, w))

	assert.Empty(t, h.extractor.paths)
}

type textExtractor string

func (e textExtractor) ExtractFile(context.Context, string) (string, error) {
	return string(e), nil
}

func TestAskPDF_WithText(t *testing.T) {
	reg := prometheus.NewRegistry()
	cache, err := doccache.New(doccache.Config{MaxEntries: 4}, nil)
	require.NoError(t, err)
	emb := embeddings.NewHash(32)
	llm := &mockLLM{}
	p := pipeline.New(pipeline.Config{}, cache, emb, retriever.New(emb, 3), llm)
	srv := New(Config{UploadDir: t.TempDir()}, p, textExtractor("quarterly revenue grew strongly"), reg)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "file", "report.pdf", blankPDF(), "summarize"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "mock answer", decodeAnswer(t, w))
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Summarize this PDF in 5 clear bullet points.")
	assert.Contains(t, llm.prompts[0], "quarterly revenue grew strongly")
}

func TestAskPDF_UnknownActionExplains(t *testing.T) {
	cache, err := doccache.New(doccache.Config{MaxEntries: 4}, nil)
	require.NoError(t, err)
	emb := embeddings.NewHash(32)
	llm := &mockLLM{}
	p := pipeline.New(pipeline.Config{}, cache, emb, retriever.New(emb, 3), llm)
	srv := New(Config{UploadDir: t.TempDir()}, p, textExtractor("quarterly revenue grew strongly"), prometheus.NewRegistry())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "file", "report.pdf", blankPDF(), "Summarize"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Explain this PDF in simple words with an example.")
}

func TestAskPDF_TooLarge(t *testing.T) {
	srv := New(Config{UploadDir: t.TempDir(), MaxUploadBytes: 512}, &stubAsker{}, textExtractor("x"), nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "file", "big.pdf", bytes.Repeat([]byte("A"), 4096), ""))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

type stubAsker struct {
	err error
}

func (a *stubAsker) AskPage(context.Context, string, string, string) (string, error) {
	return "ok", a.err
}

func (a *stubAsker) AskDocument(context.Context, string, string) (string, error) {
	return "ok", a.err
}

func (a *stubAsker) CacheLen() int { return 7 }

func TestAsk_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"embedding", fmt.Errorf("%w: refused", pipeline.ErrEmbeddingFailure), http.StatusInternalServerError},
		{"index", fmt.Errorf("%w: dim", pipeline.ErrIndexFailure), http.StatusInternalServerError},
		{"generation", fmt.Errorf("%w: 500", pipeline.ErrGenerationFailure), http.StatusBadGateway},
		{"timeout", fmt.Errorf("%w: 300s", pipeline.ErrGenerationTimeout), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(Config{}, &stubAsker{err: tt.err}, textExtractor("x"), nil)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, askRequest(t, models.AskRequest{Question: "q", PageContent: "c"}))

			assert.Equal(t, tt.status, w.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		srv := New(Config{}, &stubAsker{}, textExtractor(""), nil)

		req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
		req.Header.Set("Origin", "chrome-extension://abc")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("allow list", func(t *testing.T) {
		srv := New(Config{AllowOrigins: []string{"https://allowed.example"}}, &stubAsker{}, textExtractor(""), nil)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://allowed.example")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, "https://allowed.example", w.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		w = httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestID(t *testing.T) {
	srv := New(Config{}, &stubAsker{}, textExtractor(""), nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	h.do(askRequest(t, models.AskRequest{Question: "q", PageContent: "some page words"}))

	w := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","cache_entries":1}`, w.Body.String())

	w = h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `pagerag_http_requests_total{method="POST",route="/ask",status="200"} 1`)
	assert.Contains(t, body, "pagerag_doccache_builds_total 1")
	assert.Contains(t, body, "pagerag_doccache_entries 1")
}

func TestServe_GracefulShutdown(t *testing.T) {
	srv := New(Config{}, &stubAsker{}, textExtractor(""), nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, LivenessMessage, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
