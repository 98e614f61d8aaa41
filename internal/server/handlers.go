package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mfenderov/pagerag/internal/pipeline"
	"github.com/mfenderov/pagerag/pkg/models"
)

// User-facing notices returned with status 200 when the input is unusable.
const (
	MsgMissingInput = "No question or page content received"
	MsgNoPDF        = "No PDF uploaded"
	MsgUnreadable   = "Could not read text from PDF"
)

func (s *Server) handleIndex(c *gin.Context) {
	c.String(http.StatusOK, LivenessMessage)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok", CacheEntries: s.asker.CacheLen()})
}

func (s *Server) handleAsk(c *gin.Context) {
	var req models.AskRequest
	// the body is JSON whatever Content-Type says
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("invalid JSON body: %v", err)})
		return
	}

	answer, err := s.asker.AskPage(c.Request.Context(), req.Question, req.PageContent, req.Action)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AskResponse{Answer: answer})
}

func (s *Server) handleAskPDF(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusOK, models.AskResponse{Answer: MsgNoPDF})
		return
	}
	action := c.PostForm("action")

	text, err := s.extractUpload(c, fh)
	if err != nil {
		slog.Warn("failed to read uploaded PDF", "filename", fh.Filename, "error", err)
		c.JSON(http.StatusOK, models.AskResponse{Answer: MsgUnreadable})
		return
	}

	answer, err := s.asker.AskDocument(c.Request.Context(), text, action)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AskResponse{Answer: answer})
}

// extractUpload stores the upload in a fresh temp file, extracts its text
// and removes the file before returning.
func (s *Server) extractUpload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.config.UploadDir, "pagerag-upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove upload", "path", path, "error", err)
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	return s.extractor.ExtractFile(c.Request.Context(), path)
}

// writeError maps pipeline failures to status codes. Input problems are
// answered with a notice and status 200.
func (s *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, pipeline.ErrMissingInput):
		c.JSON(http.StatusOK, models.AskResponse{Answer: MsgMissingInput})
	case errors.Is(err, pipeline.ErrUnreadableDocument):
		c.JSON(http.StatusOK, models.AskResponse{Answer: MsgUnreadable})
	case errors.Is(err, pipeline.ErrEmbeddingFailure):
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: pipeline.ErrEmbeddingFailure.Error()})
	case errors.Is(err, pipeline.ErrIndexFailure):
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: pipeline.ErrIndexFailure.Error()})
	case errors.Is(err, pipeline.ErrGenerationTimeout):
		c.JSON(http.StatusGatewayTimeout, models.ErrorResponse{Error: pipeline.ErrGenerationTimeout.Error()})
	case errors.Is(err, pipeline.ErrGenerationFailure):
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: pipeline.ErrGenerationFailure.Error()})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}
