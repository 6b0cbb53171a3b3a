package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"intake-backend/models"
	"intake-backend/repository"
	"intake-backend/service"
	"intake-backend/storage"
)

// DefaultMaxUploadBytes caps a single upload when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// DocumentStore persists document rows. *repository.DocumentRepository satisfies it.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document, rekey func(attempt int) string) error
	GetByID(ctx context.Context, id int64) (*models.Document, error)
	RecordAnalysis(ctx context.Context, id int64, docType string, llmOutput json.RawMessage) (*models.Document, error)
}

// DocumentHandler handles HTTP requests for uploaded documents
type DocumentHandler struct {
	documents      DocumentStore
	storage        storage.Storage
	defaultPatient *uuid.UUID
	maxUploadBytes int64
	logger         zerolog.Logger
	allowedTypes   map[string]bool
}

// DocumentHandlerOption configures a DocumentHandler
type DocumentHandlerOption func(*DocumentHandler)

// DocumentWithDefaultPatient assigns uploads without a patientId to id.
func DocumentWithDefaultPatient(id *uuid.UUID) DocumentHandlerOption {
	return func(h *DocumentHandler) {
		h.defaultPatient = id
	}
}

// DocumentWithMaxUploadBytes sets the per-file size limit.
func DocumentWithMaxUploadBytes(n int64) DocumentHandlerOption {
	return func(h *DocumentHandler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// DocumentWithLogger sets the logger
func DocumentWithLogger(logger zerolog.Logger) DocumentHandlerOption {
	return func(h *DocumentHandler) {
		h.logger = logger
	}
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents DocumentStore, store storage.Storage, opts ...DocumentHandlerOption) *DocumentHandler {
	h := &DocumentHandler{
		documents:      documents,
		storage:        store,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         zerolog.Nop(),
		allowedTypes: map[string]bool{
			"application/pdf": true,
			"image/jpeg":      true,
			"image/png":       true,
			"image/heic":      true,
			"image/webp":      true,
			"text/plain":      true,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Upload handles POST /api/documents/upload
//
// The row is written first so that a duplicate storage key can be replaced
// before any bytes are stored under it.
func (h *DocumentHandler) Upload(c *gin.Context) {
	// Leave room for the multipart envelope around the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	patientID, err := parsePatient(c.PostForm("patientId"), h.defaultPatient)
	if err != nil {
		abort(c, http.StatusBadRequest, "INVALID_PATIENT_ID", "Invalid patientId format")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxUploadBytes))
			return
		}
		abort(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		abort(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxUploadBytes))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentType(fileHeader.Filename)
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if !h.allowedTypes[contentType] {
		abort(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "File type not allowed. Allowed types: PDF, JPEG, PNG, HEIC, WEBP, TXT")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abort(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", err.Error())
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	doc := &models.Document{
		PatientID:   patientID,
		DisplayName: fileHeader.Filename,
		RawLocation: storage.ObjectKey(patientID, fileHeader.Filename),
		ContentType: contentType,
		Size:        fileHeader.Size,
	}
	rekey := func(int) string { return storage.ObjectKey(patientID, fileHeader.Filename) }
	if err := h.documents.Create(ctx, doc, rekey); err != nil {
		respondError(c, service.StorageError("Failed to save document record", err))
		return
	}

	if err := h.storage.Upload(ctx, doc.RawLocation, contentType, file); err != nil {
		h.logger.Error().Err(err).
			Int64("document_id", doc.ID).
			Str("key", doc.RawLocation).
			Msg("document row written but upload failed")
		respondError(c, service.StorageError("Failed to upload file", err))
		return
	}

	h.logger.Info().
		Int64("document_id", doc.ID).
		Int64("size", doc.Size).
		Str("content_type", contentType).
		Msg("document uploaded")

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": doc})
}

// GetDocument handles GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	doc, err := h.documents.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, storeError(id, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    doc,
		"ready":   doc.Ready(),
	})
}

// GetContent handles GET /api/documents/:id/content
func (h *DocumentHandler) GetContent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	doc, err := h.documents.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, storeError(id, err))
		return
	}

	reader, err := h.storage.Download(c.Request.Context(), doc.RawLocation)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			respondError(c, service.NotFoundError(fmt.Sprintf("content of document %d not found", id), err))
			return
		}
		respondError(c, service.StorageError("Failed to download file", err))
		return
	}
	defer reader.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = storage.ContentType(doc.DisplayName)
	}
	size := doc.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, contentType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", storage.SanitizeFilename(doc.DisplayName)),
	})
}

// RecordAnalysisRequest is the body posted by the upstream OCR step.
type RecordAnalysisRequest struct {
	Type      string          `json:"type" binding:"required"`
	LLMOutput json.RawMessage `json:"llmOutput"`
}

// RecordAnalysis handles PUT /api/documents/:id/analysis
func (h *DocumentHandler) RecordAnalysis(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req RecordAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", "type is required")
		return
	}
	if len(req.LLMOutput) > 0 && !json.Valid(req.LLMOutput) {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", "llmOutput must be valid JSON")
		return
	}

	doc, err := h.documents.RecordAnalysis(c.Request.Context(), id, req.Type, req.LLMOutput)
	if err != nil {
		respondError(c, storeError(id, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    doc,
		"ready":   doc.Ready(),
	})
}

func storeError(id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return service.NotFoundError(fmt.Sprintf("document %d not found", id), err)
	}
	return service.StorageError(fmt.Sprintf("failed to load document %d", id), err)
}
