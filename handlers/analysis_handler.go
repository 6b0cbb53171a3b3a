package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"intake-backend/service"
)

// Analyzer runs extraction for a patient. *service.AnalysisService satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*service.AnalyzeResult, error)
}

// AnalysisHandler handles HTTP requests for document analysis
type AnalysisHandler struct {
	analyzer       Analyzer
	defaultPatient *uuid.UUID
}

// NewAnalysisHandler creates a new analysis handler. defaultPatient is used
// when a request names no patient; nil makes the patient mandatory.
func NewAnalysisHandler(analyzer Analyzer, defaultPatient *uuid.UUID) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer, defaultPatient: defaultPatient}
}

// AnalyzeRequest represents the request body for an analysis run
type AnalyzeRequest struct {
	PatientID   string  `json:"patientId"`
	DocumentIDs []int64 `json:"documentIds"`
	FormID      *int64  `json:"formId"`
}

// Analyze handles POST /api/analysis
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	patientID, err := parsePatient(req.PatientID, h.defaultPatient)
	if err != nil {
		abort(c, http.StatusBadRequest, "INVALID_PATIENT_ID", "Invalid patientId format")
		return
	}
	if patientID == nil {
		abort(c, http.StatusBadRequest, "MISSING_PATIENT_ID", "patientId is required")
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), service.AnalyzeRequest{
		PatientID:   *patientID,
		DocumentIDs: req.DocumentIDs,
		FormID:      req.FormID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
