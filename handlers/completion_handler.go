package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"intake-backend/service"
)

// Completer is the upload completion gate. *service.CompletionService satisfies it.
type Completer interface {
	CheckAndTrigger(ctx context.Context, req service.CompleteRequest) (*service.CompleteResult, error)
}

// CompletionHandler handles HTTP requests signalling a finished upload batch
type CompletionHandler struct {
	gate           Completer
	defaultPatient *uuid.UUID
}

// NewCompletionHandler creates a new completion handler
func NewCompletionHandler(gate Completer, defaultPatient *uuid.UUID) *CompletionHandler {
	return &CompletionHandler{gate: gate, defaultPatient: defaultPatient}
}

// CompleteRequest represents the request body for a finished batch. PatientID
// may be omitted when the deployment has a default patient.
type CompleteRequest struct {
	DocumentIDs []int64 `json:"documentIds"`
	PatientID   string  `json:"patientId"`
}

// Complete handles POST /api/uploads/complete
func (h *CompletionHandler) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if len(req.DocumentIDs) == 0 {
		abort(c, http.StatusBadRequest, "MISSING_DOCUMENT_IDS", "documentIds must be a non-empty list")
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

	result, err := h.gate.CheckAndTrigger(c.Request.Context(), service.CompleteRequest{
		PatientID:   *patientID,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
