package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"intake-backend/models"
	"intake-backend/service"
)

// FormManager reads and replaces forms. *service.FormService satisfies it.
type FormManager interface {
	GetForm(ctx context.Context, id int64) (*models.MedicalHistoryForm, error)
	GetLatestForm(ctx context.Context, patientID *uuid.UUID) (*models.MedicalHistoryForm, error)
	ReplaceQuestions(ctx context.Context, req service.ReplaceQuestionsRequest) (*models.MedicalHistoryForm, error)
}

// Reviewer loads and saves human review. *service.ReviewService satisfies it.
type Reviewer interface {
	LoadReview(ctx context.Context, req service.LoadReviewRequest) (*service.ReviewState, error)
	SaveReview(ctx context.Context, req service.SaveReviewRequest) (*service.ReviewState, error)
}

// FormHandler handles HTTP requests for forms and their review
type FormHandler struct {
	forms  FormManager
	review Reviewer
}

// NewFormHandler creates a new form handler
func NewFormHandler(forms FormManager, review Reviewer) *FormHandler {
	return &FormHandler{forms: forms, review: review}
}

// GetLatestForm handles GET /api/forms/latest?patientId=
func (h *FormHandler) GetLatestForm(c *gin.Context) {
	patientID, err := parsePatient(c.Query("patientId"), nil)
	if err != nil {
		abort(c, http.StatusBadRequest, "INVALID_PATIENT_ID", "Invalid patientId format")
		return
	}

	form, err := h.forms.GetLatestForm(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": form})
}

// GetForm handles GET /api/forms/:id
func (h *FormHandler) GetForm(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	form, err := h.forms.GetForm(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": form})
}

// ReplaceQuestionsRequest represents the request body for a full question replace
type ReplaceQuestionsRequest struct {
	Questions models.Questions `json:"questions"`
	Version   int64            `json:"version"`
}

// ReplaceQuestions handles PUT /api/forms/:id/questions
func (h *FormHandler) ReplaceQuestions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ReplaceQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	form, err := h.forms.ReplaceQuestions(c.Request.Context(), service.ReplaceQuestionsRequest{
		FormID:    id,
		Questions: req.Questions,
		Version:   req.Version,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": form})
}

// GetFormReview handles GET /api/forms/:id/review
func (h *FormHandler) GetFormReview(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.loadReview(c, service.LoadReviewRequest{FormID: &id})
}

// GetPatientReview handles GET /api/patients/:patientId/review
func (h *FormHandler) GetPatientReview(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		abort(c, http.StatusBadRequest, "INVALID_PATIENT_ID", "Invalid patientId format")
		return
	}
	h.loadReview(c, service.LoadReviewRequest{PatientID: &patientID})
}

func (h *FormHandler) loadReview(c *gin.Context, req service.LoadReviewRequest) {
	state, err := h.review.LoadReview(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": state})
}

// SaveReviewRequest represents the request body for saving review answers
type SaveReviewRequest struct {
	Version int64                      `json:"version"`
	Answers map[string]json.RawMessage `json:"answers" binding:"required"`
}

// SaveReview handles POST /api/forms/:id/review
func (h *FormHandler) SaveReview(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SaveReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	state, err := h.review.SaveReview(c.Request.Context(), service.SaveReviewRequest{
		FormID:  id,
		Version: req.Version,
		Answers: req.Answers,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": state})
}
