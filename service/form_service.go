package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"intake-backend/models"
)

// FormService exposes read and replace operations on forms.
type FormService struct {
	forms  FormStore
	logger zerolog.Logger
}

// FormServiceOption is a functional option for FormService
type FormServiceOption func(*FormService)

// FormWithStore sets the form store
func FormWithStore(store FormStore) FormServiceOption {
	return func(s *FormService) {
		s.forms = store
	}
}

// FormWithLogger sets the logger
func FormWithLogger(logger zerolog.Logger) FormServiceOption {
	return func(s *FormService) {
		s.logger = logger
	}
}

// NewFormService creates a new form service
func NewFormService(opts ...FormServiceOption) *FormService {
	s := &FormService{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetForm retrieves a form by ID. Malformed stored questions are replaced by
// template defaults in the returned value.
func (s *FormService) GetForm(ctx context.Context, id int64) (*models.MedicalHistoryForm, error) {
	if s.forms == nil {
		return nil, errors.New("form store not set")
	}
	form, err := s.forms.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(fmt.Sprintf("form %d not found", id), err)
	}
	form.Questions, _ = normalizeQuestions(form, s.logger)
	return form, nil
}

// GetLatestForm returns the patient's latest form, or the global latest when
// patientID is nil.
func (s *FormService) GetLatestForm(ctx context.Context, patientID *uuid.UUID) (*models.MedicalHistoryForm, error) {
	if s.forms == nil {
		return nil, errors.New("form store not set")
	}
	var (
		form *models.MedicalHistoryForm
		err  error
	)
	if patientID != nil {
		form, err = s.forms.GetLatestForPatient(ctx, *patientID)
	} else {
		form, err = s.forms.GetLatest(ctx)
	}
	if err != nil {
		return nil, fromStore("no form found", err)
	}
	form.Questions, _ = normalizeQuestions(form, s.logger)
	return form, nil
}

// ReplaceQuestionsRequest is a full replace of a form's questions.
type ReplaceQuestionsRequest struct {
	FormID    int64
	Questions models.Questions
	// Version 0 overwrites unconditionally.
	Version int64
}

// ReplaceQuestions validates and stores the full question list.
func (s *FormService) ReplaceQuestions(ctx context.Context, req ReplaceQuestionsRequest) (*models.MedicalHistoryForm, error) {
	if s.forms == nil {
		return nil, errors.New("form store not set")
	}
	if len(req.Questions) == 0 {
		return nil, ValidationError("questions must be a non-empty list", map[string]string{"questions": "required"})
	}
	if err := req.Questions.Validate(); err != nil {
		return nil, &Error{Kind: KindValidation, Message: "invalid questions", Err: err}
	}

	if _, err := s.forms.UpdateQuestions(ctx, req.FormID, req.Questions, req.Version); err != nil {
		return nil, fromStore(fmt.Sprintf("failed to update form %d", req.FormID), err)
	}
	return s.GetForm(ctx, req.FormID)
}
