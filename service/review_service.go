package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"intake-backend/models"
	"intake-backend/repository"
)

// ReviewStatus is the outcome of loading a form for review.
type ReviewStatus string

const (
	ReviewNoForm      ReviewStatus = "no_form"
	ReviewComplete    ReviewStatus = "complete"
	ReviewNeedsReview ReviewStatus = "needs_review"
	ReviewSaved       ReviewStatus = "saved"
)

// ReviewService partitions form questions by confidence and applies user answers.
type ReviewService struct {
	forms  FormStore
	logger zerolog.Logger
}

// ReviewServiceOption is a functional option for ReviewService
type ReviewServiceOption func(*ReviewService)

// ReviewWithFormStore sets the form store
func ReviewWithFormStore(store FormStore) ReviewServiceOption {
	return func(s *ReviewService) {
		s.forms = store
	}
}

// ReviewWithLogger sets the logger
func ReviewWithLogger(logger zerolog.Logger) ReviewServiceOption {
	return func(s *ReviewService) {
		s.logger = logger
	}
}

// NewReviewService creates a new review service
func NewReviewService(opts ...ReviewServiceOption) *ReviewService {
	s := &ReviewService{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadReviewRequest selects the form to review. FormID wins over PatientID;
// with neither, the globally latest form is used.
type LoadReviewRequest struct {
	FormID    *int64
	PatientID *uuid.UUID
}

// ReviewState is a form split into questions needing review and resolved ones.
type ReviewState struct {
	Status      ReviewStatus               `json:"status"`
	Form        *models.MedicalHistoryForm `json:"form,omitempty"`
	NeedsReview models.Questions           `json:"needsReview"`
	Resolved    models.Questions           `json:"resolved"`
}

// LoadReview resolves a form and partitions its questions.
func (s *ReviewService) LoadReview(ctx context.Context, req LoadReviewRequest) (*ReviewState, error) {
	if s.forms == nil {
		return nil, errors.New("form store not set")
	}

	var (
		form *models.MedicalHistoryForm
		err  error
	)
	switch {
	case req.FormID != nil:
		form, err = s.forms.GetByID(ctx, *req.FormID)
		if err != nil {
			return nil, fromStore(fmt.Sprintf("form %d not found", *req.FormID), err)
		}
	case req.PatientID != nil:
		form, err = s.forms.GetLatestForPatient(ctx, *req.PatientID)
	default:
		form, err = s.forms.GetLatest(ctx)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &ReviewState{Status: ReviewNoForm, NeedsReview: models.Questions{}, Resolved: models.Questions{}}, nil
	}
	if err != nil {
		return nil, fromStore("failed to load form", err)
	}

	form.Questions, _ = normalizeQuestions(form, s.logger)
	return partition(form), nil
}

func partition(form *models.MedicalHistoryForm) *ReviewState {
	st := &ReviewState{
		Form:        form,
		NeedsReview: models.Questions{},
		Resolved:    models.Questions{},
	}
	for _, q := range form.Questions {
		if q.NeedsReview() {
			st.NeedsReview = append(st.NeedsReview, q)
		} else {
			st.Resolved = append(st.Resolved, q)
		}
	}
	st.Status = ReviewNeedsReview
	if len(st.NeedsReview) == 0 {
		st.Status = ReviewComplete
	}
	return st
}

// SaveReviewRequest carries user answers keyed by question id. Values are raw
// JSON so an absent boolean can be told apart from false.
type SaveReviewRequest struct {
	FormID int64
	// Version is the form version the user reviewed; 0 skips the check.
	Version int64
	Answers map[string]json.RawMessage
}

// SaveReview validates user answers and stamps them as user input.
// Every question currently needing review must be answered; answers to
// resolved questions are accepted as corrections.
func (s *ReviewService) SaveReview(ctx context.Context, req SaveReviewRequest) (*ReviewState, error) {
	if s.forms == nil {
		return nil, errors.New("form store not set")
	}

	form, err := s.forms.GetByID(ctx, req.FormID)
	if err != nil {
		return nil, fromStore(fmt.Sprintf("form %d not found", req.FormID), err)
	}
	questions, _ := normalizeQuestions(form, s.logger)
	questions = questions.Clone()

	fields := make(map[string]string)
	for id := range req.Answers {
		if questions.Find(id) < 0 {
			fields[id] = "unknown question"
		}
	}

	answered := make(map[int]models.Answer, len(req.Answers))
	for i, q := range questions {
		raw, ok := req.Answers[q.ID]
		if !ok {
			if q.NeedsReview() {
				fields[q.ID] = "answer required"
			}
			continue
		}
		answer, msg := userAnswer(q.AnswerType, raw)
		if msg != "" {
			fields[q.ID] = msg
			continue
		}
		answered[i] = answer
	}
	if len(fields) > 0 {
		return nil, ValidationError("review answers are incomplete", fields)
	}

	source := models.UserInputSource
	for i, answer := range answered {
		questions[i].Answer = answer
		questions[i].Confidence = 1.0
		questions[i].Source = models.StringPtr(source)
	}

	version, err := s.forms.UpdateQuestions(ctx, form.ID, questions, req.Version)
	if err != nil {
		s.logger.Error().Err(err).Int64("form_id", form.ID).Int64("version", req.Version).Msg("failed to save review")
		return nil, fromStore("failed to save review", err)
	}

	form.Questions = questions
	form.Version = version
	form.QuestionsErr = nil
	st := partition(form)
	st.Status = ReviewSaved

	s.logger.Info().Int64("form_id", form.ID).Int("answered", len(answered)).Int64("version", version).Msg("review saved")
	return st, nil
}

// userAnswer enforces non-empty user input. The returned message is empty on success.
func userAnswer(t models.AnswerType, raw json.RawMessage) (models.Answer, string) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return models.NullAnswer(), "answer required"
	}

	if t == models.AnswerTypeBoolean {
		b, ok := v.(bool)
		if !ok {
			return models.NullAnswer(), "must be true or false"
		}
		return models.BoolAnswer(b), ""
	}

	str, ok := v.(string)
	if !ok {
		return models.NullAnswer(), "must be text"
	}
	if strings.TrimSpace(str) == "" {
		return models.NullAnswer(), "answer required"
	}
	return models.TextAnswer(strings.TrimSpace(str)), ""
}
