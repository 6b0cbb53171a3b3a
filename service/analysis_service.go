package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"intake-backend/extraction"
	"intake-backend/models"
	"intake-backend/provider"
	"intake-backend/questionnaire"
	"intake-backend/repository"
)

// MessageNoProcessedDocuments is reported when a run finds nothing ready to analyze.
const MessageNoProcessedDocuments = "No processed documents found for this patient"

// DefaultMergeAttempts bounds re-fetch and re-merge after a version conflict.
const DefaultMergeAttempts = 3

// AnalysisService extracts answers from a patient's processed documents and
// merges them into a medical history form.
type AnalysisService struct {
	forms         FormStore
	documents     DocumentStore
	extractor     provider.Extractor
	logger        zerolog.Logger
	mergeAttempts int
}

// AnalysisServiceOption is a functional option for AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// AnalysisWithFormStore sets the form store
func AnalysisWithFormStore(store FormStore) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.forms = store
	}
}

// AnalysisWithDocumentStore sets the document store
func AnalysisWithDocumentStore(store DocumentStore) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.documents = store
	}
}

// AnalysisWithExtractor sets the AI extraction provider
func AnalysisWithExtractor(ex provider.Extractor) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.extractor = ex
	}
}

// AnalysisWithLogger sets the logger
func AnalysisWithLogger(logger zerolog.Logger) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.logger = logger
	}
}

// AnalysisWithMergeAttempts overrides DefaultMergeAttempts.
func AnalysisWithMergeAttempts(n int) AnalysisServiceOption {
	return func(s *AnalysisService) {
		if n > 0 {
			s.mergeAttempts = n
		}
	}
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(opts ...AnalysisServiceOption) *AnalysisService {
	s := &AnalysisService{
		logger:        zerolog.Nop(),
		mergeAttempts: DefaultMergeAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeRequest represents a request to analyze documents
type AnalyzeRequest struct {
	PatientID uuid.UUID
	// DocumentIDs restricts the run; empty means all of the patient's documents.
	DocumentIDs []int64
	// FormID pins the target form; nil resolves the patient's latest form.
	FormID *int64
}

// AnalyzeResult represents the result of an analysis run
type AnalyzeResult struct {
	Success       bool                    `json:"success"`
	Message       string                  `json:"message,omitempty"`
	PatientID     string                  `json:"patientId,omitempty"`
	FormID        int64                   `json:"formId,omitempty"`
	FormVersion   int64                   `json:"formVersion,omitempty"`
	DocumentCount int                     `json:"documentCount"`
	Answers       models.ExtractionResult `json:"answers"`
	Added         []string                `json:"addedQuestions,omitempty"`
	Skipped       []string                `json:"skippedQuestions,omitempty"`
}

// Analyze runs one extraction pass. It performs no retry around the provider:
// a provider failure is returned to the caller, who may resubmit the batch.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if s.forms == nil || s.documents == nil || s.extractor == nil {
		return nil, errors.New("analysis service is missing a dependency")
	}
	if req.PatientID == uuid.Nil {
		return nil, ValidationError("patientId is required", map[string]string{"patientId": "required"})
	}

	log := s.logger.With().
		Str("patient_id", req.PatientID.String()).
		Ints64("document_ids", req.DocumentIDs).
		Logger()

	docs, err := s.documents.ListForPatient(ctx, req.PatientID, req.DocumentIDs)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch documents")
		return nil, fromStore("failed to fetch documents", err)
	}

	ready := make([]*models.Document, 0, len(docs))
	for _, d := range docs {
		if d.Ready() {
			ready = append(ready, d)
			continue
		}
		log.Debug().Int64("document_id", d.ID).Msg("skipping document without type or llm output")
	}
	if len(ready) == 0 {
		log.Info().Int("found", len(docs)).Msg("no processed documents")
		return &AnalyzeResult{
			Success:   false,
			Message:   MessageNoProcessedDocuments,
			PatientID: req.PatientID.String(),
			Answers:   models.ExtractionResult{},
		}, nil
	}

	form, err := s.resolveForm(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve form")
		return nil, err
	}
	log = log.With().Int64("form_id", form.ID).Logger()
	questions, normalized := normalizeQuestions(form, log)

	raw, err := s.extractor.Extract(ctx, provider.Request{
		Questions: provider.SpecsFor(questions),
		Documents: extraction.DescribeAll(ready),
	})
	if err != nil {
		log.Error().Err(err).Str("provider", s.extractor.Name()).Msg("extraction provider failed")
		return nil, ProviderError("failed to call extraction provider", err)
	}

	ext, err := extraction.ParseAnswers(raw)
	if err != nil {
		log.Error().Err(err).Int("output_len", len(raw)).Msg("unparseable provider output")
		return nil, ParseError("failed to parse provider output", err)
	}

	result := &AnalyzeResult{
		Success:       true,
		PatientID:     req.PatientID.String(),
		FormID:        form.ID,
		FormVersion:   form.Version,
		DocumentCount: len(ready),
		Answers:       ext.Answers,
	}
	if ext.Empty() && !normalized {
		log.Info().Msg("provider extracted no answers")
		return result, nil
	}

	report, version, err := s.mergeAndSave(ctx, form, questions, ext, log)
	if err != nil {
		return nil, err
	}
	result.FormVersion = version
	result.Added = report.Added
	result.Skipped = report.Skipped

	log.Info().
		Int("updated", len(report.Updated)).
		Int("added", len(report.Added)).
		Int("skipped", len(report.Skipped)).
		Int64("version", version).
		Msg("analysis merged")
	return result, nil
}

func (s *AnalysisService) resolveForm(ctx context.Context, req AnalyzeRequest) (*models.MedicalHistoryForm, error) {
	if req.FormID != nil {
		form, err := s.forms.GetByID(ctx, *req.FormID)
		if err != nil {
			return nil, fromStore(fmt.Sprintf("form %d not found", *req.FormID), err)
		}
		return form, nil
	}

	form, err := s.forms.GetLatestForPatient(ctx, req.PatientID)
	if err == nil {
		return form, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fromStore("failed to load latest form", err)
	}

	patientID := req.PatientID
	form = &models.MedicalHistoryForm{
		PatientID: &patientID,
		Name:      models.DefaultFormName,
		Questions: questionnaire.DefaultQuestions(),
	}
	if err := s.forms.Create(ctx, form); err != nil {
		return nil, fromStore("failed to create form", err)
	}
	s.logger.Info().Int64("form_id", form.ID).Str("patient_id", patientID.String()).Msg("created default form")
	return form, nil
}

// mergeAndSave reconciles ext into the form and writes it with a version
// check. On conflict the form is re-read and the merge repeated.
func (s *AnalysisService) mergeAndSave(
	ctx context.Context,
	form *models.MedicalHistoryForm,
	questions models.Questions,
	ext *extraction.Extraction,
	log zerolog.Logger,
) (extraction.ReconcileReport, int64, error) {
	var lastErr error
	for attempt := 1; attempt <= s.mergeAttempts; attempt++ {
		merged, report := extraction.Reconcile(questions, ext)
		if len(report.Skipped) > 0 {
			log.Warn().Strs("question_ids", report.Skipped).Msg("extracted answers did not fit question type")
		}

		version, err := s.forms.UpdateQuestions(ctx, form.ID, merged, form.Version)
		if err == nil {
			return report, version, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			log.Error().Err(err).Msg("failed to save merged questions")
			return report, 0, fromStore("failed to save questions", err)
		}

		lastErr = err
		log.Warn().Int("attempt", attempt).Int64("version", form.Version).Msg("form changed during analysis, re-merging")

		fresh, err := s.forms.GetByID(ctx, form.ID)
		if err != nil {
			return report, 0, fromStore("failed to reload form", err)
		}
		form = fresh
		questions, _ = normalizeQuestions(form, log)
	}
	return extraction.ReconcileReport{}, 0, ConflictError("form kept changing during analysis", lastErr)
}

// normalizeQuestions returns the form's questions, or the template defaults
// when the stored column was missing or malformed. The bool reports whether
// defaults were substituted.
func normalizeQuestions(form *models.MedicalHistoryForm, log zerolog.Logger) (models.Questions, bool) {
	if form.QuestionsErr == nil && len(form.Questions) > 0 {
		return form.Questions, false
	}
	ev := log.Warn().Int64("form_id", form.ID).Str("template_version", questionnaire.Version)
	if form.QuestionsErr != nil {
		ev = ev.Err(form.QuestionsErr)
	}
	ev.Msg("form questions malformed, using template defaults")
	return questionnaire.DefaultQuestions(), true
}
