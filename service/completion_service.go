package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"intake-backend/models"
	"intake-backend/questionnaire"
)

// MessageStillProcessing is reported while any document in a batch is not ready.
const MessageStillProcessing = "Some documents still processing"

// MessageAnalysisCompleted is reported once a batch has been analyzed.
const MessageAnalysisCompleted = "All uploads processed and analysis completed"

// DefaultBatchCacheTTL is how long completed batches are remembered.
const DefaultBatchCacheTTL = 10 * time.Minute

// Analyzer runs extraction for a batch. *AnalysisService satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error)
}

// CompletionService gates analysis on every document in a batch being ready.
type CompletionService struct {
	forms     FormStore
	documents DocumentStore
	analyzer  Analyzer
	logger    zerolog.Logger
	now       func() time.Time

	group singleflight.Group
	// batches maps a batch key to *batchState.
	batches *gocache.Cache
}

type batchState struct {
	formID int64
	result *CompleteResult
}

// CompletionServiceOption is a functional option for CompletionService
type CompletionServiceOption func(*CompletionService)

// CompletionWithFormStore sets the form store
func CompletionWithFormStore(store FormStore) CompletionServiceOption {
	return func(s *CompletionService) {
		s.forms = store
	}
}

// CompletionWithDocumentStore sets the document store
func CompletionWithDocumentStore(store DocumentStore) CompletionServiceOption {
	return func(s *CompletionService) {
		s.documents = store
	}
}

// CompletionWithAnalyzer sets the analyzer invoked for ready batches
func CompletionWithAnalyzer(a Analyzer) CompletionServiceOption {
	return func(s *CompletionService) {
		s.analyzer = a
	}
}

// CompletionWithLogger sets the logger
func CompletionWithLogger(logger zerolog.Logger) CompletionServiceOption {
	return func(s *CompletionService) {
		s.logger = logger
	}
}

// CompletionWithBatchCacheTTL sets how long batch outcomes are remembered
func CompletionWithBatchCacheTTL(ttl time.Duration) CompletionServiceOption {
	return func(s *CompletionService) {
		if ttl > 0 {
			s.batches = gocache.New(ttl, 2*ttl)
		}
	}
}

// CompletionWithClock overrides time.Now for form naming
func CompletionWithClock(now func() time.Time) CompletionServiceOption {
	return func(s *CompletionService) {
		s.now = now
	}
}

// NewCompletionService creates a new completion service
func NewCompletionService(opts ...CompletionServiceOption) *CompletionService {
	s := &CompletionService{
		logger:  zerolog.Nop(),
		now:     time.Now,
		batches: gocache.New(DefaultBatchCacheTTL, 2*DefaultBatchCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompleteRequest represents a finished upload batch
type CompleteRequest struct {
	PatientID   uuid.UUID
	DocumentIDs []int64
}

// CompleteResult represents the gate's answer for one invocation
type CompleteResult struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message,omitempty"`
	ProcessedCount   *int           `json:"processedCount,omitempty"`
	UnprocessedCount *int           `json:"unprocessedCount,omitempty"`
	UnprocessedIDs   []int64        `json:"unprocessedIds,omitempty"`
	FormID           int64          `json:"formId,omitempty"`
	AnalysisResult   *AnalyzeResult `json:"analysisResult,omitempty"`
	Error            string         `json:"error,omitempty"`
	Details          string         `json:"details,omitempty"`
}

// Pending reports whether the client should retry later.
func (r *CompleteResult) Pending() bool {
	return !r.Success && r.UnprocessedCount != nil
}

// CheckAndTrigger reasserts ownership of the batch, checks readiness and,
// once everything is ready, creates a fresh form and analyzes into it.
//
// Identical concurrent calls share one execution. A batch that reached
// analysis keeps its form, so retries never create a second one; a batch
// whose analysis succeeded returns the remembered result.
func (s *CompletionService) CheckAndTrigger(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	if s.forms == nil || s.documents == nil || s.analyzer == nil {
		return nil, errors.New("completion service is missing a dependency")
	}
	if req.PatientID == uuid.Nil {
		return nil, ValidationError("patientId is required", map[string]string{"patientId": "required"})
	}
	ids := normalizeIDs(req.DocumentIDs)
	if len(ids) == 0 {
		return nil, ValidationError("documentIds must be a non-empty list", map[string]string{"documentIds": "required"})
	}

	key := batchKey(req.PatientID, ids)
	if v, ok := s.batches.Get(key); ok {
		if st := v.(*batchState); st.result != nil {
			return st.result, nil
		}
	}

	// Joined callers share this run, so one caller going away must not
	// cancel it for the others.
	runCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.run(runCtx, key, req.PatientID, ids)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug().Str("batch", key).Msg("joined in-flight batch")
	}
	return v.(*CompleteResult), nil
}

func (s *CompletionService) run(ctx context.Context, key string, patientID uuid.UUID, ids []int64) (*CompleteResult, error) {
	log := s.logger.With().
		Str("patient_id", patientID.String()).
		Ints64("document_ids", ids).
		Logger()

	if n, err := s.documents.ReassignOwner(ctx, ids, patientID); err != nil {
		log.Error().Err(err).Msg("failed to reassert document ownership")
		return nil, fromStore("failed to update document ownership", err)
	} else if n > 0 {
		log.Info().Int64("reassigned", n).Msg("corrected document ownership")
	}

	docs, err := s.documents.ListForPatient(ctx, patientID, ids)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch documents")
		return nil, fromStore("failed to fetch documents", err)
	}

	ready := make(map[int64]bool, len(docs))
	for _, d := range docs {
		if d.Ready() {
			ready[d.ID] = true
		}
	}
	unprocessed := make([]int64, 0)
	for _, id := range ids {
		if !ready[id] {
			unprocessed = append(unprocessed, id)
		}
	}
	if len(unprocessed) > 0 {
		processed := len(ids) - len(unprocessed)
		pending := len(unprocessed)
		log.Info().Int("processed", processed).Ints64("unprocessed_ids", unprocessed).Msg("documents still processing")
		return &CompleteResult{
			Success:          false,
			Message:          MessageStillProcessing,
			ProcessedCount:   &processed,
			UnprocessedCount: &pending,
			UnprocessedIDs:   unprocessed,
		}, nil
	}

	formID, err := s.formForBatch(ctx, key, patientID)
	if err != nil {
		log.Error().Err(err).Msg("failed to create form for batch")
		return nil, err
	}
	log = log.With().Int64("form_id", formID).Logger()

	analysis, err := s.analyzer.Analyze(ctx, AnalyzeRequest{
		PatientID:   patientID,
		DocumentIDs: ids,
		FormID:      &formID,
	})
	if err != nil {
		// The form shell stays usable for manual entry.
		log.Error().Err(err).Msg("analysis failed for completed batch")
		res := &CompleteResult{Success: true, FormID: formID, Error: "analysis failed"}
		var se *Error
		if errors.As(err, &se) {
			res.Error = se.Message
			res.Details = se.Details()
		} else {
			res.Details = err.Error()
		}
		return res, nil
	}

	res := &CompleteResult{
		Success:        true,
		Message:        MessageAnalysisCompleted,
		FormID:         formID,
		AnalysisResult: analysis,
	}
	s.batches.SetDefault(key, &batchState{formID: formID, result: res})
	log.Info().Int("document_count", analysis.DocumentCount).Msg("batch analyzed")
	return res, nil
}

// formForBatch returns the form already created for this batch or creates one.
func (s *CompletionService) formForBatch(ctx context.Context, key string, patientID uuid.UUID) (int64, error) {
	if v, ok := s.batches.Get(key); ok {
		return v.(*batchState).formID, nil
	}

	form := &models.MedicalHistoryForm{
		PatientID: &patientID,
		Name:      "Medical History " + s.now().UTC().Format("2006-01-02 15:04"),
		Questions: questionnaire.DefaultQuestions(),
	}
	if err := s.forms.Create(ctx, form); err != nil {
		return 0, fromStore("failed to create form", err)
	}
	s.batches.SetDefault(key, &batchState{formID: form.ID})
	return form.ID, nil
}

// normalizeIDs sorts and de-duplicates ids, dropping non-positive values.
func normalizeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func batchKey(patientID uuid.UUID, ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s:%s", patientID, strings.Join(parts, ","))
}
