package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-backend/questionnaire"
)

type stubAnalyzer struct {
	mu      sync.Mutex
	calls   []AnalyzeRequest
	ctxErrs []error
	err     error
}

func (a *stubAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, req)
	a.ctxErrs = append(a.ctxErrs, ctx.Err())
	if a.err != nil {
		return nil, a.err
	}
	return &AnalyzeResult{Success: true, PatientID: req.PatientID.String(), FormID: *req.FormID, DocumentCount: len(req.DocumentIDs)}, nil
}

func newTestCompletion(forms *memForms, docs *memDocs, a Analyzer) *CompletionService {
	return NewCompletionService(
		CompletionWithFormStore(forms),
		CompletionWithDocumentStore(docs),
		CompletionWithAnalyzer(a),
		CompletionWithClock(func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }),
	)
}

func TestCheckAndTrigger_ReportsUnprocessed(t *testing.T) {
	patient := uuid.New()
	forms := newMemForms()
	docs := newMemDocs(readyDoc(1, &patient, "a"), readyDoc(2, &patient, "b"), pendingDoc(3, &patient))
	analyzer := &stubAnalyzer{}

	res, err := newTestCompletion(forms, docs, analyzer).CheckAndTrigger(context.Background(), CompleteRequest{
		PatientID:   patient,
		DocumentIDs: []int64{1, 2, 3},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Pending())
	assert.Equal(t, MessageStillProcessing, res.Message)
	assert.Equal(t, 2, *res.ProcessedCount)
	assert.Equal(t, 1, *res.UnprocessedCount)
	assert.Equal(t, []int64{3}, res.UnprocessedIDs)

	assert.Empty(t, analyzer.calls)
	assert.Zero(t, forms.creates)
}

func TestCheckAndTrigger_MissingDocumentsAreUnprocessed(t *testing.T) {
	patient := uuid.New()
	docs := newMemDocs(readyDoc(1, &patient, "a"))

	res, err := newTestCompletion(newMemForms(), docs, &stubAnalyzer{}).CheckAndTrigger(context.Background(), CompleteRequest{
		PatientID:   patient,
		DocumentIDs: []int64{1, 7},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, res.UnprocessedIDs)
	assert.Equal(t, 1, *res.ProcessedCount)
}

func TestCheckAndTrigger_ReassertsOwnership(t *testing.T) {
	patient := uuid.New()
	other := uuid.New()
	docs := newMemDocs(readyDoc(1, &other, "a"), readyDoc(2, nil, "b"))
	analyzer := &stubAnalyzer{}

	res, err := newTestCompletion(newMemForms(), docs, analyzer).CheckAndTrigger(context.Background(), CompleteRequest{
		PatientID:   patient,
		DocumentIDs: []int64{1, 2},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	for _, id := range []int64{1, 2} {
		d, err := docs.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, patient, *d.PatientID)
	}
}

func TestCheckAndTrigger_CreatesFormAndCachesResult(t *testing.T) {
	patient := uuid.New()
	forms := newMemForms()
	docs := newMemDocs(readyDoc(1, &patient, "a"), readyDoc(2, &patient, "b"))
	analyzer := &stubAnalyzer{}
	svc := newTestCompletion(forms, docs, analyzer)

	res, err := svc.CheckAndTrigger(context.Background(), CompleteRequest{PatientID: patient, DocumentIDs: []int64{2, 1, 2}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, MessageAnalysisCompleted, res.Message)
	require.NotNil(t, res.AnalysisResult)

	stored := forms.get(res.FormID)
	assert.Equal(t, "Medical History 2024-03-01 09:30", stored.Name)
	assert.Len(t, stored.Questions, questionnaire.Size())

	require.Len(t, analyzer.calls, 1)
	assert.Equal(t, res.FormID, *analyzer.calls[0].FormID)
	assert.Equal(t, []int64{1, 2}, analyzer.calls[0].DocumentIDs)

	again, err := svc.CheckAndTrigger(context.Background(), CompleteRequest{PatientID: patient, DocumentIDs: []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, res.FormID, again.FormID)
	assert.Equal(t, 1, forms.creates)
	assert.Len(t, analyzer.calls, 1)
}

func TestCheckAndTrigger_AnalysisFailureKeepsForm(t *testing.T) {
	patient := uuid.New()
	forms := newMemForms()
	docs := newMemDocs(readyDoc(1, &patient, "a"))
	analyzer := &stubAnalyzer{err: ProviderError("failed to call extraction provider", errors.New("timeout"))}
	svc := newTestCompletion(forms, docs, analyzer)

	res, err := svc.CheckAndTrigger(context.Background(), CompleteRequest{PatientID: patient, DocumentIDs: []int64{1}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotZero(t, res.FormID)
	assert.Equal(t, "failed to call extraction provider", res.Error)
	assert.Equal(t, "timeout", res.Details)

	analyzer.err = nil
	retry, err := svc.CheckAndTrigger(context.Background(), CompleteRequest{PatientID: patient, DocumentIDs: []int64{1}})
	require.NoError(t, err)
	assert.Equal(t, res.FormID, retry.FormID)
	assert.Empty(t, retry.Error)
	assert.Equal(t, 1, forms.creates)
	assert.Len(t, analyzer.calls, 2)
}

func TestCheckAndTrigger_CallerCancellationDoesNotAbortRun(t *testing.T) {
	patient := uuid.New()
	forms := newMemForms()
	docs := newMemDocs(readyDoc(1, &patient, "a"))
	analyzer := &stubAnalyzer{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestCompletion(forms, docs, analyzer).CheckAndTrigger(ctx, CompleteRequest{
		PatientID:   patient,
		DocumentIDs: []int64{1},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	require.Len(t, analyzer.ctxErrs, 1)
	assert.NoError(t, analyzer.ctxErrs[0])
	assert.Equal(t, 1, forms.creates)
}

func TestCheckAndTrigger_Validation(t *testing.T) {
	svc := newTestCompletion(newMemForms(), newMemDocs(), &stubAnalyzer{})

	_, err := svc.CheckAndTrigger(context.Background(), CompleteRequest{PatientID: uuid.New()})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.CheckAndTrigger(context.Background(), CompleteRequest{DocumentIDs: []int64{1}})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 3, 9}, normalizeIDs([]int64{9, 3, 0, 1, 3, -2}))
	assert.Empty(t, normalizeIDs(nil))
}
