package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"intake-backend/models"
	"intake-backend/repository"
	"intake-backend/service"
)

type fakeAnalyzer struct {
	got    service.AnalyzeRequest
	result *service.AnalyzeResult
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req service.AnalyzeRequest) (*service.AnalyzeResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeCompleter struct {
	got    service.CompleteRequest
	result *service.CompleteResult
	err    error
}

func (f *fakeCompleter) CheckAndTrigger(_ context.Context, req service.CompleteRequest) (*service.CompleteResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeForms struct {
	form        *models.MedicalHistoryForm
	err         error
	gotPatient  *uuid.UUID
	gotReplace  service.ReplaceQuestionsRequest
	latestCalls int
}

func (f *fakeForms) GetForm(_ context.Context, id int64) (*models.MedicalHistoryForm, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.form == nil || f.form.ID != id {
		return nil, service.NotFoundError(fmt.Sprintf("form %d not found", id), repository.ErrNotFound)
	}
	return f.form, nil
}

func (f *fakeForms) GetLatestForm(_ context.Context, patientID *uuid.UUID) (*models.MedicalHistoryForm, error) {
	f.latestCalls++
	f.gotPatient = patientID
	if f.err != nil {
		return nil, f.err
	}
	return f.form, nil
}

func (f *fakeForms) ReplaceQuestions(_ context.Context, req service.ReplaceQuestionsRequest) (*models.MedicalHistoryForm, error) {
	f.gotReplace = req
	if f.err != nil {
		return nil, f.err
	}
	out := *f.form
	out.Questions = req.Questions
	out.Version++
	return &out, nil
}

type fakeReviewer struct {
	gotLoad service.LoadReviewRequest
	gotSave service.SaveReviewRequest
	state   *service.ReviewState
	err     error
}

func (f *fakeReviewer) LoadReview(_ context.Context, req service.LoadReviewRequest) (*service.ReviewState, error) {
	f.gotLoad = req
	return f.state, f.err
}

func (f *fakeReviewer) SaveReview(_ context.Context, req service.SaveReviewRequest) (*service.ReviewState, error) {
	f.gotSave = req
	return f.state, f.err
}

// memDocuments is an in-memory DocumentStore with a unique key index.
// The first collide inserts fail as duplicates regardless of key.
type memDocuments struct {
	mu      sync.Mutex
	nextID  int64
	docs    map[int64]*models.Document
	taken   map[string]bool
	collide int
}

func newMemDocuments() *memDocuments {
	return &memDocuments{docs: map[int64]*models.Document{}, taken: map[string]bool{}}
}

func (m *memDocuments) Create(_ context.Context, doc *models.Document, rekey func(int) string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for attempt := 1; attempt <= repository.MaxCreateAttempts; attempt++ {
		dup := m.taken[doc.RawLocation] || m.collide > 0
		if m.collide > 0 {
			m.collide--
		}
		if !dup {
			m.nextID++
			doc.ID = m.nextID
			doc.CreatedAt = time.Now()
			doc.UpdatedAt = doc.CreatedAt
			m.taken[doc.RawLocation] = true
			cp := *doc
			m.docs[doc.ID] = &cp
			return nil
		}
		if rekey == nil {
			break
		}
		doc.RawLocation = rekey(attempt)
	}
	return fmt.Errorf("create document: %w", repository.ErrDuplicate)
}

func (m *memDocuments) GetByID(_ context.Context, id int64) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, repository.ErrNotFound)
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocuments) RecordAnalysis(_ context.Context, id int64, docType string, llmOutput json.RawMessage) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("record analysis for document %d: %w", id, repository.ErrNotFound)
	}
	doc.Type = &docType
	doc.LLMOutput = llmOutput
	cp := *doc
	return &cp, nil
}

func newTestEngine(rt Router) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rt.Register(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			rdr = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
