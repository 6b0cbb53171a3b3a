package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"intake-backend/models"
	"intake-backend/provider"
	"intake-backend/repository"
)

// -- In-memory form store --

type memForms struct {
	mu      sync.Mutex
	forms   map[int64]*models.MedicalHistoryForm
	nextID  int64
	creates int
	updates int

	// conflicts makes the next n UpdateQuestions calls lose a race against a
	// concurrent writer.
	conflicts int
}

func newMemForms() *memForms {
	return &memForms{forms: make(map[int64]*models.MedicalHistoryForm)}
}

func copyForm(f *models.MedicalHistoryForm) *models.MedicalHistoryForm {
	cp := *f
	cp.Questions = f.Questions.Clone()
	return &cp
}

func (m *memForms) Create(_ context.Context, f *models.MedicalHistoryForm) error {
	if err := f.Questions.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.creates++
	f.ID = m.nextID
	f.Version = 1
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	m.forms[f.ID] = copyForm(f)
	return nil
}

// put stores a form as-is, bypassing validation, for seeding malformed rows.
func (m *memForms) put(f *models.MedicalHistoryForm) *models.MedicalHistoryForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	f.ID = m.nextID
	if f.Version == 0 {
		f.Version = 1
	}
	m.forms[f.ID] = copyForm(f)
	return f
}

func (m *memForms) GetByID(_ context.Context, id int64) (*models.MedicalHistoryForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyForm(f), nil
}

func (m *memForms) GetLatest(_ context.Context) (*models.MedicalHistoryForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.MedicalHistoryForm
	for _, f := range m.forms {
		if latest == nil || f.ID > latest.ID {
			latest = f
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return copyForm(latest), nil
}

func (m *memForms) GetLatestForPatient(_ context.Context, patientID uuid.UUID) (*models.MedicalHistoryForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.MedicalHistoryForm
	for _, f := range m.forms {
		if f.PatientID == nil || *f.PatientID != patientID {
			continue
		}
		if latest == nil || f.ID > latest.ID {
			latest = f
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return copyForm(latest), nil
}

func (m *memForms) UpdateQuestions(_ context.Context, id int64, qs models.Questions, expected int64) (int64, error) {
	if err := qs.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		f.Version++
		return 0, fmt.Errorf("update form %d: %w", id, repository.ErrConflict)
	}
	if expected != 0 && expected != f.Version {
		return 0, fmt.Errorf("update form %d: %w", id, repository.ErrConflict)
	}
	m.updates++
	f.Questions = qs.Clone()
	f.QuestionsErr = nil
	f.Version++
	return f.Version, nil
}

func (m *memForms) get(id int64) *models.MedicalHistoryForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyForm(m.forms[id])
}

// -- In-memory document store --

type memDocs struct {
	mu   sync.Mutex
	docs map[int64]*models.Document
}

func newMemDocs(docs ...*models.Document) *memDocs {
	m := &memDocs{docs: make(map[int64]*models.Document)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memDocs) GetByID(_ context.Context, id int64) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocs) ListForPatient(_ context.Context, patientID uuid.UUID, ids []int64) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]*models.Document, 0)
	for id := int64(1); id <= 1000; id++ {
		d, ok := m.docs[id]
		if !ok || d.PatientID == nil || *d.PatientID != patientID {
			continue
		}
		if len(ids) > 0 && !want[id] {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memDocs) ReassignOwner(_ context.Context, ids []int64, patientID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		d, ok := m.docs[id]
		if !ok {
			continue
		}
		if d.PatientID != nil && *d.PatientID == patientID {
			continue
		}
		p := patientID
		d.PatientID = &p
		n++
	}
	return n, nil
}

func readyDoc(id int64, owner *uuid.UUID, text string) *models.Document {
	typ := "medical_report"
	raw, _ := json.Marshal(map[string]string{"description": text})
	return &models.Document{ID: id, PatientID: owner, DisplayName: fmt.Sprintf("doc-%d.jpg", id), Type: &typ, LLMOutput: raw}
}

func pendingDoc(id int64, owner *uuid.UUID) *models.Document {
	typ := "medical_report"
	return &models.Document{ID: id, PatientID: owner, DisplayName: fmt.Sprintf("doc-%d.jpg", id), Type: &typ}
}

// -- Fake extractor --

type fakeExtractor struct {
	mu     sync.Mutex
	output string
	err    error
	calls  []provider.Request
}

func (f *fakeExtractor) Name() string { return "fake" }

func (f *fakeExtractor) Extract(_ context.Context, req provider.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.output, f.err
}
