package service

import (
	"context"

	"github.com/google/uuid"

	"intake-backend/models"
)

// FormStore is the persistence the services need for forms.
// *repository.FormRepository satisfies it.
type FormStore interface {
	Create(ctx context.Context, form *models.MedicalHistoryForm) error
	GetByID(ctx context.Context, id int64) (*models.MedicalHistoryForm, error)
	GetLatest(ctx context.Context) (*models.MedicalHistoryForm, error)
	GetLatestForPatient(ctx context.Context, patientID uuid.UUID) (*models.MedicalHistoryForm, error)
	UpdateQuestions(ctx context.Context, id int64, questions models.Questions, expectedVersion int64) (int64, error)
}

// DocumentStore is the persistence the services need for documents.
// *repository.DocumentRepository satisfies it.
type DocumentStore interface {
	GetByID(ctx context.Context, id int64) (*models.Document, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, ids []int64) ([]*models.Document, error)
	ReassignOwner(ctx context.Context, ids []int64, patientID uuid.UUID) (int64, error)
}
