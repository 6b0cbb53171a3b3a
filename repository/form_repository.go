package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intake-backend/models"
)

// FormRepository handles database operations for medical history forms
type FormRepository struct {
	db *pgxpool.Pool
}

// NewFormRepository creates a new form repository
func NewFormRepository(db *pgxpool.Pool) *FormRepository {
	return &FormRepository{db: db}
}

const formColumns = `id, patient_id, name, questions, version, created_at, updated_at`

// Create persists a new form at version 1. Questions are validated first.
func (r *FormRepository) Create(ctx context.Context, form *models.MedicalHistoryForm) error {
	if err := form.Questions.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO medical_history_form (patient_id, name, questions)
		VALUES ($1, $2, $3)
		RETURNING id, version, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		form.PatientID,
		form.Name,
		form.Questions,
	).Scan(&form.ID, &form.Version, &form.CreatedAt, &form.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create form: %w", mapError(err))
	}
	return nil
}

// GetByID retrieves a form by ID
func (r *FormRepository) GetByID(ctx context.Context, id int64) (*models.MedicalHistoryForm, error) {
	query := `SELECT ` + formColumns + ` FROM medical_history_form WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetLatest returns the most recently created form across all patients.
func (r *FormRepository) GetLatest(ctx context.Context) (*models.MedicalHistoryForm, error) {
	query := `SELECT ` + formColumns + ` FROM medical_history_form ORDER BY id DESC LIMIT 1`
	return r.getOne(ctx, query)
}

// GetLatestForPatient returns the patient's most recently created form.
func (r *FormRepository) GetLatestForPatient(ctx context.Context, patientID uuid.UUID) (*models.MedicalHistoryForm, error) {
	query := `
		SELECT ` + formColumns + `
		FROM medical_history_form
		WHERE patient_id = $1
		ORDER BY id DESC
		LIMIT 1`
	return r.getOne(ctx, query, patientID)
}

// UpdateQuestions replaces the questions column and bumps the version.
// expectedVersion 0 overwrites unconditionally; otherwise the write only
// happens if the stored version still matches, else ErrConflict.
func (r *FormRepository) UpdateQuestions(ctx context.Context, id int64, questions models.Questions, expectedVersion int64) (int64, error) {
	if err := questions.Validate(); err != nil {
		return 0, err
	}

	var (
		version int64
		err     error
	)
	if expectedVersion == 0 {
		query := `
			UPDATE medical_history_form
			SET questions = $2, version = version + 1, updated_at = NOW()
			WHERE id = $1
			RETURNING version`
		err = r.db.QueryRow(ctx, query, id, questions).Scan(&version)
	} else {
		query := `
			UPDATE medical_history_form
			SET questions = $2, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $3
			RETURNING version`
		err = r.db.QueryRow(ctx, query, id, questions, expectedVersion).Scan(&version)
	}

	if err == nil {
		return version, nil
	}
	err = mapError(err)
	if !errors.Is(err, ErrNotFound) || expectedVersion == 0 {
		return 0, fmt.Errorf("update form %d questions: %w", id, err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM medical_history_form WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("update form %d questions: %w", id, mapError(err))
	}
	if exists {
		return 0, fmt.Errorf("update form %d at version %d: %w", id, expectedVersion, ErrConflict)
	}
	return 0, fmt.Errorf("update form %d questions: %w", id, ErrNotFound)
}

func (r *FormRepository) getOne(ctx context.Context, query string, args ...any) (*models.MedicalHistoryForm, error) {
	form, err := scanForm(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return form, nil
}

// scanForm decodes the questions column leniently. A malformed column leaves
// Questions nil and records the reason in QuestionsErr.
func scanForm(row pgx.Row) (*models.MedicalHistoryForm, error) {
	form := &models.MedicalHistoryForm{}
	var rawQuestions []byte
	err := row.Scan(
		&form.ID,
		&form.PatientID,
		&form.Name,
		&rawQuestions,
		&form.Version,
		&form.CreatedAt,
		&form.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	qs, err := models.ParseQuestions(rawQuestions)
	if err != nil {
		form.QuestionsErr = err
		return form, nil
	}
	form.Questions = qs
	return form, nil
}
