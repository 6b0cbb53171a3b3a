package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intake-backend/models"
)

// MaxCreateAttempts bounds duplicate-key retries in Create.
const MaxCreateAttempts = 3

// DocumentRepository handles database operations for uploaded documents
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, patient_id, display_name, raw_input, content_type, size, type, llm_output, created_at, updated_at`

// Create inserts a document row. When raw_input collides with an existing row
// and rekey is non-nil, RawLocation is replaced with rekey(attempt) and the
// insert is retried, up to MaxCreateAttempts in total.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document, rekey func(attempt int) string) error {
	query := `
		INSERT INTO documents_and_images (
			patient_id, display_name, raw_input, content_type, size, type, llm_output
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	var err error
	for attempt := 1; attempt <= MaxCreateAttempts; attempt++ {
		err = r.db.QueryRow(
			ctx, query,
			doc.PatientID,
			doc.DisplayName,
			doc.RawLocation,
			doc.ContentType,
			doc.Size,
			doc.Type,
			jsonArg(doc.LLMOutput),
		).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
		err = mapError(err)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicate) || rekey == nil {
			break
		}
		doc.RawLocation = rekey(attempt)
	}
	return fmt.Errorf("create document: %w", err)
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents_and_images WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

// ListForPatient returns the patient's documents ordered by id. A non-empty
// ids restricts the result to those documents; ids that do not exist or belong
// to someone else are simply absent.
func (r *DocumentRepository) ListForPatient(ctx context.Context, patientID uuid.UUID, ids []int64) ([]*models.Document, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(ids) == 0 {
		query := `SELECT ` + documentColumns + `
			FROM documents_and_images
			WHERE patient_id = $1
			ORDER BY id`
		rows, err = r.db.Query(ctx, query, patientID)
	} else {
		query := `SELECT ` + documentColumns + `
			FROM documents_and_images
			WHERE patient_id = $1 AND id = ANY($2)
			ORDER BY id`
		rows, err = r.db.Query(ctx, query, patientID, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ReassignOwner sets patient_id on every listed document. Rows already owned
// by patientID are not touched, so repeating the call is a no-op.
func (r *DocumentRepository) ReassignOwner(ctx context.Context, ids []int64, patientID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE documents_and_images
		SET patient_id = $1, updated_at = NOW()
		WHERE id = ANY($2) AND patient_id IS DISTINCT FROM $1`

	tag, err := r.db.Exec(ctx, query, patientID, ids)
	if err != nil {
		return 0, fmt.Errorf("reassign documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecordAnalysis stores the upstream OCR result, which makes the document ready.
func (r *DocumentRepository) RecordAnalysis(ctx context.Context, id int64, docType string, llmOutput json.RawMessage) (*models.Document, error) {
	query := `
		UPDATE documents_and_images
		SET type = $2, llm_output = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + documentColumns

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id, docType, jsonArg(llmOutput)))
	if err != nil {
		return nil, fmt.Errorf("record analysis for document %d: %w", id, mapError(err))
	}
	return doc, nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	doc := &models.Document{}
	var llmOutput []byte
	err := row.Scan(
		&doc.ID,
		&doc.PatientID,
		&doc.DisplayName,
		&doc.RawLocation,
		&doc.ContentType,
		&doc.Size,
		&doc.Type,
		&llmOutput,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if llmOutput != nil {
		doc.LLMOutput = json.RawMessage(llmOutput)
	}
	return doc, nil
}

// jsonArg passes raw JSON to a JSONB parameter, mapping empty input to NULL.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
