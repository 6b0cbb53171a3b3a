package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables the stores use. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS medical_history_form (
		id BIGSERIAL PRIMARY KEY,
		patient_id UUID NULL,
		name TEXT NOT NULL,
		questions JSONB,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_medical_history_form_patient
		ON medical_history_form (patient_id, id DESC)`,
	`CREATE TABLE IF NOT EXISTS documents_and_images (
		id BIGSERIAL PRIMARY KEY,
		patient_id UUID NULL,
		display_name TEXT NOT NULL DEFAULT '',
		raw_input TEXT NOT NULL UNIQUE,
		content_type TEXT NOT NULL DEFAULT '',
		size BIGINT NOT NULL DEFAULT 0,
		type TEXT NULL,
		llm_output JSONB NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_and_images_patient
		ON documents_and_images (patient_id)`,
}

// EnsureSchema applies Schema in order.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// DropSchema removes the store tables. Development only.
func DropSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, table := range []string{"medical_history_form", "documents_and_images"} {
		if _, err := db.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
