package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultFormName is used when a form has to be synthesized during analysis.
const DefaultFormName = "Patient Medical History"

// MedicalHistoryForm is a versioned snapshot of questionnaire state.
type MedicalHistoryForm struct {
	ID        int64      `json:"id"`
	PatientID *uuid.UUID `json:"patientId,omitempty"`
	Name      string     `json:"name"`
	Questions Questions  `json:"questions"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	// QuestionsErr is set when the stored questions column could not be decoded.
	// Questions is nil in that case.
	QuestionsErr error `json:"-"`
}

// ExtractedAnswer is the provider's output for a single question id.
type ExtractedAnswer struct {
	Answer     any     `json:"answer"`
	Confidence float64 `json:"confidence"`
	Source     *string `json:"source"`
}

// ExtractionResult maps question ids to extracted answers.
type ExtractionResult map[string]ExtractedAnswer
