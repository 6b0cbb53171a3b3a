package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded artifact plus whatever upstream OCR/vision processing
// has written back for it.
type Document struct {
	ID          int64           `json:"id"`
	PatientID   *uuid.UUID      `json:"patientId"`
	DisplayName string          `json:"displayName"`
	RawLocation string          `json:"rawLocation"`
	ContentType string          `json:"contentType,omitempty"`
	Size        int64           `json:"size,omitempty"`
	Type        *string         `json:"type"`
	LLMOutput   json.RawMessage `json:"llmOutput"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Ready reports whether upstream processing has filled in both type and llmOutput.
func (d *Document) Ready() bool {
	if d.Type == nil || strings.TrimSpace(*d.Type) == "" {
		return false
	}
	return HasLLMOutput(d.LLMOutput)
}

// HasLLMOutput reports whether raw holds a non-empty description payload.
// JSON null and empty or blank strings count as absent.
func HasLLMOutput(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return strings.TrimSpace(s) != ""
	}
	return true
}
