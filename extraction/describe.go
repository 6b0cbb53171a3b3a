// Package extraction contains the pure steps of the document-to-answer
// pipeline: rendering documents for the model, turning raw model output into
// answers, and merging those answers into a form's question list.
package extraction

import (
	"bytes"
	"encoding/json"
	"strings"

	"intake-backend/models"
)

// DocumentDescription is the text the model sees for one document.
type DocumentDescription struct {
	DocumentID int64  `json:"documentId"`
	Text       string `json:"text"`
}

// Describe renders a document as display name, type and upstream output.
// An llmOutput object carrying a "description" string contributes that text
// verbatim; other objects are serialized compactly.
func Describe(doc *models.Document) DocumentDescription {
	var sb strings.Builder
	if doc.DisplayName != "" {
		sb.WriteString("Document Name: ")
		sb.WriteString(doc.DisplayName)
		sb.WriteString("\n")
	}
	if doc.Type != nil && *doc.Type != "" {
		sb.WriteString("Document Type: ")
		sb.WriteString(*doc.Type)
		sb.WriteString("\n")
	}
	sb.WriteString(renderLLMOutput(doc.LLMOutput))

	return DocumentDescription{DocumentID: doc.ID, Text: sb.String()}
}

// DescribeAll renders every document, preserving order.
func DescribeAll(docs []*models.Document) []DocumentDescription {
	out := make([]DocumentDescription, 0, len(docs))
	for _, d := range docs {
		out = append(out, Describe(d))
	}
	return out
}

func renderLLMOutput(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err == nil {
			if desc, ok := obj["description"]; ok {
				var s string
				if err := json.Unmarshal(desc, &s); err == nil && s != "" {
					return s
				}
			}
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}
