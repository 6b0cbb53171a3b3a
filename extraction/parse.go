package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"intake-backend/models"
)

// ErrUnparseableOutput is returned when provider output is not a JSON object
// even after normalization.
var ErrUnparseableOutput = errors.New("provider output is not a valid JSON object")

// Extraction is a parsed provider response. Order lists the question ids in
// the order the provider emitted them.
type Extraction struct {
	Answers models.ExtractionResult
	Order   []string
}

// Empty reports whether nothing was extracted.
func (e *Extraction) Empty() bool { return e == nil || len(e.Answers) == 0 }

var (
	jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	anyFence  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
)

// NormalizeOutput is the first stage: it turns raw provider text into the best
// candidate JSON text. Markdown fences are removed, and prose around a single
// top-level object is cut away.
func NormalizeOutput(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := jsonFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	} else if m := anyFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// ParseAnswers is the second stage. Empty output, "{}" and JSON null yield an
// empty extraction. Keys whose value is a bare null are dropped. Anything that
// still fails to decode as a JSON object returns ErrUnparseableOutput.
func ParseAnswers(raw string) (*Extraction, error) {
	s := NormalizeOutput(raw)
	empty := &Extraction{Answers: models.ExtractionResult{}, Order: []string{}}
	if s == "" || s == "{}" || s == "null" {
		return empty, nil
	}

	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableOutput, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrUnparseableOutput)
	}

	out := empty
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseableOutput, err)
		}
		key, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: question %q: %v", ErrUnparseableOutput, key, err)
		}
		// A bare null means the provider found nothing for this id.
		if key == "" || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}

		if _, seen := out.Answers[key]; !seen {
			out.Order = append(out.Order, key)
		}
		out.Answers[key] = decodeEntry(value)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableOutput, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrUnparseableOutput)
	}
	return out, nil
}

// decodeEntry reads one answer record. Providers sometimes emit a bare value
// instead of {answer, confidence, source}; that value becomes the answer.
// Missing confidence defaults to 1 and missing source to null.
func decodeEntry(raw json.RawMessage) models.ExtractedAnswer {
	entry := models.ExtractedAnswer{Confidence: 1}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		var v any
		_ = json.Unmarshal(trimmed, &v)
		entry.Answer = v
		return entry
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return entry
	}

	answerRaw, hasAnswer := fields["answer"]
	if !hasAnswer {
		var v any
		_ = json.Unmarshal(trimmed, &v)
		entry.Answer = v
	} else {
		var v any
		_ = json.Unmarshal(answerRaw, &v)
		entry.Answer = v
	}

	if c, ok := fields["confidence"]; ok {
		if conf, ok := parseConfidence(c); ok {
			entry.Confidence = conf
		}
	}
	if src, ok := fields["source"]; ok {
		entry.Source = models.SourceFromJSON(src)
	}
	return entry
}

func parseConfidence(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return models.ClampConfidence(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return models.ClampConfidence(f), true
		}
	}
	return 0, false
}
