package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ReviewConfidenceThreshold is the minimum confidence an answer needs to skip human review.
const ReviewConfidenceThreshold = 0.7

// UserInputSource marks answers entered or confirmed by a person.
const UserInputSource = "user-input"

var (
	ErrInvalidQuestion    = errors.New("invalid question")
	ErrMalformedQuestions = errors.New("malformed questions payload")
)

// AnswerType selects which answer variant a question accepts
type AnswerType string

const (
	AnswerTypeString  AnswerType = "string"
	AnswerTypeBoolean AnswerType = "boolean"
	AnswerTypeText    AnswerType = "text" // free text, rendered as a larger input
)

// Valid reports whether t is one of the known answer types.
func (t AnswerType) Valid() bool {
	switch t {
	case AnswerTypeString, AnswerTypeBoolean, AnswerTypeText:
		return true
	}
	return false
}

// IsTextual reports whether answers of this type are strings.
func (t AnswerType) IsTextual() bool {
	return t == AnswerTypeString || t == AnswerTypeText
}

type answerKind uint8

const (
	answerNull answerKind = iota
	answerText
	answerBool
)

// Answer is a question's answer: null, a string, or a boolean.
// The zero value is the null answer.
type Answer struct {
	kind answerKind
	text string
	flag bool
}

// NullAnswer returns the unanswered state.
func NullAnswer() Answer { return Answer{} }

// TextAnswer returns a string answer.
func TextAnswer(s string) Answer { return Answer{kind: answerText, text: s} }

// BoolAnswer returns a boolean answer.
func BoolAnswer(b bool) Answer { return Answer{kind: answerBool, flag: b} }

func (a Answer) IsNull() bool { return a.kind == answerNull }

// Text returns the string payload and whether the answer holds one.
func (a Answer) Text() (string, bool) { return a.text, a.kind == answerText }

// Bool returns the boolean payload and whether the answer holds one.
func (a Answer) Bool() (bool, bool) { return a.flag, a.kind == answerBool }

// Matches reports whether the answer variant is allowed for the given type.
func (a Answer) Matches(t AnswerType) bool {
	switch a.kind {
	case answerNull:
		return true
	case answerBool:
		return t == AnswerTypeBoolean
	default:
		return t.IsTextual()
	}
}

// Interface returns the answer as nil, string or bool.
func (a Answer) Interface() any {
	switch a.kind {
	case answerText:
		return a.text
	case answerBool:
		return a.flag
	}
	return nil
}

func (a Answer) String() string {
	switch a.kind {
	case answerText:
		return a.text
	case answerBool:
		return strconv.FormatBool(a.flag)
	}
	return "<null>"
}

func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Interface())
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = NullAnswer()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*a = BoolAnswer(b)
		return nil
	}
	return fmt.Errorf("%w: answer must be null, a string or a boolean, got %s", ErrInvalidQuestion, data)
}

var (
	trueWords  = map[string]bool{"true": true, "yes": true, "y": true, "ja": true, "j": true, "1": true}
	falseWords = map[string]bool{"false": true, "no": true, "n": true, "nein": true, "0": true}
)

// CoerceAnswer converts a loosely typed value (as decoded from JSON) into the
// answer variant required by t. The second result is false when the value could
// not be represented, in which case the null answer is returned.
func CoerceAnswer(t AnswerType, v any) (Answer, bool) {
	switch val := v.(type) {
	case nil:
		return NullAnswer(), true
	case Answer:
		return CoerceAnswer(t, val.Interface())
	case bool:
		if t == AnswerTypeBoolean {
			return BoolAnswer(val), true
		}
		return TextAnswer(strconv.FormatBool(val)), true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return NullAnswer(), true
		}
		if t != AnswerTypeBoolean {
			return TextAnswer(val), true
		}
		word := strings.ToLower(strings.TrimRight(trimmed, ".!"))
		if trueWords[word] {
			return BoolAnswer(true), true
		}
		if falseWords[word] {
			return BoolAnswer(false), true
		}
		return NullAnswer(), false
	case float64:
		if t == AnswerTypeBoolean {
			switch val {
			case 1:
				return BoolAnswer(true), true
			case 0:
				return BoolAnswer(false), true
			}
			return NullAnswer(), false
		}
		return TextAnswer(strconv.FormatFloat(val, 'f', -1, 64)), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return NullAnswer(), false
		}
		return CoerceAnswer(t, f)
	default:
		if t == AnswerTypeBoolean {
			return NullAnswer(), false
		}
		b, err := json.Marshal(val)
		if err != nil {
			return NullAnswer(), false
		}
		return TextAnswer(string(b)), true
	}
}

// Question is one item of the medical history questionnaire.
type Question struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	AnswerType  AnswerType `json:"answerType"`
	Answer      Answer     `json:"answer"`
	Confidence  float64    `json:"confidence"`
	Description string     `json:"description,omitempty"`
	Source      *string    `json:"source"`
}

// NeedsReview reports whether a person has to look at this question.
func (q Question) NeedsReview() bool {
	return q.Answer.IsNull() || q.Confidence < ReviewConfidenceThreshold
}

// Validate enforces the closed answer union at the storage boundary.
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidQuestion)
	}
	if !q.AnswerType.Valid() {
		return fmt.Errorf("%w: question %q has unknown answerType %q", ErrInvalidQuestion, q.ID, q.AnswerType)
	}
	if q.Confidence < 0 || q.Confidence > 1 {
		return fmt.Errorf("%w: question %q confidence %v outside [0,1]", ErrInvalidQuestion, q.ID, q.Confidence)
	}
	if !q.Answer.Matches(q.AnswerType) {
		return fmt.Errorf("%w: question %q answer %s does not match answerType %q", ErrInvalidQuestion, q.ID, q.Answer, q.AnswerType)
	}
	return nil
}

// Questions is the ordered question list stored in a form's JSONB column.
type Questions []Question

// Validate checks every question and id uniqueness within the list.
func (qs Questions) Validate() error {
	seen := make(map[string]bool, len(qs))
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			return err
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalidQuestion, q.ID)
		}
		seen[q.ID] = true
	}
	return nil
}

// Clone returns a deep copy.
func (qs Questions) Clone() Questions {
	if qs == nil {
		return nil
	}
	out := make(Questions, len(qs))
	for i, q := range qs {
		if q.Source != nil {
			src := *q.Source
			q.Source = &src
		}
		out[i] = q
	}
	return out
}

// Find returns the position of the question with the given id, or -1.
func (qs Questions) Find(id string) int {
	for i := range qs {
		if qs[i].ID == id {
			return i
		}
	}
	return -1
}

// NeedsReview returns the questions that are unanswered or below the confidence threshold.
func (qs Questions) NeedsReview() Questions {
	out := Questions{}
	for _, q := range qs {
		if q.NeedsReview() {
			out = append(out, q)
		}
	}
	return out
}

// Value implements driver.Valuer for JSONB
func (qs Questions) Value() (driver.Value, error) {
	if qs == nil {
		qs = Questions{}
	}
	return json.Marshal(qs)
}

// storedQuestion mirrors what older rows may contain: answers of any JSON type,
// missing answerType, non-string sources.
type storedQuestion struct {
	ID          string          `json:"id"`
	Text        string          `json:"text"`
	AnswerType  string          `json:"answerType"`
	Answer      any             `json:"answer"`
	Confidence  *float64        `json:"confidence"`
	Description string          `json:"description"`
	Source      json.RawMessage `json:"source"`
}

// ParseQuestions decodes a stored questions column. A JSON-encoded string holding
// an array is unwrapped once. Missing answerType defaults to string; mismatched
// answers are coerced or nulled. Unknown answer types, non-array payloads and
// empty payloads return ErrMalformedQuestions.
func ParseQuestions(raw []byte) (Questions, error) {
	return parseQuestions(raw, true)
}

func parseQuestions(raw []byte, allowWrapped bool) (Questions, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: questions are absent", ErrMalformedQuestions)
	}

	switch raw[0] {
	case '"':
		if !allowWrapped {
			return nil, fmt.Errorf("%w: doubly encoded questions", ErrMalformedQuestions)
		}
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedQuestions, err)
		}
		return parseQuestions([]byte(inner), false)
	case '[':
	default:
		return nil, fmt.Errorf("%w: questions are not a list", ErrMalformedQuestions)
	}

	var stored []storedQuestion
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuestions, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: question list is empty", ErrMalformedQuestions)
	}

	out := make(Questions, 0, len(stored))
	for i, s := range stored {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: question %d has no id", ErrMalformedQuestions, i)
		}
		t := AnswerType(strings.ToLower(strings.TrimSpace(s.AnswerType)))
		if t == "" {
			t = AnswerTypeString
		}
		if !t.Valid() {
			return nil, fmt.Errorf("%w: question %q has unknown answerType %q", ErrMalformedQuestions, s.ID, s.AnswerType)
		}

		q := Question{
			ID:          s.ID,
			Text:        s.Text,
			AnswerType:  t,
			Description: s.Description,
			Source:      SourceFromJSON(s.Source),
		}
		q.Answer, _ = CoerceAnswer(t, s.Answer)
		if s.Confidence != nil {
			q.Confidence = ClampConfidence(*s.Confidence)
		}
		if q.Answer.IsNull() && s.Answer != nil {
			q.Confidence = 0
		}
		out = append(out, q)
	}
	return out, nil
}

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// SourceFromJSON reads a provenance tag that may have been written as a string,
// a number or null.
func SourceFromJSON(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return &s
	}
	s = string(raw)
	return &s
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string { return &s }
