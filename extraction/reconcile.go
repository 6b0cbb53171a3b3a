package extraction

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"intake-backend/models"
)

// ExtractedDescription is the description given to questions synthesized from
// answers whose id is not in the form.
const ExtractedDescription = "Information extracted from document"

// ReconcileReport describes what a merge changed.
type ReconcileReport struct {
	Updated []string
	Added   []string
	// Skipped lists ids whose extracted answer could not be represented in the
	// question's answer type; those questions were left as they were.
	Skipped []string
}

// Reconcile merges extracted answers into existing questions and returns a new
// list. The input slice is not modified.
//
// Existing questions named by the extraction get answer, confidence and source
// overwritten. Ids the form does not know are appended as string questions in
// provider order. Everything else is returned unchanged.
func Reconcile(existing models.Questions, ext *Extraction) (models.Questions, ReconcileReport) {
	out := existing.Clone()
	if out == nil {
		out = models.Questions{}
	}
	report := ReconcileReport{}
	if ext.Empty() {
		return out, report
	}

	known := make(map[string]int, len(out))
	for i, q := range out {
		known[q.ID] = i
	}

	for i := range out {
		q := &out[i]
		entry, ok := ext.Answers[q.ID]
		if !ok {
			continue
		}
		answer, ok := models.CoerceAnswer(q.AnswerType, entry.Answer)
		if !ok {
			report.Skipped = append(report.Skipped, q.ID)
			continue
		}
		q.Answer = answer
		q.Confidence = models.ClampConfidence(entry.Confidence)
		q.Source = copySource(entry.Source)
		report.Updated = append(report.Updated, q.ID)
	}

	for _, id := range orderedKeys(ext) {
		if _, ok := known[id]; ok {
			continue
		}
		entry := ext.Answers[id]
		answer, _ := models.CoerceAnswer(models.AnswerTypeString, entry.Answer)
		out = append(out, models.Question{
			ID:          id,
			Text:        HumanizeID(id),
			AnswerType:  models.AnswerTypeString,
			Answer:      answer,
			Confidence:  models.ClampConfidence(entry.Confidence),
			Description: ExtractedDescription,
			Source:      copySource(entry.Source),
		})
		known[id] = len(out) - 1
		report.Added = append(report.Added, id)
	}

	return out, report
}

// HumanizeID turns "family_heart_attack" into "Family Heart Attack".
// Underscores, hyphens and dots are separators.
func HumanizeID(id string) string {
	fields := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	for i, f := range fields {
		r, size := utf8.DecodeRuneInString(f)
		fields[i] = string(unicode.ToUpper(r)) + f[size:]
	}
	return strings.Join(fields, " ")
}

func orderedKeys(ext *Extraction) []string {
	if len(ext.Order) == len(ext.Answers) {
		return ext.Order
	}
	// Hand-built extractions may not carry an order.
	keys := make([]string, 0, len(ext.Answers))
	seen := make(map[string]bool, len(ext.Order))
	for _, k := range ext.Order {
		if _, ok := ext.Answers[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0)
	for k := range ext.Answers {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func copySource(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
