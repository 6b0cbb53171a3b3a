package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-backend/models"
)

func reviewQuestions() models.Questions {
	return models.Questions{
		{ID: "fever", Text: "Fieber?", AnswerType: models.AnswerTypeBoolean, Answer: models.BoolAnswer(true), Confidence: 0.92, Source: models.StringPtr("12")},
		{ID: "allergies", Text: "Allergien?", AnswerType: models.AnswerTypeString, Answer: models.TextAnswer("maybe pollen"), Confidence: 0.5},
		{ID: "diabetes", Text: "Diabetes?", AnswerType: models.AnswerTypeBoolean},
		{ID: "notes", Text: "Notizen", AnswerType: models.AnswerTypeText},
	}
}

func TestLoadReview(t *testing.T) {
	patient := uuid.New()
	forms := newMemForms()
	svc := NewReviewService(ReviewWithFormStore(forms))

	t.Run("no form", func(t *testing.T) {
		st, err := svc.LoadReview(context.Background(), LoadReviewRequest{PatientID: &patient})
		require.NoError(t, err)
		assert.Equal(t, ReviewNoForm, st.Status)
		assert.Nil(t, st.Form)
	})

	form := seedForm(forms, patient, reviewQuestions())

	t.Run("needs review", func(t *testing.T) {
		st, err := svc.LoadReview(context.Background(), LoadReviewRequest{PatientID: &patient})
		require.NoError(t, err)
		assert.Equal(t, ReviewNeedsReview, st.Status)
		assert.Equal(t, form.ID, st.Form.ID)

		ids := make([]string, 0, len(st.NeedsReview))
		for _, q := range st.NeedsReview {
			ids = append(ids, q.ID)
		}
		assert.Equal(t, []string{"allergies", "diabetes", "notes"}, ids)
		require.Len(t, st.Resolved, 1)
		assert.Equal(t, "fever", st.Resolved[0].ID)
	})

	t.Run("by form id", func(t *testing.T) {
		st, err := svc.LoadReview(context.Background(), LoadReviewRequest{FormID: &form.ID})
		require.NoError(t, err)
		assert.Equal(t, form.ID, st.Form.ID)
	})

	t.Run("unknown form id", func(t *testing.T) {
		_, err := svc.LoadReview(context.Background(), LoadReviewRequest{FormID: int64Ptr(404)})
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("complete", func(t *testing.T) {
		done := seedForm(forms, patient, models.Questions{
			{ID: "fever", Text: "Fieber?", AnswerType: models.AnswerTypeBoolean, Answer: models.BoolAnswer(false), Confidence: 0.7},
		})
		st, err := svc.LoadReview(context.Background(), LoadReviewRequest{})
		require.NoError(t, err)
		assert.Equal(t, done.ID, st.Form.ID)
		assert.Equal(t, ReviewComplete, st.Status)
		assert.Empty(t, st.NeedsReview)
	})
}

func rawAnswers(m map[string]string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = json.RawMessage(v)
	}
	return out
}

func TestSaveReview_StampsUserInput(t *testing.T) {
	patient := uuid.New()
	forms := newMemForms()
	form := seedForm(forms, patient, reviewQuestions())
	svc := NewReviewService(ReviewWithFormStore(forms))

	st, err := svc.SaveReview(context.Background(), SaveReviewRequest{
		FormID:  form.ID,
		Version: form.Version,
		Answers: rawAnswers(map[string]string{
			"allergies": `"Pollen"`,
			"diabetes":  `false`,
			"notes":     `"  none  "`,
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, ReviewSaved, st.Status)
	assert.Equal(t, int64(2), st.Form.Version)
	assert.Empty(t, st.NeedsReview)

	stored := forms.get(form.ID)
	for _, id := range []string{"allergies", "diabetes", "notes"} {
		q := stored.Questions[stored.Questions.Find(id)]
		assert.Equal(t, 1.0, q.Confidence, id)
		assert.Equal(t, models.UserInputSource, *q.Source, id)
	}
	text, _ := stored.Questions[stored.Questions.Find("notes")].Answer.Text()
	assert.Equal(t, "none", text)

	fever := stored.Questions[0]
	assert.Equal(t, 0.92, fever.Confidence)
	assert.Equal(t, "12", *fever.Source)
}

func TestSaveReview_Validation(t *testing.T) {
	patient := uuid.New()
	forms := newMemForms()
	form := seedForm(forms, patient, reviewQuestions())
	svc := NewReviewService(ReviewWithFormStore(forms))

	_, err := svc.SaveReview(context.Background(), SaveReviewRequest{
		FormID: form.ID,
		Answers: rawAnswers(map[string]string{
			"allergies": `"   "`,
			"diabetes":  `"yes"`,
			"mystery":   `"x"`,
		}),
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	se := err.(*Error)
	assert.Equal(t, map[string]string{
		"allergies": "answer required",
		"diabetes":  "must be true or false",
		"notes":     "answer required",
		"mystery":   "unknown question",
	}, se.Fields)
	assert.Zero(t, forms.updates)
}

func TestSaveReview_StaleVersion(t *testing.T) {
	patient := uuid.New()
	forms := newMemForms()
	form := seedForm(forms, patient, reviewQuestions())
	svc := NewReviewService(ReviewWithFormStore(forms))

	answers := rawAnswers(map[string]string{"allergies": `"Pollen"`, "diabetes": `true`, "notes": `"-"`})
	_, err := svc.SaveReview(context.Background(), SaveReviewRequest{FormID: form.ID, Version: form.Version, Answers: answers})
	require.NoError(t, err)

	_, err = svc.SaveReview(context.Background(), SaveReviewRequest{FormID: form.ID, Version: form.Version, Answers: answers})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestSaveReview_UnknownForm(t *testing.T) {
	svc := NewReviewService(ReviewWithFormStore(newMemForms()))
	_, err := svc.SaveReview(context.Background(), SaveReviewRequest{FormID: 3})
	assert.Equal(t, KindNotFound, KindOf(err))
}
