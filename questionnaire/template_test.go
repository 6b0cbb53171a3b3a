package questionnaire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-backend/models"
)

func TestDefaultQuestions_Deterministic(t *testing.T) {
	first := DefaultQuestions()
	second := DefaultQuestions()

	require.Len(t, first, Size())
	assert.Equal(t, first, second)
}

func TestDefaultQuestions_UnansweredDefaults(t *testing.T) {
	for _, q := range DefaultQuestions() {
		assert.True(t, q.Answer.IsNull(), "question %s", q.ID)
		assert.Zero(t, q.Confidence, "question %s", q.ID)
		assert.Nil(t, q.Source, "question %s", q.ID)
		assert.True(t, q.NeedsReview(), "question %s", q.ID)
	}
}

func TestDefaultQuestions_Valid(t *testing.T) {
	assert.NoError(t, DefaultQuestions().Validate())
}

func TestDefaultQuestions_ReturnsCopy(t *testing.T) {
	qs := DefaultQuestions()
	qs[0].Answer = models.TextAnswer("changed")
	qs[0].Confidence = 1

	fresh := DefaultQuestions()
	assert.True(t, fresh[0].Answer.IsNull())
	assert.Zero(t, fresh[0].Confidence)
}

func TestDefaultQuestions_ContainsFever(t *testing.T) {
	qs := DefaultQuestions()
	i := qs.Find("fever")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, models.AnswerTypeBoolean, qs[i].AnswerType)
}
