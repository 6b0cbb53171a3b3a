package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go:\n{\"a\":1}\nThanks", `{"a":1}`},
		{"blank", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOutput(tt.in))
		})
	}
}

func TestParseAnswers_FullRecord(t *testing.T) {
	raw := "```json\n{\"fever\":{\"answer\":true,\"confidence\":0.92,\"source\":\"12\"},\"allergies_details\":{\"answer\":\"Penicillin\",\"confidence\":\"0.8\",\"source\":7}}\n```"

	ext, err := ParseAnswers(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"fever", "allergies_details"}, ext.Order)

	fever := ext.Answers["fever"]
	assert.Equal(t, true, fever.Answer)
	assert.Equal(t, 0.92, fever.Confidence)
	require.NotNil(t, fever.Source)
	assert.Equal(t, "12", *fever.Source)

	allergies := ext.Answers["allergies_details"]
	assert.Equal(t, "Penicillin", allergies.Answer)
	assert.Equal(t, 0.8, allergies.Confidence)
	assert.Equal(t, "7", *allergies.Source)
}

func TestParseAnswers_Defaults(t *testing.T) {
	ext, err := ParseAnswers(`{"smoker":"no","weight":{"answer":"80 kg"},"height":{"answer":"180","confidence":4}}`)
	require.NoError(t, err)

	smoker := ext.Answers["smoker"]
	assert.Equal(t, "no", smoker.Answer)
	assert.Equal(t, 1.0, smoker.Confidence)
	assert.Nil(t, smoker.Source)

	assert.Equal(t, 1.0, ext.Answers["weight"].Confidence)
	assert.Equal(t, 1.0, ext.Answers["height"].Confidence)
}

func TestParseAnswers_DropsBareNull(t *testing.T) {
	ext, err := ParseAnswers(`{"fever":null,"weight":{"answer":null,"confidence":0.3}}`)
	require.NoError(t, err)

	_, ok := ext.Answers["fever"]
	assert.False(t, ok)
	assert.Equal(t, []string{"weight"}, ext.Order)
	assert.Nil(t, ext.Answers["weight"].Answer)
	assert.Equal(t, 0.3, ext.Answers["weight"].Confidence)
}

func TestParseAnswers_Empty(t *testing.T) {
	for _, raw := range []string{"", "{}", "null", "```json\n{}\n```"} {
		ext, err := ParseAnswers(raw)
		require.NoError(t, err, "input %q", raw)
		assert.True(t, ext.Empty(), "input %q", raw)
	}
}

func TestParseAnswers_Unparseable(t *testing.T) {
	for _, raw := range []string{
		"not json at all",
		`["fever"]`,
		`[]`,
		`42`,
		`"hello"`,
		`true`,
		`{"fever": {"answer": true}`,
		`{"a":1} {"b":2}`,
	} {
		_, err := ParseAnswers(raw)
		assert.ErrorIs(t, err, ErrUnparseableOutput, "input %q", raw)
	}
}
