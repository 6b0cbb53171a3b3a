package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt frames the model as a medical information extractor.
const SystemPrompt = `You are an AI medical assistant specializing in extracting precise patient information from medical documents.
You have been provided with medical documents and a structured questionnaire. Your task is to:
1. Carefully analyze each document description
2. Extract specific, concrete information that directly answers the questions in the questionnaire
3. Only include factual information actually present in the documents
4. If a clear answer is found, provide it with high confidence (0.8-1.0)
5. If an answer is suggested but not definitive, provide it with medium confidence (0.4-0.7)
6. If no answer is found, return null with zero confidence
7. For each answer, cite the specific document ID where the information was found
8. Be as precise as possible, avoid vague phrases like "and others" or "etc."
9. When describing medical conditions, medications, or allergies, always list specific names
10. For boolean questions answer true or false, never free text`

const outputContract = `INSTRUCTIONS:
For each question, provide:
1. A precise, specific answer extracted from the documents (or null if not found)
2. A confidence score (0.0 to 1.0) reflecting your certainty in the answer
3. The source document ID where you found the information

EXPECTED OUTPUT FORMAT:
{
  "questionId1": {
    "answer": "specific, precise answer text",
    "confidence": 0.95,
    "source": "documentId"
  },
  "questionId2": {
    "answer": null,
    "confidence": 0,
    "source": null
  }
}

EXAMPLES:

For allergies, INSTEAD OF writing:
{"allergies": {"answer": "Penicillin and others", "confidence": 0.9, "source": "123"}}

DO write:
{"allergies": {"answer": "Penicillin, amoxicillin, cephalosporins", "confidence": 0.9, "source": "123"}}

For vaccinations, INSTEAD OF writing:
{"vaccinations": {"answer": "Yellow fever, FSME, Hepatitis A, and other diseases", "confidence": 0.9, "source": "84"}}

DO write:
{"vaccinations": {"answer": "Yellow fever (2019), FSME (2020-2022), Hepatitis A (2021), Tetanus (2023)", "confidence": 0.9, "source": "84"}}

REMEMBER: Output ONLY valid JSON without any additional text. If no answers can be found for any questions, return an empty object {}.`

// BuildPrompt renders the user message for req.
func BuildPrompt(req Request) (string, error) {
	questions, err := json.MarshalIndent(req.Questions, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal questions: %w", err)
	}

	docs := make([]string, 0, len(req.Documents))
	for i, d := range req.Documents {
		docs = append(docs, fmt.Sprintf("Document %d (ID: %d): %s", i+1, d.DocumentID, d.Text))
	}
	documents, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal documents: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Based on the following medical documents, please answer the structured questionnaire questions.\n\n")
	sb.WriteString("QUESTIONNAIRE (with expected answer types):\n")
	sb.Write(questions)
	sb.WriteString("\n\nDOCUMENT DESCRIPTIONS:\n")
	sb.Write(documents)
	sb.WriteString("\n\n")
	sb.WriteString(outputContract)
	return sb.String(), nil
}
