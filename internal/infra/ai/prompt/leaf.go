package prompt

import (
	"fmt"
	"strings"
)

// GetSystemPrompt asks for the same JSON object the process predictor emits.
func GetSystemPrompt() string {
	return `You are a plant pathologist classifying a single photo of a plant leaf. You must produce one valid JSON object only (no markdown, no commentary). Do not include code fences.

Requirements:
- Output must be a single JSON object.
- If the photo does not show a plant leaf, set "ok" to false, "plant_detected" to false and explain in "reason".
- predicted_key uses the form "<Plant>___<Disease>" with underscores instead of spaces, for example "Tomato___Leaf_Mold" or "Apple___healthy".
- confidence is a number between 0 and 1.
- top lists at most 3 alternative labels, best first.

Schema (example with empty values):
{
  "ok": true,
  "reason": "<string or empty>",
  "plant_detected": true,
  "plant_ratio": 0.0,
  "predicted_key": "<Plant>___<Disease>",
  "confidence": 0.0,
  "top": [{"label": "<Plant>___<Disease>", "confidence": 0.0}]
}`
}

// GetUserPrompt lists the labels the answer should be drawn from, if any.
func GetUserPrompt(labels []string) string {
	if len(labels) == 0 {
		return "Classify the leaf in this photo and respond with the JSON per schema."
	}
	return fmt.Sprintf("Classify the leaf in this photo and respond with the JSON per schema. Prefer one of these labels: %s", strings.Join(labels, ", "))
}
