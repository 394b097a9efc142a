package analysis

import "fmt"

// BuildPrompt returns the instruction sent to the text-generation endpoint.
// Unknown tones are embedded literally.
func BuildPrompt(reviewText, tone string) string {
	return fmt.Sprintf(
		"Analyze this review: '%s'. Tone: %s. "+
			`Return ONLY a valid JSON object with these exact fields: `+
			`{ "sentiment": "Positive" or "Negative" or "Neutral", "issues": ["issue1", "issue2", "issue3"], "reply": "professional business response" }. `+
			"The reply should address the issues in %s tone.",
		reviewText, tone, tone,
	)
}
