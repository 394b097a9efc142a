package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joescharf/reviewdesk/internal/models"
)

// Fixed texts used when the endpoint's answer is incomplete or unusable.
const (
	DefaultReply = "Thank you for your feedback."
	ApologyReply = "Unable to generate response. Please try again."
)

var (
	// PlaceholderIssues fill in when a decoded payload has no issue list.
	PlaceholderIssues = []string{"Issue 1", "Issue 2", "Issue 3"}
	// UnparsedIssues explain that the payload was not valid JSON.
	UnparsedIssues = []string{"Unable to parse AI response", "Please try again", "Raw response below"}
	// UnreachableIssues explain that no payload was obtained.
	UnreachableIssues = []string{"Network error", "Please check connection", "Try again"}
)

// Parse turns a raw endpoint payload into a result. reviewText feeds the
// keyword heuristic when the payload cannot be decoded.
func Parse(reviewText, payload string) models.AnalysisResult {
	fields, ok := decodeObject(payload)
	if !ok {
		return unparsedResult(reviewText, payload)
	}

	res := models.AnalysisResult{
		Sentiment: models.SentimentNeutral,
		Issues:    clone(PlaceholderIssues),
		Reply:     DefaultReply,
		Outcome:   models.OutcomeParsed,
	}
	if s, ok := fields["sentiment"].(string); ok {
		res.Sentiment = models.ParseSentiment(s)
	}
	if list, ok := fields["issues"].([]any); ok {
		issues := make([]string, 0, len(list))
		for _, item := range list {
			switch v := item.(type) {
			case string:
				issues = append(issues, v)
			case nil:
			default:
				issues = append(issues, fmt.Sprint(v))
			}
		}
		res.Issues = models.TruncateIssues(issues)
	}
	if r, ok := fields["reply"].(string); ok && strings.TrimSpace(r) != "" {
		res.Reply = r
	}
	return res
}

// decodeObject strictly decodes payload as a JSON object, after removing
// surrounding whitespace and an optional markdown code fence.
func decodeObject(payload string) (map[string]any, bool) {
	text := stripFence(payload)
	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// stripFence removes a ```json ... ``` wrapper if present.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

func unparsedResult(reviewText, payload string) models.AnalysisResult {
	reply := payload
	if strings.TrimSpace(reply) == "" {
		reply = ApologyReply
	}
	return models.AnalysisResult{
		Sentiment: ClassifyKeywords(reviewText),
		Issues:    clone(UnparsedIssues),
		Reply:     reply,
		Outcome:   models.OutcomeUnparsed,
	}
}

// UnreachableResult is returned when the endpoint produced no payload.
func UnreachableResult() models.AnalysisResult {
	return models.AnalysisResult{
		Sentiment: models.SentimentNeutral,
		Issues:    clone(UnreachableIssues),
		Reply:     ApologyReply,
		Outcome:   models.OutcomeUnreachable,
	}
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
