package models

// Outcome records which path produced an AnalysisResult.
type Outcome string

const (
	// OutcomeParsed means the endpoint returned decodable JSON.
	OutcomeParsed Outcome = "parsed"
	// OutcomeUnparsed means a payload arrived but was not JSON; the keyword
	// heuristic supplied the sentiment.
	OutcomeUnparsed Outcome = "unparsed"
	// OutcomeUnreachable means no payload was obtained at all.
	OutcomeUnreachable Outcome = "unreachable"
)

// AnalysisResult is the normalized output of one analysis call.
type AnalysisResult struct {
	Sentiment Sentiment `json:"sentiment"`
	Issues    []string  `json:"issues"`
	Reply     string    `json:"reply"`
	Outcome   Outcome   `json:"outcome"`
}

// ResultFromRecord rebuilds the displayed result for a history entry.
func ResultFromRecord(r *ReviewRecord) *AnalysisResult {
	return &AnalysisResult{
		Sentiment: ParseSentiment(string(r.Sentiment)),
		Issues:    TruncateIssues(r.Issues),
		Reply:     r.Reply,
		Outcome:   OutcomeParsed,
	}
}
