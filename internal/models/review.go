package models

import (
	"strings"
	"time"
)

// Sentiment is the coarse polarity of a review.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// ParseSentiment maps free text onto the closed Sentiment set.
// Matching is case-insensitive; anything unrecognized is Neutral.
func ParseSentiment(s string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return SentimentPositive
	case "negative":
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Valid reports whether s is one of the three known sentiments.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// MaxIssues caps the number of issues kept per analysis.
const MaxIssues = 3

// Tone labels offered by the presentation layer. Other labels are passed
// through to the prompt unchanged.
const (
	ToneProfessional = "Professional"
	ToneFriendly     = "Friendly"
	ToneWitty        = "Witty"
	ToneApologetic   = "Apologetic"
)

// DefaultTone is used when no tone was chosen.
const DefaultTone = ToneProfessional

// Tones returns the known tone labels in display order.
func Tones() []string {
	return []string{ToneProfessional, ToneFriendly, ToneWitty, ToneApologetic}
}

// TruncateIssues returns at most MaxIssues entries of issues.
func TruncateIssues(issues []string) []string {
	if len(issues) > MaxIssues {
		issues = issues[:MaxIssues]
	}
	out := make([]string, len(issues))
	copy(out, issues)
	return out
}

// ReviewRecord is a persisted analysis of one customer review.
// Reply is the only field that changes after creation.
type ReviewRecord struct {
	ID         string    `json:"id"`
	ReviewText string    `json:"review_text"`
	Tone       string    `json:"tone"`
	Sentiment  Sentiment `json:"sentiment"`
	Issues     []string  `json:"issues"`
	Reply      string    `json:"reply"`
	CreatedAt  time.Time `json:"created_at"`
}
