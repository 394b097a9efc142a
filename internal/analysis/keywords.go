package analysis

import (
	"strings"

	"github.com/joescharf/reviewdesk/internal/models"
)

var (
	negativeMarkers = []string{"bad", "terrible", "worst"}
	positiveMarkers = []string{"great", "excellent", "love"}
)

// ClassifyKeywords guesses a sentiment from marker words in text.
// Positive wins when it has at least as many hits as negative.
func ClassifyKeywords(text string) models.Sentiment {
	lower := strings.ToLower(text)
	pos := countMarkers(lower, positiveMarkers)
	neg := countMarkers(lower, negativeMarkers)
	switch {
	case pos > 0 && pos >= neg:
		return models.SentimentPositive
	case neg > 0:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func countMarkers(text string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += strings.Count(text, m)
	}
	return n
}
