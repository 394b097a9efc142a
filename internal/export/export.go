// Package export renders the displayed analysis as a plain-text document.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joescharf/reviewdesk/internal/models"
)

// Document is a rendered export ready to be written or served.
type Document struct {
	Filename string
	Content  string
}

// Render formats sentiment, issues and reply.
func Render(sentiment models.Sentiment, issues []string, reply string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SENTIMENT: %s\n\nKEY POINTS:\n", sentiment)
	for i, issue := range issues {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(issue)
	}
	sb.WriteString("\n\nREPLY:\n")
	sb.WriteString(reply)
	return sb.String()
}

// Filename names an export created at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("review-response-%d.txt", t.UnixMilli())
}

// New renders a Document stamped with t.
func New(sentiment models.Sentiment, issues []string, reply string, t time.Time) Document {
	return Document{
		Filename: Filename(t),
		Content:  Render(sentiment, issues, reply),
	}
}

// Write stores doc in dir and returns the file path.
func Write(dir string, doc Document) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, doc.Filename)
	if err := os.WriteFile(path, []byte(doc.Content), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
