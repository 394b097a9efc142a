// Package analysis turns a review into a sentiment, up to three issues and a
// draft reply. Analyze never fails: endpoint errors and malformed payloads
// are folded into deterministic fallback results.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joescharf/reviewdesk/internal/llm"
	"github.com/joescharf/reviewdesk/internal/models"
)

// DefaultTimeout bounds a single endpoint call.
const DefaultTimeout = 60 * time.Second

// Client analyzes reviews through a text generator.
type Client struct {
	gen     llm.Generator
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each call; zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client that sends prompts to gen.
func NewClient(gen llm.Generator, opts ...Option) *Client {
	c := &Client{gen: gen, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "analysis", "generator", gen.Name())
	return c
}

// Analyze sends one request for reviewText and always returns a populated
// result.
func (c *Client) Analyze(ctx context.Context, reviewText, tone string) (res models.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("generator panicked", "panic", r)
			res = UnreachableResult()
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	payload, err := c.gen.Generate(ctx, BuildPrompt(reviewText, tone))
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) && strings.TrimSpace(statusErr.Body) != "" {
		// The endpoint answered; its body is still shown to the user.
		c.logger.Warn("endpoint returned an error status", "status", statusErr.Code, "elapsed", time.Since(start))
		payload, err = statusErr.Body, nil
	}
	if err != nil {
		c.logger.Error("analyze review failed", "error", err, "elapsed", time.Since(start))
		return UnreachableResult()
	}

	res = Parse(reviewText, payload)
	if res.Outcome == models.OutcomeUnparsed {
		c.logger.Warn("endpoint payload is not a JSON object; using keyword fallback", "bytes", len(payload))
	}
	c.logger.Debug("review analyzed", "sentiment", res.Sentiment, "outcome", res.Outcome, "elapsed", time.Since(start))
	return res
}
