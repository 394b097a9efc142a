package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultPollinationsURL is the public text endpoint.
const DefaultPollinationsURL = "https://text.pollinations.ai"

// maxPayload caps how much of a response body is read.
const maxPayload = 1 << 20

// StatusError reports a non-2xx answer from an HTTP backend. Body holds the
// response payload as received.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// PollinationsGenerator issues GET <base>/<url-encoded prompt> and returns
// the plain-text body.
type PollinationsGenerator struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewPollinations returns a generator for baseURL (DefaultPollinationsURL
// when empty). model is optional and sent as a query parameter.
func NewPollinations(baseURL, model string, client *http.Client) *PollinationsGenerator {
	if baseURL == "" {
		baseURL = DefaultPollinationsURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &PollinationsGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
	}
}

func (g *PollinationsGenerator) Name() string { return "pollinations" }

// RequestURL returns the URL used for prompt.
func (g *PollinationsGenerator) RequestURL(prompt string) string {
	u := g.baseURL + "/" + url.PathEscape(prompt)
	if g.model != "" {
		u += "?" + url.Values{"model": {g.model}}.Encode()
	}
	return u
}

func (g *PollinationsGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.RequestURL(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to connect to text endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return string(data), nil
}
