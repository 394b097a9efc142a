// Package llm provides text-generation backends. Each Generator sends one
// prompt and returns the raw text the model produced.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ErrEmptyResponse is returned when a backend answers without any text.
var ErrEmptyResponse = errors.New("no text content in API response")

// Generator produces text for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the backend in logs.
	Name() string
}

// AnthropicGenerator wraps the Anthropic Messages API.
type AnthropicGenerator struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewAnthropic creates a generator with the given API key and model.
// baseURL is optional and mainly useful for proxies and tests.
func NewAnthropic(apiKey, model, baseURL string) *AnthropicGenerator {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicGenerator{
		api:   &client,
		model: anthropic.Model(model),
	}
}

func (g *AnthropicGenerator) Name() string { return "anthropic:" + string(g.model) }

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}
