package llm

import (
	"fmt"
	"net/http"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderPollinations = "pollinations"
	ProviderAnthropic    = "anthropic"
	ProviderOpenAI       = "openai"
)

// Default models per provider.
const (
	DefaultAnthropicModel = "claude-haiku-4-5-20251001"
	DefaultOpenAIModel    = "gpt-4o-mini"
)

// Config selects and configures a Generator.
type Config struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
}

// New builds the Generator named by cfg.Provider.
func New(cfg Config, client *http.Client) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderPollinations, "":
		return NewPollinations(cfg.BaseURL, cfg.Model, client), nil
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key (set analysis.api_key or ANTHROPIC_API_KEY)")
		}
		model := cfg.Model
		if model == "" {
			model = DefaultAnthropicModel
		}
		return NewAnthropic(cfg.APIKey, model, cfg.BaseURL), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai provider requires an API key (set analysis.api_key or OPENAI_API_KEY)")
		}
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, model), nil
	default:
		return nil, fmt.Errorf("unknown analysis provider: %q", cfg.Provider)
	}
}
