package cmd

import (
	"net/http"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/joescharf/reviewdesk/internal/llm"
)

// providerKeyEnv names the conventional API key variable per provider.
var providerKeyEnv = map[string]string{
	llm.ProviderAnthropic: "ANTHROPIC_API_KEY",
	llm.ProviderOpenAI:    "OPENAI_API_KEY",
}

// newGenerator builds the configured text generator. An empty
// analysis.api_key falls back to the provider's usual environment variable.
func newGenerator(client *http.Client) (llm.Generator, error) {
	provider := strings.ToLower(viper.GetString("analysis.provider"))
	apiKey := viper.GetString("analysis.api_key")
	if apiKey == "" {
		if env, ok := providerKeyEnv[provider]; ok {
			apiKey = os.Getenv(env)
		}
	}
	return llm.New(llm.Config{
		Provider: provider,
		BaseURL:  viper.GetString("analysis.base_url"),
		Model:    viper.GetString("analysis.model"),
		APIKey:   apiKey,
	}, client)
}
