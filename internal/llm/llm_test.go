package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollinations_EncodesPromptAsPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, `{"sentiment":"Positive"}`)
	}))
	defer srv.Close()

	g := NewPollinations(srv.URL+"/", "", srv.Client())
	prompt := "Analyze this review: 'a/b & c?'"
	out, err := g.Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, `{"sentiment":"Positive"}`, out)

	decoded, err := url.PathUnescape(gotPath[1:])
	require.NoError(t, err)
	assert.Equal(t, prompt, decoded)
	assert.NotContains(t, gotPath[1:], "/", "slashes in the prompt must be escaped")
}

func TestPollinations_ModelQuery(t *testing.T) {
	g := NewPollinations("https://example.test", "openai", nil)
	assert.Equal(t, "https://example.test/hi%20there?model=openai", g.RequestURL("hi there"))
}

func TestPollinations_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewPollinations(srv.URL, "", srv.Client()).Generate(context.Background(), "p")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Contains(t, se.Error(), "overloaded")
}

func TestPollinations_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewPollinations(base, "", nil).Generate(context.Background(), "p")
	assert.Error(t, err)
}

func TestOpenAI_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "hello", body.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"world"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	g := NewOpenAI("sk-test", srv.URL+"/v1", "test-model")
	out, err := g.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "world", out)
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI("sk-test", srv.URL+"/v1", "m").Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropic_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"m",
			"content":[{"type":"text","text":"{\"sentiment\":\"Negative\"}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":5}}`)
	}))
	defer srv.Close()

	g := NewAnthropic("sk-ant-test", "m", srv.URL+"/")
	out, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"sentiment":"Negative"}`, out)
}

func TestNew(t *testing.T) {
	g, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pollinations", g.Name())

	_, err = New(Config{Provider: "anthropic"}, nil)
	assert.Error(t, err)

	g, err = New(Config{Provider: "Anthropic", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic:"+DefaultAnthropicModel, g.Name())

	g, err = New(Config{Provider: "openai", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai:"+DefaultOpenAIModel, g.Name())

	_, err = New(Config{Provider: "telepathy"}, nil)
	assert.Error(t, err)
}
