// Package llm implements chat-model adapters for the classification
// pipeline.
package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"triage_server/core/port/out"
)

const (
	// DefaultOpenAIModel is used unless the bootstrap overrides it.
	DefaultOpenAIModel = "gpt-4o"

	// DefaultTemperature keeps answers stable enough to parse.
	DefaultTemperature float32 = 0.2
)

// OpenAIAdapter implements out.ChatModelPort against the OpenAI chat
// completion API.
type OpenAIAdapter struct {
	client      *openai.Client
	model       string
	temperature float32
}

var _ out.ChatModelPort = (*OpenAIAdapter)(nil)

// NewOpenAIAdapter creates an adapter for the given key. model may be
// empty to use the default.
func NewOpenAIAdapter(apiKey, model string, temperature float32) *OpenAIAdapter {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return &OpenAIAdapter{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
	}
}

func (a *OpenAIAdapter) GetProviderType() string {
	return string(out.ChatProviderOpenAI)
}

// Invoke sends one user prompt and returns the raw completion text.
func (a *OpenAIAdapter) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", a.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// wrapError maps OpenAI API failures onto provider error codes.
func (a *OpenAIAdapter) wrapError(err error) error {
	provider := a.GetProviderType()

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401:
			return out.NewProviderError(provider, out.ProviderErrAuth, "invalid OpenAI API key", err, false)
		case apiErr.HTTPStatusCode == 403:
			return out.NewProviderError(provider, out.ProviderErrForbidden, "OpenAI access denied", err, false)
		case apiErr.HTTPStatusCode == 429:
			return out.NewProviderError(provider, out.ProviderErrRateLimit, "OpenAI rate limit exceeded", err, true)
		case apiErr.HTTPStatusCode >= 500:
			return out.NewProviderError(provider, out.ProviderErrServer, "OpenAI service unavailable", err, true)
		default:
			return out.NewProviderError(provider, out.ProviderErrInvalidInput, "OpenAI request rejected", err, false)
		}
	}

	var authErr *openai.RequestError
	if errors.As(err, &authErr) && authErr.HTTPStatusCode == 401 {
		return out.NewProviderError(provider, out.ProviderErrAuth, "invalid OpenAI API key", err, false)
	}

	return out.NewProviderError(provider, out.ProviderErrNetwork, "OpenAI request failed", err, true)
}
