package llm

import (
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
)

// ModelFactory builds chat-model adapters per request. Keys arrive with
// each request and are never stored beyond the adapter they configure.
type ModelFactory struct {
	openAIModel string
	geminiModel string
	temperature float32
}

var _ out.ChatModelFactory = (*ModelFactory)(nil)

// NewModelFactory creates a factory with the given model names. Empty
// names fall back to the adapter defaults.
func NewModelFactory(openAIModel, geminiModel string, temperature float32) *ModelFactory {
	return &ModelFactory{
		openAIModel: openAIModel,
		geminiModel: geminiModel,
		temperature: temperature,
	}
}

// CreateModel builds the adapter for provider using apiKey.
func (f *ModelFactory) CreateModel(provider out.ChatProvider, apiKey string) (out.ChatModelPort, error) {
	if apiKey == "" {
		return nil, apperr.MissingField("api_key")
	}
	switch provider {
	case out.ChatProviderOpenAI:
		return NewOpenAIAdapter(apiKey, f.openAIModel, f.temperature), nil
	case out.ChatProviderGemini:
		return NewGeminiAdapter(apiKey, f.geminiModel, f.temperature), nil
	default:
		return nil, apperr.ValidationFailed(`invalid provider, use "openai" or "gemini"`)
	}
}
