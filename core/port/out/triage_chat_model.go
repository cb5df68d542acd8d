package out

import (
	"context"
	"strings"
)

// ChatProvider identifies a hosted chat-model provider.
type ChatProvider string

const (
	ChatProviderOpenAI ChatProvider = "openai"
	ChatProviderGemini ChatProvider = "gemini"
)

// ParseChatProvider matches s against the known providers.
func ParseChatProvider(s string) (ChatProvider, bool) {
	switch ChatProvider(strings.ToLower(strings.TrimSpace(s))) {
	case ChatProviderOpenAI:
		return ChatProviderOpenAI, true
	case ChatProviderGemini:
		return ChatProviderGemini, true
	default:
		return "", false
	}
}

// ChatModelPort is the capability this pipeline needs from a model
// provider: given a rendered prompt, return free text.
type ChatModelPort interface {
	GetProviderType() string
	Invoke(ctx context.Context, prompt string) (string, error)
}

// ChatModelFactory builds a ChatModelPort for a provider/credential pair.
// Selection is a pure function of the provider value.
type ChatModelFactory interface {
	CreateModel(provider ChatProvider, apiKey string) (ChatModelPort, error)
}
