package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"triage_server/core/port/out"
	"triage_server/pkg/httputil"
)

const (
	// DefaultGeminiModel is used unless the bootstrap overrides it.
	DefaultGeminiModel = "gemini-2.0-flash"

	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiAdapter implements out.ChatModelPort against the Gemini
// generateContent REST API.
type GeminiAdapter struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float32
}

var _ out.ChatModelPort = (*GeminiAdapter)(nil)

// NewGeminiAdapter creates an adapter for the given key. model may be
// empty to use the default.
func NewGeminiAdapter(apiKey, model string, temperature float32) *GeminiAdapter {
	if model == "" {
		model = DefaultGeminiModel
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return &GeminiAdapter{
		client:      httputil.NewClient(httputil.ChatModelClientConfig()),
		baseURL:     geminiBaseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
	}
}

func (a *GeminiAdapter) GetProviderType() string {
	return string(out.ChatProviderGemini)
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature float32 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Invoke sends one prompt through generateContent and returns the
// concatenated candidate text.
func (a *GeminiAdapter) Invoke(ctx context.Context, prompt string) (string, error) {
	provider := a.GetProviderType()

	payload, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{Temperature: a.temperature},
	})
	if err != nil {
		return "", out.NewProviderError(provider, out.ProviderErrInvalidInput, "failed to encode Gemini request", err, false)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		a.baseURL, a.model, url.QueryEscape(a.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", out.NewProviderError(provider, out.ProviderErrInvalidInput, "failed to build Gemini request", err, false)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", out.NewProviderError(provider, out.ProviderErrNetwork, "Gemini request failed", err, true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", out.NewProviderError(provider, out.ProviderErrNetwork, "failed to read Gemini response", err, true)
	}

	if resp.StatusCode != http.StatusOK {
		return "", a.wrapStatus(resp.StatusCode, body)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", out.NewProviderError(provider, out.ProviderErrServer, "failed to decode Gemini response", err, true)
	}
	if len(parsed.Candidates) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// wrapStatus maps non-200 generateContent responses onto provider error
// codes. The response body, when decodable, supplies the message.
func (a *GeminiAdapter) wrapStatus(status int, body []byte) error {
	provider := a.GetProviderType()

	message := fmt.Sprintf("Gemini returned status %d", status)
	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}
	cause := fmt.Errorf("gemini: %s", message)

	switch {
	// Gemini reports a bad key as 400 with an "API key not valid" message.
	case status == http.StatusUnauthorized,
		status == http.StatusBadRequest && strings.Contains(message, "API key"):
		return out.NewProviderError(provider, out.ProviderErrAuth, "invalid Gemini API key", cause, false)
	case status == http.StatusForbidden:
		return out.NewProviderError(provider, out.ProviderErrForbidden, "Gemini access denied", cause, false)
	case status == http.StatusTooManyRequests:
		return out.NewProviderError(provider, out.ProviderErrRateLimit, "Gemini rate limit exceeded", cause, true)
	case status >= 500:
		return out.NewProviderError(provider, out.ProviderErrServer, "Gemini service unavailable", cause, true)
	default:
		return out.NewProviderError(provider, out.ProviderErrInvalidInput, message, cause, false)
	}
}
