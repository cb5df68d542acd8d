// Package http implements the inbound REST API.
package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
)

// EmailHandler exposes the fetch-and-classify pipeline over HTTP.
type EmailHandler struct {
	service in.TriageService
}

// NewEmailHandler creates the handler.
func NewEmailHandler(service in.TriageService) *EmailHandler {
	return &EmailHandler{service: service}
}

// RegisterRoutes mounts the email endpoints on router.
func (h *EmailHandler) RegisterRoutes(router fiber.Router) {
	emails := router.Group("/emails")
	emails.Post("/fetch", h.Fetch)
	emails.Post("/classify", h.Classify)
	emails.Post("/run", h.Run)
	emails.Get("/results", h.Results)
}

type fetchRequest struct {
	AccessToken string `json:"access_token"`
}

type fetchResponse struct {
	Success bool             `json:"success"`
	Emails  []domain.Message `json:"emails"`
}

// Fetch pulls and normalizes the most recent mailbox messages.
func (h *EmailHandler) Fetch(c *fiber.Ctx) error {
	var req fetchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.ValidationFailed("invalid request body").WithError(err)
	}

	msgs, err := h.service.FetchMessages(c.Context(), req.AccessToken)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return c.JSON(fetchResponse{Success: true, Emails: msgs})
}

type classifyRequest struct {
	Emails    []domain.Message `json:"emails"`
	Provider  string           `json:"provider"`
	OpenAIKey string           `json:"openai_key"`
	GeminiKey string           `json:"gemini_key"`
}

type classifyResponse struct {
	Success          bool                       `json:"success"`
	ClassifiedEmails []domain.ClassifiedMessage `json:"classified_emails"`
	PartialFailures  int                        `json:"partial_failures"`
}

// Classify runs one classification batch over caller-supplied messages.
func (h *EmailHandler) Classify(c *fiber.Ctx) error {
	var req classifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.ValidationFailed("invalid request body").WithError(err)
	}
	if req.Emails == nil {
		return apperr.ValidationFailed("invalid emails array")
	}

	provider, apiKey, err := resolveProviderKey(req.Provider, req.OpenAIKey, req.GeminiKey)
	if err != nil {
		return err
	}

	result, err := h.service.ClassifyBatch(c.Context(), &in.ClassifyRequest{
		Messages: req.Emails,
		Provider: provider,
		APIKey:   apiKey,
	})
	if err != nil {
		return err
	}
	return c.JSON(classifyResponse{
		Success:          true,
		ClassifiedEmails: result.Classified,
		PartialFailures:  result.PartialFailures,
	})
}

type runRequest struct {
	AccessToken string `json:"access_token"`
	Provider    string `json:"provider"`
	OpenAIKey   string `json:"openai_key"`
	GeminiKey   string `json:"gemini_key"`
	UserKey     string `json:"user_key"`
}

type runResponse struct {
	Success          bool                       `json:"success"`
	ClassifiedEmails []domain.ClassifiedMessage `json:"classified_emails"`
	PartialFailures  int                        `json:"partial_failures"`
	CategoryCounts   map[domain.Category]int    `json:"category_counts"`
	FetchedAt        time.Time                  `json:"fetched_at"`
}

// Run executes the full fetch-classify-persist pipeline.
func (h *EmailHandler) Run(c *fiber.Ctx) error {
	var req runRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.ValidationFailed("invalid request body").WithError(err)
	}

	provider, apiKey, err := resolveProviderKey(req.Provider, req.OpenAIKey, req.GeminiKey)
	if err != nil {
		return err
	}

	result, err := h.service.Run(c.Context(), &in.RunRequest{
		AccessToken: req.AccessToken,
		Provider:    provider,
		APIKey:      apiKey,
		UserKey:     req.UserKey,
	})
	if err != nil {
		return err
	}
	return c.JSON(runResponse{
		Success:          true,
		ClassifiedEmails: result.Result.Classified,
		PartialFailures:  result.Result.PartialFailures,
		CategoryCounts:   result.CategoryCounts,
		FetchedAt:        result.FetchedAt,
	})
}

type resultsResponse struct {
	Success          bool                       `json:"success"`
	ClassifiedEmails []domain.ClassifiedMessage `json:"classified_emails"`
	PartialFailures  int                        `json:"partial_failures"`
	LastRun          time.Time                  `json:"last_run"`
}

// Results returns the last persisted batch for a user.
func (h *EmailHandler) Results(c *fiber.Ctx) error {
	userKey := c.Query("user_key")
	if userKey == "" {
		return apperr.MissingField("user_key")
	}

	stored, err := h.service.LastResult(c.Context(), userKey)
	if err != nil {
		return err
	}
	return c.JSON(resultsResponse{
		Success:          true,
		ClassifiedEmails: stored.Result.Classified,
		PartialFailures:  stored.Result.PartialFailures,
		LastRun:          stored.LastRun,
	})
}

// resolveProviderKey validates the provider name and picks the matching
// API key from the request.
func resolveProviderKey(providerName, openAIKey, geminiKey string) (out.ChatProvider, string, error) {
	if providerName == "" {
		providerName = string(out.ChatProviderOpenAI)
	}
	provider, ok := out.ParseChatProvider(providerName)
	if !ok {
		return "", "", apperr.ValidationFailed(`invalid provider, use "openai" or "gemini"`)
	}

	apiKey := openAIKey
	if provider == out.ChatProviderGemini {
		apiKey = geminiKey
	}
	if apiKey == "" {
		label := "OpenAI"
		if provider == out.ChatProviderGemini {
			label = "Gemini"
		}
		return "", "", apperr.ValidationFailed(label + " API key is required")
	}
	return provider, apiKey, nil
}
