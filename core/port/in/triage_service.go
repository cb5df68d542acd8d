// Package in defines inbound ports (driving ports) for the application.
package in

import (
	"context"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// ClassifyRequest carries one batch classification call. It is constructed
// per run and never persisted; APIKey is passed by value into provider
// calls and never cached.
type ClassifyRequest struct {
	Messages []domain.Message
	Provider out.ChatProvider
	APIKey   string
}

// RunRequest drives one full fetch-and-classify pipeline run.
type RunRequest struct {
	AccessToken string
	Provider    out.ChatProvider
	APIKey      string
	UserKey     string
}

// RunResult is what a completed pipeline run hands back to the caller.
type RunResult struct {
	Result         *domain.BatchResult     `json:"result"`
	CategoryCounts map[domain.Category]int `json:"category_counts"`
	FetchedAt      time.Time               `json:"fetched_at"`
}

// StoredResult is the last persisted batch for a user.
type StoredResult struct {
	Result  *domain.BatchResult `json:"result"`
	LastRun time.Time           `json:"last_run"`
}

// TriageService is the inbound port for the fetch-and-classify pipeline.
type TriageService interface {
	// FetchMessages fetches and normalizes the most recent mailbox messages.
	FetchMessages(ctx context.Context, accessToken string) ([]domain.Message, error)

	// ClassifyBatch classifies every message in the request; a single
	// failing message never fails the batch.
	ClassifyBatch(ctx context.Context, req *ClassifyRequest) (*domain.BatchResult, error)

	// Run sequences fetch, classify, persist.
	Run(ctx context.Context, req *RunRequest) (*RunResult, error)

	// LastResult returns the most recently persisted batch for userKey.
	LastResult(ctx context.Context, userKey string) (*StoredResult, error)
}
