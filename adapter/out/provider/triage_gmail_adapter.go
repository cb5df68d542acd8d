// Package provider implements mailbox provider adapters.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"triage_server/core/port/out"
	"triage_server/pkg/metrics"
)

const (
	// maxConcurrency bounds parallel message fetches against the Gmail
	// API rate limit.
	maxConcurrency = 10

	perMessageTimeout = 15 * time.Second
)

// GmailAdapter implements out.MailProviderPort for Gmail. Tokens arrive
// per request; the adapter holds no credentials of its own.
type GmailAdapter struct {
	cb  *gobreaker.CircuitBreaker
	log zerolog.Logger
}

var _ out.MailProviderPort = (*GmailAdapter)(nil)

// NewGmailAdapter creates a Gmail adapter with circuit breaker protection.
func NewGmailAdapter(log zerolog.Logger) *GmailAdapter {
	logger := log.With().Str("component", "gmail_adapter").Logger()

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &GmailAdapter{
		cb:  gobreaker.NewCircuitBreaker(cbSettings),
		log: logger,
	}
}

// GetProviderType returns the provider type.
func (a *GmailAdapter) GetProviderType() string {
	return "gmail"
}

// ListRecent fetches the most recent limit messages with full payloads.
// Individual message fetch failures are skipped rather than failing the
// whole listing.
func (a *GmailAdapter) ListRecent(ctx context.Context, accessToken string, limit int) ([]out.RawMessage, error) {
	if accessToken == "" {
		return nil, out.NewProviderError(a.GetProviderType(), out.ProviderErrInvalidInput,
			"access token is required", nil, false)
	}

	svc, err := a.newService(ctx, accessToken)
	if err != nil {
		return nil, a.wrapError(err, "failed to create Gmail client")
	}

	start := time.Now()
	var listResp *gmail.ListMessagesResponse
	err = a.executeWithCircuitBreaker(func() error {
		var listErr error
		listResp, listErr = svc.Users.Messages.List("me").
			MaxResults(int64(limit)).
			Context(ctx).Do()
		return listErr
	})
	if err != nil {
		metrics.RecordFetch(a.GetProviderType(), "error", time.Since(start))
		return nil, a.wrapError(err, "failed to list messages")
	}

	raws := a.fetchMessagesParallel(ctx, svc, listResp.Messages)
	metrics.RecordFetch(a.GetProviderType(), "ok", time.Since(start))

	a.log.Debug().
		Int("listed", len(listResp.Messages)).
		Int("fetched", len(raws)).
		Msg("listed recent messages")
	return raws, nil
}

// newService builds a Gmail client around the caller's bearer token.
func (a *GmailAdapter) newService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return gmail.NewService(ctx, option.WithTokenSource(source))
}

// fetchMessagesParallel fetches full message payloads concurrently, bounded
// by a semaphore. Results are collected index-keyed so input order is kept;
// messages that fail to fetch are dropped.
func (a *GmailAdapter) fetchMessagesParallel(ctx context.Context, svc *gmail.Service, refs []*gmail.Message) []out.RawMessage {
	if len(refs) == 0 {
		return nil
	}

	type result struct {
		index int
		msg   out.RawMessage
		err   error
	}

	results := make(chan result, len(refs))
	sem := make(chan struct{}, maxConcurrency)

	for i, ref := range refs {
		go func(idx int, id string) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- result{index: idx, err: ctx.Err()}
				return
			}

			msgCtx, cancel := context.WithTimeout(ctx, perMessageTimeout)
			defer cancel()

			full, err := svc.Users.Messages.Get("me", id).
				Format("full").
				Context(msgCtx).Do()
			if err != nil {
				results <- result{index: idx, err: err}
				return
			}
			results <- result{index: idx, msg: convertMessage(full)}
		}(i, ref.Id)
	}

	ordered := make([]out.RawMessage, len(refs))
	for collected := 0; collected < len(refs); collected++ {
		select {
		case r := <-results:
			if r.err != nil {
				a.log.Warn().Err(r.err).Int("index", r.index).Msg("skipping message that failed to fetch")
				continue
			}
			ordered[r.index] = r.msg
		case <-ctx.Done():
			collected = len(refs)
		}
	}

	raws := make([]out.RawMessage, 0, len(refs))
	for _, msg := range ordered {
		if msg.ID != "" {
			raws = append(raws, msg)
		}
	}
	return raws
}

// convertMessage maps a Gmail message onto the provider-neutral payload
// tree. Part data stays base64url-encoded.
func convertMessage(msg *gmail.Message) out.RawMessage {
	return out.RawMessage{
		ID:      msg.Id,
		Snippet: msg.Snippet,
		Payload: convertPart(msg.Payload),
	}
}

func convertPart(part *gmail.MessagePart) *out.RawPart {
	if part == nil {
		return nil
	}

	raw := &out.RawPart{MimeType: part.MimeType}
	for _, h := range part.Headers {
		raw.Headers = append(raw.Headers, out.RawHeader{Name: h.Name, Value: h.Value})
	}
	if part.Body != nil {
		raw.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		if converted := convertPart(child); converted != nil {
			raw.Parts = append(raw.Parts, converted)
		}
	}
	return raw
}

// executeWithCircuitBreaker wraps an API call so that sustained Gmail
// outages fail fast. Client errors are excluded from tripping the breaker.
func (a *GmailAdapter) executeWithCircuitBreaker(fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case 429, 500, 502, 503:
					return nil, err
				default:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func (e *nonCircuitError) Unwrap() error {
	return e.err
}

// wrapError maps Gmail API failures onto provider error codes.
func (a *GmailAdapter) wrapError(err error, message string) error {
	provider := a.GetProviderType()

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out.NewProviderError(provider, out.ProviderErrServer,
			"Gmail API temporarily unavailable", err, true)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401:
			return out.NewProviderError(provider, out.ProviderErrAuth, "invalid or expired access token", err, false)
		case apiErr.Code == 403:
			return out.NewProviderError(provider, out.ProviderErrForbidden, "Gmail access denied", err, false)
		case apiErr.Code == 429:
			return out.NewProviderError(provider, out.ProviderErrRateLimit, "Gmail API rate limit exceeded", err, true)
		case apiErr.Code >= 500:
			return out.NewProviderError(provider, out.ProviderErrServer, "Gmail service unavailable", err, true)
		default:
			return out.NewProviderError(provider, out.ProviderErrInvalidInput, message, err, false)
		}
	}

	return out.NewProviderError(provider, out.ProviderErrNetwork, message, err, true)
}
