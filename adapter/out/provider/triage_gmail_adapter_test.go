package provider

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"triage_server/core/port/out"
)

func TestConvertMessage(t *testing.T) {
	msg := &gmail.Message{
		Id:      "m1",
		Snippet: "hello there",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "a@example.com"},
				{Name: "Subject", Value: "hi"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/plain",
					Body:     &gmail.MessagePartBody{Data: "aGVsbG8"},
				},
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: "PGI-aGk8L2I-"},
				},
			},
		},
	}

	raw := convertMessage(msg)
	if raw.ID != "m1" || raw.Snippet != "hello there" {
		t.Errorf("converted = %+v", raw)
	}
	if len(raw.Payload.Headers) != 2 || raw.Payload.Headers[1].Value != "hi" {
		t.Errorf("headers = %+v", raw.Payload.Headers)
	}
	if len(raw.Payload.Parts) != 2 {
		t.Fatalf("parts len = %d, want 2", len(raw.Payload.Parts))
	}
	if raw.Payload.Parts[0].Data != "aGVsbG8" {
		t.Errorf("part data = %q, want still encoded", raw.Payload.Parts[0].Data)
	}
}

func TestConvertMessageNilPayload(t *testing.T) {
	raw := convertMessage(&gmail.Message{Id: "m2"})
	if raw.Payload != nil {
		t.Errorf("Payload = %+v, want nil", raw.Payload)
	}
}

func TestWrapError(t *testing.T) {
	a := NewGmailAdapter(zerolog.Nop())

	tests := []struct {
		name     string
		err      error
		wantCode out.ProviderErrorCode
	}{
		{name: "401", err: &googleapi.Error{Code: 401}, wantCode: out.ProviderErrAuth},
		{name: "403", err: &googleapi.Error{Code: 403}, wantCode: out.ProviderErrForbidden},
		{name: "429", err: &googleapi.Error{Code: 429}, wantCode: out.ProviderErrRateLimit},
		{name: "500", err: &googleapi.Error{Code: 500}, wantCode: out.ProviderErrServer},
		{name: "404", err: &googleapi.Error{Code: 404}, wantCode: out.ProviderErrInvalidInput},
		{name: "breaker open", err: gobreaker.ErrOpenState, wantCode: out.ProviderErrServer},
		{name: "plain error", err: errors.New("connection reset"), wantCode: out.ProviderErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := a.wrapError(tt.err, "boom")
			var provErr *out.ProviderError
			if !errors.As(wrapped, &provErr) {
				t.Fatalf("wrapError() = %T, want *out.ProviderError", wrapped)
			}
			if provErr.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", provErr.Code, tt.wantCode)
			}
		})
	}
}

func TestExecuteWithCircuitBreakerPassesClientErrors(t *testing.T) {
	a := NewGmailAdapter(zerolog.Nop())

	clientErr := &googleapi.Error{Code: 401}
	// Repeated client errors must come back unwrapped and must not open
	// the breaker.
	for i := 0; i < 20; i++ {
		err := a.executeWithCircuitBreaker(func() error { return clientErr })
		if !errors.Is(err, clientErr) {
			t.Fatalf("iteration %d: err = %v, want the client error", i, err)
		}
	}
	if got := a.cb.State().String(); got != "closed" {
		t.Errorf("breaker state = %q, want closed", got)
	}
}
