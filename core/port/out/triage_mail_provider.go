// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
)

// =============================================================================
// Mail Provider Port
// =============================================================================

// MailProviderPort is the outbound port for external mailbox providers.
type MailProviderPort interface {
	GetProviderType() string

	// ListRecent fetches the most recent messages for the account behind
	// accessToken, up to limit, newest first. The returned payloads keep
	// the provider's MIME part tree with body data still transfer-encoded;
	// decoding is the normalizer's job.
	ListRecent(ctx context.Context, accessToken string, limit int) ([]RawMessage, error)
}

// RawMessage is a provider message payload before normalization.
type RawMessage struct {
	ID      string
	Snippet string
	Payload *RawPart
}

// RawPart is one node of a MIME part tree. Data holds the base64url-encoded
// part content as delivered by the provider.
type RawPart struct {
	MimeType string
	Headers  []RawHeader
	Data     string
	Parts    []*RawPart
}

// RawHeader is a single message header.
type RawHeader struct {
	Name  string
	Value string
}

// =============================================================================
// Provider Error
// =============================================================================

// ProviderErrorCode classifies provider failures.
type ProviderErrorCode string

const (
	ProviderErrAuth         ProviderErrorCode = "auth_error"
	ProviderErrForbidden    ProviderErrorCode = "forbidden"
	ProviderErrRateLimit    ProviderErrorCode = "rate_limit"
	ProviderErrServer       ProviderErrorCode = "server_error"
	ProviderErrNetwork      ProviderErrorCode = "network_error"
	ProviderErrInvalidInput ProviderErrorCode = "invalid_input"
)

// ProviderError represents a mailbox or model provider error.
type ProviderError struct {
	Provider  string
	Code      ProviderErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error.
func NewProviderError(provider string, code ProviderErrorCode, message string, err error, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}
