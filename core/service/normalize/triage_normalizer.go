// Package normalize converts provider payload trees into flat domain messages.
package normalize

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const (
	defaultSender  = "Unknown Sender"
	defaultSubject = "(No Subject)"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalizer flattens raw provider messages into domain.Message values.
// It is stateless and safe for concurrent use.
type Normalizer struct{}

// NewNormalizer creates a message normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize converts a single raw message. It returns ok=false when the
// message carries no usable identifier and must be skipped.
func (n *Normalizer) Normalize(raw *out.RawMessage) (domain.Message, bool) {
	if raw == nil || raw.ID == "" {
		return domain.Message{}, false
	}

	msg := domain.Message{
		ID:      raw.ID,
		Sender:  defaultSender,
		Subject: defaultSubject,
		Snippet: raw.Snippet,
		SentAt:  time.Now().UTC(),
	}

	if raw.Payload != nil {
		if v := headerValue(raw.Payload.Headers, "From"); v != "" {
			msg.Sender = v
		}
		if v := headerValue(raw.Payload.Headers, "Subject"); v != "" {
			msg.Subject = v
		}
		if v := headerValue(raw.Payload.Headers, "Date"); v != "" {
			if t, err := mail.ParseDate(v); err == nil {
				msg.SentAt = t.UTC()
			}
		}
		msg.Body = extractBody(raw.Payload)
	}

	if msg.Body == "" {
		msg.Body = raw.Snippet
	}
	return msg, true
}

// NormalizeAll converts a slice of raw messages, silently dropping the
// ones Normalize rejects. Input order is preserved.
func (n *Normalizer) NormalizeAll(raws []out.RawMessage) []domain.Message {
	msgs := make([]domain.Message, 0, len(raws))
	for i := range raws {
		if msg, ok := n.Normalize(&raws[i]); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// headerValue returns the first header matching name, case-insensitively.
func headerValue(headers []out.RawHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return strings.TrimSpace(h.Value)
		}
	}
	return ""
}

// extractBody picks the best textual body from a payload tree.
// Priority: inline part data, then the first text/plain part, then the
// first text/html part stripped down to text.
func extractBody(payload *out.RawPart) string {
	if payload.Data != "" {
		return decodePartData(payload.Data)
	}
	if part := findPart(payload, "text/plain"); part != nil {
		return decodePartData(part.Data)
	}
	if part := findPart(payload, "text/html"); part != nil {
		return stripHTML(decodePartData(part.Data))
	}
	return ""
}

// findPart walks the part tree depth-first and returns the first part of
// the wanted MIME type that carries data.
func findPart(part *out.RawPart, mimeType string) *out.RawPart {
	if part == nil {
		return nil
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Data != "" {
		return part
	}
	for _, child := range part.Parts {
		if found := findPart(child, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// decodePartData decodes base64url part content. Undecodable content is
// returned as-is rather than dropped.
func decodePartData(data string) string {
	if data == "" {
		return ""
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return data
}

// stripHTML reduces an HTML body to its visible text with collapsed
// whitespace. Malformed markup falls back to the raw input.
func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script, style").Remove()
	text := doc.Text()
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
