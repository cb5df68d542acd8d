// Package classify turns chat-model completions into taxonomy categories
// and runs message batches through a bounded worker group.
package classify

import (
	"regexp"
	"strings"

	"triage_server/core/domain"
)

var (
	punctuation   = regexp.MustCompile(`[.,!?;:\n\r\t]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// ResponseParser extracts a category label from free-form model output.
// Models are told to answer with a single word but routinely wrap it in
// punctuation or extra prose, so the parser tries progressively looser
// matching before giving up.
type ResponseParser struct{}

// NewResponseParser creates a response parser.
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// Parse resolves text to a category. matched reports whether a label was
// actually recognized; on no match the fallback category is returned with
// matched=false so callers can count unparsed responses.
func (p *ResponseParser) Parse(text string) (category domain.Category, matched bool) {
	cleaned := cleanResponse(text)
	if cleaned == "" {
		return domain.CategoryGeneral, false
	}

	// Exact match first.
	for _, cat := range domain.Categories() {
		if strings.EqualFold(cleaned, string(cat)) {
			return cat, true
		}
	}

	// Substring match, for answers like "The category is Important".
	lowered := strings.ToLower(cleaned)
	for _, cat := range domain.Categories() {
		if strings.Contains(lowered, strings.ToLower(string(cat))) {
			return cat, true
		}
	}

	// Token match as a last pass.
	words := strings.Fields(lowered)
	for _, cat := range domain.Categories() {
		label := strings.ToLower(string(cat))
		for _, w := range words {
			if w == label {
				return cat, true
			}
		}
	}

	return domain.CategoryGeneral, false
}

// cleanResponse strips punctuation and control characters and collapses
// whitespace runs into single spaces.
func cleanResponse(text string) string {
	s := punctuation.ReplaceAllString(text, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
