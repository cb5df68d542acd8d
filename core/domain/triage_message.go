// Package domain contains the core triage entities.
package domain

import (
	"strings"
	"time"
)

// =============================================================================
// Category Taxonomy
// =============================================================================

// Category is one of the fixed classification labels.
type Category string

const (
	CategoryImportant   Category = "Important"
	CategoryPromotional Category = "Promotional"
	CategorySocial      Category = "Social"
	CategoryMarketing   Category = "Marketing"
	CategorySpam        Category = "Spam"
	CategoryGeneral     Category = "General"
)

// categories holds the taxonomy in display order. CategoryGeneral doubles
// as the fallback when no confident label can be assigned.
var categories = []Category{
	CategoryImportant,
	CategoryPromotional,
	CategorySocial,
	CategoryMarketing,
	CategorySpam,
	CategoryGeneral,
}

// Categories returns the taxonomy in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory matches s against the taxonomy case-insensitively and
// returns the canonical label.
func ParseCategory(s string) (Category, bool) {
	for _, cat := range categories {
		if strings.EqualFold(s, string(cat)) {
			return cat, true
		}
	}
	return CategoryGeneral, false
}

// IsValidCategory reports whether s names a taxonomy label (case-insensitive).
func IsValidCategory(s string) bool {
	_, ok := ParseCategory(s)
	return ok
}

// =============================================================================
// Messages
// =============================================================================

// Message is a normalized mail message. It is immutable once produced by
// the normalizer; Body falls back to Snippet when no content is extractable.
type Message struct {
	ID      string    `json:"id"`
	Sender  string    `json:"sender"`
	Subject string    `json:"subject"`
	Snippet string    `json:"snippet"`
	SentAt  time.Time `json:"date"`
	Body    string    `json:"body,omitempty"`
}

// ClassifiedMessage is a Message with exactly one assigned Category.
type ClassifiedMessage struct {
	Message
	Category Category `json:"category"`
}

// BatchResult is the outcome of classifying one fetched batch. Classified
// preserves the input message order. PartialFailures counts messages whose
// provider call failed and were recorded with the fallback category.
type BatchResult struct {
	Classified      []ClassifiedMessage `json:"classified_emails"`
	PartialFailures int                 `json:"partial_failures"`
}

// CategoryCounts returns how many messages landed in each category,
// keyed in display order (categories with zero hits are omitted).
func (r *BatchResult) CategoryCounts() map[Category]int {
	counts := make(map[Category]int)
	for _, cm := range r.Classified {
		counts[cm.Category]++
	}
	return counts
}
