package domain

import (
	"testing"
	"time"
)

func TestCategoriesOrder(t *testing.T) {
	want := []Category{
		CategoryImportant,
		CategoryPromotional,
		CategorySocial,
		CategoryMarketing,
		CategorySpam,
		CategoryGeneral,
	}

	got := Categories()
	if len(got) != len(want) {
		t.Fatalf("expected %d categories, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	got := Categories()
	got[0] = "mutated"

	if Categories()[0] != CategoryImportant {
		t.Error("Categories() must not expose internal state")
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Category
		wantOK bool
	}{
		{name: "exact", input: "Important", want: CategoryImportant, wantOK: true},
		{name: "lowercase", input: "spam", want: CategorySpam, wantOK: true},
		{name: "uppercase", input: "MARKETING", want: CategoryMarketing, wantOK: true},
		{name: "mixed case", input: "pRoMoTiOnAl", want: CategoryPromotional, wantOK: true},
		{name: "unknown", input: "banana", want: CategoryGeneral, wantOK: false},
		{name: "empty", input: "", want: CategoryGeneral, wantOK: false},
		{name: "whitespace not trimmed", input: " Important", want: CategoryGeneral, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCategory(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseCategory(%q) = (%s, %v), want (%s, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCategoryCounts(t *testing.T) {
	msg := func(id string) Message {
		return Message{ID: id, Sender: "a@b.com", Subject: "s", SentAt: time.Now()}
	}
	result := &BatchResult{
		Classified: []ClassifiedMessage{
			{Message: msg("1"), Category: CategoryImportant},
			{Message: msg("2"), Category: CategorySpam},
			{Message: msg("3"), Category: CategoryImportant},
		},
	}

	counts := result.CategoryCounts()
	if counts[CategoryImportant] != 2 {
		t.Errorf("expected 2 Important, got %d", counts[CategoryImportant])
	}
	if counts[CategorySpam] != 1 {
		t.Errorf("expected 1 Spam, got %d", counts[CategorySpam])
	}
	if _, ok := counts[CategoryGeneral]; ok {
		t.Error("zero-hit categories should be omitted")
	}
}
