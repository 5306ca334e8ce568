package collab

import (
	"reflect"
	"testing"
)

func TestQuickSentiment(t *testing.T) {
	q := NewQuickAnalyzer()

	cases := []struct {
		name     string
		text     string
		category string
		score    float64
	}{
		{"positive", "The service was great, thank you so much", "positive", 0.3},
		{"negative", "This is terrible and I am very frustrated", "negative", -0.3},
		{"neutral", "I would like to check my order status", "neutral", 0},
		{"balanced", "The staff was great but the wait was terrible", "neutral", 0},
		{"empty", "", "neutral", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := q.QuickSentiment(tc.text)
			if s.Category != tc.category {
				t.Errorf("category = %s, want %s", s.Category, tc.category)
			}
			if s.Score != tc.score {
				t.Errorf("score = %v, want %v", s.Score, tc.score)
			}
			if s.Confidence != 0.6 {
				t.Errorf("confidence = %v, want 0.6", s.Confidence)
			}
		})
	}
}

func TestQuickSentiment_CaseInsensitive(t *testing.T) {
	q := NewQuickAnalyzer()
	if s := q.QuickSentiment("GREAT SERVICE, THANK YOU"); s.Category != "positive" {
		t.Errorf("expected positive for upper-case input, got %s", s.Category)
	}
}

func TestQuickKeywords(t *testing.T) {
	q := NewQuickAnalyzer()

	// "order" appears three times, "delivery" twice, the rest once. Short
	// words like "the" and "my" never qualify.
	text := "The order is late. My order number? Order tracking says delivery failed, delivery pending."
	got := q.QuickKeywords(text)

	if len(got) != 5 {
		t.Fatalf("expected 5 keywords, got %d: %v", len(got), got)
	}
	if got[0] != "order" {
		t.Errorf("most frequent keyword = %s, want order", got[0])
	}
	if got[1] != "delivery" {
		t.Errorf("second keyword = %s, want delivery", got[1])
	}
	// The singletons tie, so they come back alphabetically.
	want := []string{"order", "delivery", "failed", "late", "number"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("keywords = %v, want %v", got, want)
	}
}

func TestQuickKeywords_StripsPunctuation(t *testing.T) {
	q := NewQuickAnalyzer()
	got := q.QuickKeywords(`"refund!" refund? refund.`)
	if !reflect.DeepEqual(got, []string{"refund"}) {
		t.Errorf("keywords = %v, want [refund]", got)
	}
}

func TestQuickKeywords_NoQualifyingWords(t *testing.T) {
	q := NewQuickAnalyzer()
	if got := q.QuickKeywords("it is a b c of on"); got != nil {
		t.Errorf("expected nil for short-word input, got %v", got)
	}
	if got := q.QuickKeywords(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
