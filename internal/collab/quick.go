package collab

import (
	"sort"
	"strings"
)

// QuickAnalyzer is a dependency-free SentimentScorer and KeywordExtractor.
// It trades fidelity for speed so the realtime path can annotate fragments
// without waiting on a model call.
type QuickAnalyzer struct{}

func NewQuickAnalyzer() *QuickAnalyzer { return &QuickAnalyzer{} }

var (
	positiveWords = []string{"good", "great", "excellent", "happy", "satisfied", "thank", "please"}
	negativeWords = []string{"bad", "terrible", "awful", "angry", "frustrated", "disappointed", "problem"}
)

// QuickSentiment scores text by counting positive and negative marker words.
func (q *QuickAnalyzer) QuickSentiment(text string) Sentiment {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}

	s := Sentiment{Category: "neutral", Confidence: 0.6}
	switch {
	case pos > neg:
		s.Score = 0.3
		s.Category = "positive"
	case neg > pos:
		s.Score = -0.3
		s.Category = "negative"
	}
	return s
}

// QuickKeywords returns the five most frequent words longer than three
// characters, most frequent first. Ties break alphabetically so output is
// deterministic.
func (q *QuickAnalyzer) QuickKeywords(text string) []string {
	freq := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'")
		if len(w) > 3 {
			freq[w]++
		}
	}
	if len(freq) == 0 {
		return nil
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > 5 {
		words = words[:5]
	}
	return words
}
