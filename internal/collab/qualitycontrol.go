package collab

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"parley/internal/task"
)

// QualityControl is the collaborator behind the "quality_control" category.
// It scores a transcript for signs of transcription trouble and reports the
// issues it found alongside the score.
type QualityControl struct{}

func NewQualityControl() *QualityControl { return &QualityControl{} }

// Patterns that usually indicate transcription uncertainty.
var uncertaintyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[.*?\]`),
	regexp.MustCompile(`\(.*?\)`),
	regexp.MustCompile(`\.{3,}`),
}

func (q *QualityControl) Validate(payload json.RawMessage) bool {
	return hasFields(payload, "transcript")
}

func (q *QualityControl) Process(_ context.Context, t task.Task) (task.Result, error) {
	transcript := t.PayloadField("transcript")

	var issues []string
	score := 0.8

	if len(strings.TrimSpace(transcript)) < 10 {
		issues = append(issues, "transcript too short")
		score -= 0.3
	}

	for _, pat := range uncertaintyPatterns {
		if pat.MatchString(transcript) {
			issues = append(issues, "potential transcription uncertainty: "+pat.String())
			score -= 0.1
		}
	}

	words := strings.Fields(transcript)
	if len(words) > 0 {
		var total int
		for _, w := range words {
			total += len(w)
		}
		if float64(total)/float64(len(words)) < 2 {
			issues = append(issues, "unusually short words detected")
			score -= 0.2
		}
	}

	if score < 0 {
		score = 0
	}

	return task.Result{
		Data: map[string]any{
			"issues":          issues,
			"word_count":      len(words),
			"character_count": len(transcript),
		},
		Confidence: floatPtr(score),
	}, nil
}
