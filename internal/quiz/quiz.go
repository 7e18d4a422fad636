// Package quiz turns source text into a multiple-choice quiz: prompt
// construction, model-output recovery and answer normalization.
package quiz

import (
	"context"
)

// ChoiceCount is the fixed number of alternatives per question.
const ChoiceCount = 5

// Quiz is a generated question set.
type Quiz struct {
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// Question is one normalized multiple-choice question. Choices always has
// ChoiceCount entries and AnswerIndex is within [0, ChoiceCount).
type Question struct {
	Text        string   `json:"text"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answer_index"`
}

// Generator produces a quiz of n questions from source text.
type Generator interface {
	Generate(ctx context.Context, source string, n int) (*Quiz, error)
}
