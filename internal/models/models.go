package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"mediaquiz/internal/quiz"
)

// QuestionCount is the optional "num" field. Clients send it either as a
// JSON number or as a numeric string; absent, null and "" mean 0.
type QuestionCount int

func (n *QuestionCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	v, err := ParseQuestionCount(s)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// ParseQuestionCount reads a form or JSON value of num.
func ParseQuestionCount(s string) (QuestionCount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("num must be an integer, got %q", s)
	}
	return QuestionCount(v), nil
}

// QuizFromURLRequest is the body of POST /quiz-from-url.
type QuizFromURLRequest struct {
	URL string        `json:"url"`
	Num QuestionCount `json:"num"`
}

// QuizResponse wraps a generated quiz.
type QuizResponse struct {
	Quiz   *quiz.Quiz  `json:"quiz"`
	Source *SourceInfo `json:"source,omitempty"`
}

// SourceInfo describes what the quiz was generated from.
type SourceInfo struct {
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	Bytes     int    `json:"bytes"`
	TextChars int    `json:"text_chars"`
	Truncated bool   `json:"truncated,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK     bool    `json:"ok"`
	TS     int64   `json:"ts"`
	Uptime float64 `json:"uptime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}
