package quiz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	objectPattern    = regexp.MustCompile(`(?s)\{.*"questions".*\}`)
	codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	questionsPattern = regexp.MustCompile(`(?s)"questions"\s*:\s*\[(.*)`)
)

// Parse decodes model output into a Quiz of at most n questions. The output
// may carry prose or code fences around the JSON and may be cut short; what
// can be recovered is used.
func Parse(content string, n int) (*Quiz, error) {
	text := extractJSON(content)
	if text == "" {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var payload struct {
		Title     string           `json:"title"`
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse quiz JSON: %w", err)
	}

	q := &Quiz{Title: strings.TrimSpace(payload.Title)}
	for _, raw := range payload.Questions {
		if raw == nil {
			continue
		}
		question := Normalize(raw)
		if question.Text == "" {
			continue
		}
		q.Questions = append(q.Questions, question)
	}
	if len(q.Questions) == 0 {
		return nil, fmt.Errorf("quiz JSON contained no usable questions")
	}
	if n > 0 && len(q.Questions) > n {
		q.Questions = q.Questions[:n]
	}
	return q, nil
}

// extractJSON pulls a JSON object out of text that may contain markdown or
// other formatting, and tries to close a truncated one.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if json.Valid([]byte(text)) {
		return text
	}

	if m := codeBlockPattern.FindStringSubmatch(text); len(m) > 1 && json.Valid([]byte(m[1])) {
		return m[1]
	}
	if m := objectPattern.FindString(text); m != "" && json.Valid([]byte(m)) {
		return m
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	partial := text[start:]
	if fixed := balance(partial); json.Valid([]byte(fixed)) {
		return fixed
	}

	// Keep whole questions only: cut after the last complete object in the array.
	if m := questionsPattern.FindStringSubmatch(partial); len(m) > 1 {
		body := m[1]
		if last := lastTopLevelClose(body); last >= 0 {
			fixed := `{"questions":[` + body[:last+1] + "]}"
			if json.Valid([]byte(fixed)) {
				return fixed
			}
		}
	}
	return ""
}

// balance appends the closers missing from a truncated JSON document.
// An unterminated string is closed first.
func balance(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case (c == '}' || c == ']') && len(stack) > 0:
			stack = stack[:len(stack)-1]
		}
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(s, " \t\r\n,"))
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// lastTopLevelClose returns the index of the last '}' that closes an object
// directly inside the array body, or -1.
func lastTopLevelClose(body string) int {
	depth, last := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if c == '}' && depth == 0 {
				last = i
			}
			if depth < 0 {
				return last
			}
		}
	}
	return last
}
