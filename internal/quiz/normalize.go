package quiz

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var (
	leadingMarker  = regexp.MustCompile(`^[*\s]+`)
	trailingTag    = regexp.MustCompile(`(?i)\s*\(correta\)$`)
	correctTag     = regexp.MustCompile(`(?i)\(correta\)|\[correta\]`)
	correctTagTrim = regexp.MustCompile(`(?i)\s*(\(correta\)|\[correta\])`)
)

// Normalize coerces one model-produced question into a Question. Models name
// the correct answer in many ways; they are tried in order: answer_index,
// a letter in answer/correct_letter, numeric correct, correct_choice text,
// options[].is_correct, then a leading '*' or a "(correta)" tag in a choice.
// Anything unresolved or out of range becomes 0.
func Normalize(raw map[string]any) Question {
	q := Question{Text: strings.TrimSpace(firstString(raw, "text", "question", "pergunta"))}

	answer, found := -1, false
	if choices, ok := raw["choices"].([]any); ok {
		q.Choices = stringsOf(choices)
	} else if options, ok := raw["options"].([]any); ok {
		q.Choices, answer, found = fromOptions(options)
	}

	if i, ok := integer(raw["answer_index"]); ok {
		answer, found = i, true
	}
	if !found {
		letter := strings.ToUpper(strings.TrimSpace(firstString(raw, "answer", "correct_letter")))
		if len(letter) == 1 && letter[0] >= 'A' && letter[0] <= 'E' {
			answer, found = int(letter[0]-'A'), true
		}
	}
	if !found {
		if f, ok := raw["correct"].(float64); ok {
			answer, found = int(f), true
		}
	}
	if !found {
		if want, ok := raw["correct_choice"].(string); ok && len(q.Choices) > 0 {
			for i, c := range q.Choices {
				if strings.EqualFold(c, strings.TrimSpace(want)) {
					answer, found = i, true
					break
				}
			}
		}
	}
	if !found && len(q.Choices) > 0 {
		answer, found = markedChoice(q.Choices)
	}

	if !found || answer < 0 || answer >= ChoiceCount {
		answer = 0
	}
	q.AnswerIndex = answer

	for len(q.Choices) < ChoiceCount {
		q.Choices = append(q.Choices, "")
	}
	q.Choices = q.Choices[:ChoiceCount]
	return q
}

// markedChoice finds a choice flagged with a leading '*' or a correta tag and
// strips the markers from every choice in place.
func markedChoice(choices []string) (int, bool) {
	for i, c := range choices {
		if strings.HasPrefix(c, "*") {
			for j := range choices {
				choices[j] = strings.TrimSpace(trailingTag.ReplaceAllString(leadingMarker.ReplaceAllString(choices[j], ""), ""))
			}
			return i, true
		}
	}
	for i, c := range choices {
		if correctTag.MatchString(c) {
			for j := range choices {
				choices[j] = strings.TrimSpace(correctTagTrim.ReplaceAllString(choices[j], ""))
			}
			return i, true
		}
	}
	return -1, false
}

// fromOptions reads the options[{text, is_correct}] shape.
func fromOptions(options []any) ([]string, int, bool) {
	choices := make([]string, 0, len(options))
	answer, found := -1, false
	for i, o := range options {
		switch v := o.(type) {
		case map[string]any:
			text, _ := v["text"].(string)
			choices = append(choices, strings.TrimSpace(text))
			if correct, _ := v["is_correct"].(bool); correct && !found {
				answer, found = i, true
			}
		default:
			choices = append(choices, strings.TrimSpace(toString(v)))
		}
	}
	return choices, answer, found
}

func stringsOf(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(toString(v))
	}
	return out
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// integer accepts JSON numbers with no fractional part.
func integer(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
