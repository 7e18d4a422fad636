package quiz

import (
	"encoding/json"
	"reflect"
	"testing"
)

func raw(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("fixture %s: %v", s, err)
	}
	return m
}

func TestNormalize_AnswerSources(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		answer  int
		choices []string
	}{
		{"answer_index", `{"text":"q","choices":["a","b","c","d","e"],"answer_index":3}`, 3, nil},
		{"letter answer", `{"text":"q","choices":["a","b","c","d","e"],"answer":"c"}`, 2, nil},
		{"correct_letter", `{"text":"q","choices":["a","b","c","d","e"],"correct_letter":" E "}`, 4, nil},
		{"numeric correct", `{"text":"q","choices":["a","b","c","d","e"],"correct":1}`, 1, nil},
		{"correct_choice text", `{"text":"q","choices":["Azul","Verde","Roxo","Preto","Branco"],"correct_choice":"roxo"}`, 2, nil},
		{
			"star marker stripped",
			`{"text":"q","choices":["a","*b (correta)","c","d","e"]}`,
			1, []string{"a", "b", "c", "d", "e"},
		},
		{
			"correta tag stripped",
			`{"text":"q","choices":["a","b","c [CORRETA]","d","e"]}`,
			2, []string{"a", "b", "c", "d", "e"},
		},
		{
			"options with is_correct",
			`{"text":"q","options":[{"text":"a","is_correct":false},{"text":"b","is_correct":true},{"text":"c"},{"text":"d"},{"text":"e"}]}`,
			1, []string{"a", "b", "c", "d", "e"},
		},
		{"answer_index wins over letter", `{"text":"q","choices":["a","b","c","d","e"],"answer_index":4,"answer":"A"}`, 4, nil},
		{"fractional answer_index ignored", `{"text":"q","choices":["a","b","c","d","e"],"answer_index":1.5,"answer":"D"}`, 3, nil},
		{"out of range clamps to zero", `{"text":"q","choices":["a","b","c","d","e"],"answer_index":7}`, 0, nil},
		{"negative clamps to zero", `{"text":"q","choices":["a","b","c","d","e"],"correct":-1}`, 0, nil},
		{"nothing found", `{"text":"q","choices":["a","b","c","d","e"]}`, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Normalize(raw(t, tt.in))
			if q.AnswerIndex != tt.answer {
				t.Errorf("AnswerIndex = %d, want %d", q.AnswerIndex, tt.answer)
			}
			if tt.choices != nil && !reflect.DeepEqual(q.Choices, tt.choices) {
				t.Errorf("Choices = %q, want %q", q.Choices, tt.choices)
			}
		})
	}
}

func TestNormalize_ChoiceCount(t *testing.T) {
	short := Normalize(raw(t, `{"text":"q","choices":["a","b"]}`))
	if want := []string{"a", "b", "", "", ""}; !reflect.DeepEqual(short.Choices, want) {
		t.Errorf("padded = %q", short.Choices)
	}

	long := Normalize(raw(t, `{"text":"q","choices":["a","b","c","d","e","f","g"],"answer_index":6}`))
	if len(long.Choices) != ChoiceCount || long.AnswerIndex != 0 {
		t.Errorf("truncated = %q answer %d", long.Choices, long.AnswerIndex)
	}

	none := Normalize(raw(t, `{"pergunta":"  Qual?  "}`))
	if none.Text != "Qual?" || len(none.Choices) != ChoiceCount {
		t.Errorf("no choices = %+v", none)
	}
}
