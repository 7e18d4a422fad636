package quiz

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/llm"
	"mediaquiz/internal/retry"
)

func noWait(tries int) retry.Policy {
	return retry.Policy{
		Tries:  tries,
		Sleep:  func(context.Context, time.Duration) error { return nil },
		Jitter: func() float64 { return 0 },
	}
}

// reply is one scripted answer of the fake chat endpoint: an error status,
// or 200 with content as the assistant message.
type reply struct {
	status  int
	content string
}

func fakeChat(t *testing.T, replies ...reply) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model          string  `json:"model"`
			Temperature    float32 `json:"temperature"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" || req.ResponseFormat.Type != "json_object" {
			t.Errorf("model=%q response_format=%q", req.Model, req.ResponseFormat.Type)
		}
		if len(req.Messages) != 2 || req.Messages[0].Content != SystemPrompt ||
			!strings.Contains(req.Messages[1].Content, "Texto original:") {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		rep := replies[len(replies)-1]
		if n <= len(replies) {
			rep = replies[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		if rep.status != 0 && rep.status != http.StatusOK {
			w.WriteHeader(rep.status)
			io.WriteString(w, `{"error":{"message":"scripted failure","type":"server_error"}}`)
			return
		}
		content, _ := json.Marshal(rep.content)
		io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":`+
			string(content)+`},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newGenerator(srv *httptest.Server, tries int) *OpenAI {
	client := llm.NewOpenAI(llm.OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	return NewOpenAI(client, "gpt-4o-mini", noWait(tries))
}

const twoQuestions = `{"questions":[
 {"text":"Onde ocorre a fotossíntese?","choices":["Mitocôndria","Cloroplasto","Núcleo","Ribossomo","Vacúolo"],"answer_index":1},
 {"text":"Qual gás é liberado?","choices":["CO2","N2","*O2","H2","He"]}
]}`

func TestOpenAI_Generate(t *testing.T) {
	srv, calls := fakeChat(t, reply{content: twoQuestions})

	q, err := newGenerator(srv, 3).Generate(context.Background(), "A fotossíntese ocorre nos cloroplastos.", 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(q.Questions) != 2 || calls.Load() != 1 {
		t.Fatalf("questions=%d calls=%d", len(q.Questions), calls.Load())
	}
	if second := q.Questions[1]; second.AnswerIndex != 2 || second.Choices[2] != "O2" {
		t.Errorf("second question not normalized: %+v", second)
	}
}

func TestOpenAI_RetriesUnusableOutput(t *testing.T) {
	srv, calls := fakeChat(t, reply{content: "não sei"}, reply{status: 503}, reply{content: twoQuestions})

	q, err := newGenerator(srv, 4).Generate(context.Background(), "texto", 2)
	if err != nil || len(q.Questions) != 2 {
		t.Fatalf("Generate = %+v, %v", q, err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestOpenAI_Failures(t *testing.T) {
	tests := []struct {
		name      string
		replies   []reply
		tries     int
		kind      apperr.Kind
		reason    string
		wantCalls int32
	}{
		{"rate limit exhausted", []reply{{status: 429}}, 3, apperr.KindTransientUpstream, apperr.ReasonUpstreamRateLimited, 3},
		{"bad request", []reply{{status: 400}}, 3, apperr.KindPermanentUpstream, apperr.ReasonQuizFailed, 1},
		{"never parses", []reply{{content: `{"questions":[]}`}}, 2, apperr.KindPermanentUpstream, apperr.ReasonQuizFailed, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := fakeChat(t, tt.replies...)
			_, err := newGenerator(srv, tt.tries).Generate(context.Background(), "texto", 3)
			if apperr.KindOf(err) != tt.kind || apperr.ReasonOf(err) != tt.reason {
				t.Errorf("err = %v (%s/%s)", err, apperr.KindOf(err), apperr.ReasonOf(err))
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}
