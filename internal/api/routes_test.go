package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"mediaquiz/internal/api/handlers"
	"mediaquiz/internal/apperr"
	"mediaquiz/internal/content"
	"mediaquiz/internal/media"
	"mediaquiz/internal/models"
	"mediaquiz/internal/notify"
	"mediaquiz/internal/quiz"
	"mediaquiz/internal/service"
)

// fakeQuiz records its inputs and returns err, or a one-question quiz.
type fakeQuiz struct {
	err      error
	url      string
	upload   []byte
	filename string
	n        int
}

func (f *fakeQuiz) result() (*service.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.Result{
		Quiz: &quiz.Quiz{Questions: []quiz.Question{{
			Text:        "Onde ocorre a fotossíntese?",
			Choices:     []string{"a", "b", "c", "d", "e"},
			AnswerIndex: 2,
		}}},
		Kind:  media.KindMP3,
		Path:  content.PathTranscribe,
		Bytes: 1234,
	}, nil
}

func (f *fakeQuiz) FromURL(_ context.Context, rawURL string, n int) (*service.Result, error) {
	f.url, f.n = rawURL, n
	return f.result()
}

func (f *fakeQuiz) FromUpload(_ context.Context, data []byte, filename string, n int) (*service.Result, error) {
	f.upload, f.filename, f.n = data, filename, n
	return f.result()
}

// recorder is a Notifier that keeps events.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func newRouter(svc handlers.QuizService, n notify.Notifier, maxUpload int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, handlers.NewHandler(svc, n, maxUpload), "https://app.example.com/")
	return router
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	router := newRouter(&fakeQuiz{}, nil, 0)
	for _, path := range []string{"/", "/health"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var body models.HealthResponse
		if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &body) != nil || !body.OK || body.TS == 0 {
			t.Errorf("%s: %d %s", path, w.Code, w.Body.String())
		}
	}
}

func TestQuizFromURL(t *testing.T) {
	svc := &fakeQuiz{}
	router := newRouter(svc, nil, 0)

	w := postJSON(router, "/quiz-from-url", `{"url":"https://cdn.example.com/aula.mp3","num":"3"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if svc.url != "https://cdn.example.com/aula.mp3" || svc.n != 3 {
		t.Errorf("service got url=%q n=%d", svc.url, svc.n)
	}

	var body models.QuizResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Quiz.Questions) != 1 || body.Quiz.Questions[0].AnswerIndex != 2 || body.Source.Kind != "mp3" {
		t.Errorf("body = %s", w.Body.String())
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestQuizFromURL_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		status   int
		reason   string
		notified bool
	}{
		{
			name:   "malformed body",
			body:   `{"url":`,
			status: http.StatusBadRequest,
			reason: apperr.ReasonInvalidBody,
		},
		{
			name:   "bad num",
			body:   `{"url":"https://x.test/a.mp3","num":"dez"}`,
			status: http.StatusBadRequest,
			reason: apperr.ReasonInvalidBody,
		},
		{
			name:   "html instead of media",
			body:   `{"url":"https://x.test/a.mp3"}`,
			err:    apperr.New(apperr.KindUnsupported, "DIRECT_RETURNED_HTML_NOT_MEDIA", "html"),
			status: http.StatusUnsupportedMediaType,
			reason: "DIRECT_RETURNED_HTML_NOT_MEDIA",
		},
		{
			name:   "too large",
			body:   `{"url":"https://x.test/a.mp3"}`,
			err:    apperr.New(apperr.KindPayloadTooLarge, apperr.ReasonPayloadTooLarge, "big"),
			status: http.StatusRequestEntityTooLarge,
			reason: apperr.ReasonPayloadTooLarge,
		},
		{
			name:   "fallback unconfigured",
			body:   `{"url":"https://youtu.be/dQw4w9WgXcQ"}`,
			err:    apperr.New(apperr.KindConfiguration, apperr.ReasonFallbackUnconfigured, "unset"),
			status: http.StatusBadRequest,
			reason: apperr.ReasonFallbackUnconfigured,
		},
		{
			name:   "provider rate limited",
			body:   `{"url":"https://x.test/a.mp3"}`,
			err:    apperr.New(apperr.KindTransientUpstream, apperr.ReasonUpstreamRateLimited, "slow down").WithStatus(429),
			status: http.StatusTooManyRequests,
			reason: apperr.ReasonUpstreamRateLimited,
		},
		{
			name:     "network failure",
			body:     `{"url":"https://x.test/a.mp3"}`,
			err:      apperr.New(apperr.KindTransientUpstream, apperr.ReasonNetworkError, "network failure"),
			status:   http.StatusInternalServerError,
			reason:   apperr.ReasonNetworkError,
			notified: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			router := newRouter(&fakeQuiz{err: tt.err}, rec, 0)

			w := postJSON(router, "/quiz-from-url", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if body := decodeError(t, w); body.Error != tt.reason || body.Message == "" {
				t.Errorf("body = %+v", body)
			}
			if got := len(rec.events) > 0; got != tt.notified {
				t.Errorf("notified = %v, want %v", got, tt.notified)
			}
			if tt.notified && rec.events[0].Source != "https://x.test/a.mp3" {
				t.Errorf("event = %+v", rec.events[0])
			}
		})
	}
}

func TestQuizFromUpload(t *testing.T) {
	svc := &fakeQuiz{}
	router := newRouter(svc, nil, 1<<20)

	data := []byte("ID3\x04\x00\x00\x00\x00\x00\x00 frames")
	body, ct := multipartBody(t, "aula.mp3", data, map[string]string{"num": "4"})
	req := httptest.NewRequest(http.MethodPost, "/quiz-from-upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if !bytes.Equal(svc.upload, data) || svc.filename != "aula.mp3" || svc.n != 4 {
		t.Errorf("service got %d bytes, filename %q, n=%d", len(svc.upload), svc.filename, svc.n)
	}
}

func TestQuizFromUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		fields   map[string]string
		status   int
		reason   string
	}{
		{"no file", "", nil, map[string]string{"num": "3"}, http.StatusBadRequest, apperr.ReasonMissingFile},
		{"bad num", "a.mp3", []byte("ID3 data"), map[string]string{"num": "x"}, http.StatusBadRequest, apperr.ReasonInvalidQuestions},
		{"over the limit", "a.mp3", bytes.Repeat([]byte{0xFF}, 3<<20), nil, http.StatusRequestEntityTooLarge, apperr.ReasonPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeQuiz{}
			router := newRouter(svc, nil, 1024)

			body, ct := multipartBody(t, tt.filename, tt.data, tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/quiz-from-upload", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if body := decodeError(t, w); body.Error != tt.reason {
				t.Errorf("reason = %s, want %s", body.Error, tt.reason)
			}
			if svc.upload != nil {
				t.Error("service called for a rejected upload")
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	router := newRouter(&fakeQuiz{}, nil, 0)

	req := httptest.NewRequest(http.MethodOptions, "/quiz-from-url", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow origin = %q", got)
	}

	const id = "0b6f3c2e-5d8a-4c1e-9f7b-2a1d3e4f5a6b"
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != id {
		t.Errorf("request id = %q, want the client's", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got == "<script>" || got == "" {
		t.Errorf("malformed request id kept: %q", got)
	}
}
