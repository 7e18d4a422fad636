// Package gemini adapts the Gemini API to the transcription and quiz
// generation roles.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/llm"
	"mediaquiz/internal/media"
	"mediaquiz/internal/quiz"
	"mediaquiz/internal/retry"
)

const (
	// MaxInlineSize is the maximum size for inline blob data (20MB)
	MaxInlineSize = 20 * 1024 * 1024
	// ModelName is the default Gemini model
	ModelName = "gemini-2.0-flash"
)

// TranscribePrompt asks for a verbatim transcript of the attached audio.
const TranscribePrompt = `Transcreva integralmente o áudio anexado em português do Brasil.
Responda apenas com o texto falado, sem comentários, marcações de tempo ou identificação de falantes.`

// contentGenerator is the subset of *genai.GenerativeModel used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Config selects the account and model.
type Config struct {
	APIKey string
	Model  string
}

// Client wraps the Gemini client
type Client struct {
	client      *genai.Client
	name        string
	transcriber contentGenerator
	quizzer     contentGenerator
	policy      retry.Policy
}

// NewClient creates a new Gemini client. Models are configured once here
// since *genai.GenerativeModel settings are shared by concurrent requests.
func NewClient(ctx context.Context, cfg Config, policy retry.Policy) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = ModelName
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	transcriber := client.GenerativeModel(cfg.Model)
	transcriber.SetTemperature(0)

	quizzer := client.GenerativeModel(cfg.Model)
	quizzer.ResponseMIMEType = "application/json"
	quizzer.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(quiz.SystemPrompt)}}
	quizzer.SetTemperature(quiz.Temperature)
	quizzer.SetTopP(0.95)
	quizzer.SetMaxOutputTokens(8192)

	log.Printf("INFO: Gemini client ready with model %s", cfg.Model)
	return &Client{
		client:      client,
		name:        cfg.Model,
		transcriber: transcriber,
		quizzer:     quizzer,
		policy:      policy,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Transcribe sends the audio inline and returns the spoken text.
func (c *Client) Transcribe(ctx context.Context, buf *media.Buffer) (string, error) {
	if !buf.Kind().IsAudio() {
		return "", apperr.New(apperr.KindUnsupported, apperr.ReasonTranscriptionFailed,
			"only audio can be transcribed, got "+string(buf.Kind()))
	}
	if buf.Len() > MaxInlineSize {
		return "", apperr.New(apperr.KindPayloadTooLarge, apperr.ReasonAudioTooLarge,
			fmt.Sprintf("audio of %d bytes exceeds the %d byte inline limit", buf.Len(), MaxInlineSize))
	}

	parts := []genai.Part{
		genai.Text(TranscribePrompt),
		genai.Blob{MIMEType: buf.MIMEType(), Data: buf.Bytes()},
	}
	text, err := generate(ctx, c, c.transcriber, parts, func(text string) (string, error) {
		return text, nil
	})
	if err != nil {
		log.Printf("ERROR: Gemini transcription of %d bytes (%s) failed: %v", buf.Len(), buf.MIMEType(), err)
		return "", llm.Failure(err, apperr.ReasonTranscriptionFailed, "transcription")
	}
	if text == "" {
		return "", apperr.New(apperr.KindPermanentUpstream, apperr.ReasonEmptyTranscript, "the transcription came back empty")
	}
	log.Printf("INFO: Transcribed %d bytes of %s into %d characters with %s", buf.Len(), buf.MIMEType(), len(text), c.name)
	return text, nil
}

// Generate produces a quiz of n questions from source.
func (c *Client) Generate(ctx context.Context, source string, n int) (*quiz.Quiz, error) {
	parts := []genai.Part{genai.Text(quiz.BuildPrompt(source, n))}
	q, err := generate(ctx, c, c.quizzer, parts, func(text string) (*quiz.Quiz, error) {
		q, err := quiz.Parse(text, n)
		if err != nil {
			log.Printf("WARN: Discarding unusable quiz output: %v", err)
			return nil, unusable(err.Error())
		}
		return q, nil
	})
	if err != nil {
		log.Printf("ERROR: Quiz generation with %s failed: %v", c.name, err)
		return nil, llm.Failure(err, apperr.ReasonQuizFailed, "quiz generation")
	}
	log.Printf("INFO: Generated %d questions with %s", len(q.Questions), c.name)
	return q, nil
}

// generate runs one prompt through the retry policy and hands the response
// text to accept, which may reject it as unusable.
func generate[T any](ctx context.Context, c *Client, model contentGenerator, parts []genai.Part, accept func(string) (T, error)) (T, error) {
	return retry.Call(ctx, c.policy, func(ctx context.Context) (T, error) {
		var zero T
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return zero, attempt(err)
		}
		return accept(responseText(resp))
	})
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}

// attempt exposes the HTTP status behind a Gemini error to the retry policy.
func attempt(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &retry.StatusError{
			Code: http.StatusUnprocessableEntity,
			Err:  apperr.Wrap(apperr.KindPermanentUpstream, apperr.ReasonUpstreamError, err, "the model blocked the request"),
		}
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &retry.StatusError{
			Code:       gerr.Code,
			RetryAfter: retry.ParseRetryAfter(gerr.Header.Get("Retry-After"), time.Now()),
			Err:        err,
		}
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return &retry.StatusError{Code: coded.HTTPCode(), Err: err}
	}
	return err
}

// unusable marks malformed model output as retryable.
func unusable(msg string) error {
	return &retry.StatusError{
		Code: http.StatusBadGateway,
		Err:  apperr.New(apperr.KindPermanentUpstream, apperr.ReasonQuizFailed, msg),
	}
}
