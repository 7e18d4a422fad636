// Package transcribe turns audio buffers into text through a remote
// speech-to-text API.
package transcribe

import (
	"bytes"
	"context"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/llm"
	"mediaquiz/internal/media"
	"mediaquiz/internal/retry"
)

// Transcriber converts an audio buffer to text.
type Transcriber interface {
	Transcribe(ctx context.Context, buf *media.Buffer) (string, error)
}

// OpenAI transcribes with the audio transcription endpoint.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
	policy   retry.Policy
}

func NewOpenAI(client *openai.Client, model, language string, policy retry.Policy) *OpenAI {
	return &OpenAI{client: client, model: model, language: language, policy: policy}
}

func (t *OpenAI) Transcribe(ctx context.Context, buf *media.Buffer) (string, error) {
	if !buf.Kind().IsAudio() {
		return "", apperr.New(apperr.KindUnsupported, apperr.ReasonTranscriptionFailed,
			"only audio can be transcribed, got "+string(buf.Kind()))
	}

	resp, err := retry.Call(ctx, t.policy, func(ctx context.Context) (openai.AudioResponse, error) {
		// The reader is consumed by each attempt, so it is rebuilt every time.
		return llm.Call(ctx, func(ctx context.Context) (openai.AudioResponse, error) {
			return t.client.CreateTranscription(ctx, openai.AudioRequest{
				Model:    t.model,
				FilePath: buf.Filename(),
				Reader:   bytes.NewReader(buf.Bytes()),
				Language: t.language,
				Format:   openai.AudioResponseFormatJSON,
			})
		})
	})
	if err != nil {
		log.Printf("ERROR: Transcription of %d bytes (%s) failed: %v", buf.Len(), buf.MIMEType(), err)
		return "", llm.Failure(err, apperr.ReasonTranscriptionFailed, "transcription")
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", apperr.New(apperr.KindPermanentUpstream, apperr.ReasonEmptyTranscript, "the transcription came back empty")
	}
	log.Printf("INFO: Transcribed %d bytes of %s into %d characters", buf.Len(), buf.MIMEType(), len(text))
	return text, nil
}
