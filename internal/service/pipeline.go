// Package service runs one quiz request end to end: resolve the source,
// route the buffer, obtain its text and generate the quiz.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/content"
	"mediaquiz/internal/media"
	"mediaquiz/internal/quiz"
	"mediaquiz/internal/resolve"
	"mediaquiz/internal/transcribe"
)

// Extractor pulls flattened text out of a document buffer.
type Extractor interface {
	Text(ctx context.Context, buf *media.Buffer) (string, error)
}

// Pipeline wires the collaborators of one request.
type Pipeline struct {
	Resolver    resolve.Resolver
	Transcriber transcribe.Transcriber
	Extractor   Extractor
	Generator   quiz.Generator

	DefaultQuestions int
	MaxQuestions     int
	// MaxSourceChars caps the text sent to the generator; 0 disables it.
	MaxSourceChars int
}

// Result is a generated quiz with a summary of how it was produced.
type Result struct {
	Quiz      *quiz.Quiz
	Kind      media.Kind
	Path      content.Path
	Bytes     int
	TextChars int
	Truncated bool
}

// QuestionCount applies the default to n and rejects values out of range.
func (p *Pipeline) QuestionCount(n int) (int, error) {
	switch {
	case n == 0:
		return p.DefaultQuestions, nil
	case n < 0 || (p.MaxQuestions > 0 && n > p.MaxQuestions):
		return 0, apperr.Validation(apperr.ReasonInvalidQuestions,
			fmt.Sprintf("num must be between 1 and %d", p.MaxQuestions)).
			WithDetails(map[string]any{"num": n, "max": p.MaxQuestions})
	}
	return n, nil
}

// FromURL generates a quiz from the media or document at rawURL.
func (p *Pipeline) FromURL(ctx context.Context, rawURL string, n int) (*Result, error) {
	return p.Run(ctx, resolve.Request{URL: rawURL}, n)
}

// FromUpload generates a quiz from an uploaded file.
func (p *Pipeline) FromUpload(ctx context.Context, data []byte, filename string, n int) (*Result, error) {
	if data == nil {
		data = []byte{}
	}
	return p.Run(ctx, resolve.Request{Upload: data, Filename: filename}, n)
}

// Run validates req and n before any network activity, then resolves,
// routes and generates.
func (p *Pipeline) Run(ctx context.Context, req resolve.Request, n int) (*Result, error) {
	count, err := p.QuestionCount(n)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	buf, err := p.Resolver.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Resolved %d bytes of %s from %s", buf.Len(), buf.Kind(), buf.Source())

	hint := req.URL
	if req.Upload != nil {
		hint = req.Filename
	}
	decision := content.Route(buf, hint)

	text, err := p.text(ctx, decision)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Kind:      buf.Kind(),
		Path:      decision.Path,
		Bytes:     buf.Len(),
		TextChars: len([]rune(text)),
	}
	if limited := quiz.Truncate(text, p.MaxSourceChars); len(limited) < len(text) {
		log.Printf("WARN: Source text of %d characters truncated to %d", res.TextChars, p.MaxSourceChars)
		text, res.Truncated = limited, true
	}

	res.Quiz, err = p.Generator.Generate(ctx, text, count)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Quiz of %d questions ready via %s in %v", len(res.Quiz.Questions), decision.Path, time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (p *Pipeline) text(ctx context.Context, d content.Decision) (string, error) {
	var (
		text string
		err  error
	)
	switch d.Path {
	case content.PathExtractText:
		text, err = p.Extractor.Text(ctx, d.Buffer)
	default:
		text, err = p.Transcriber.Transcribe(ctx, d.Buffer)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		if d.Path == content.PathExtractText {
			return "", apperr.New(apperr.KindUnsupported, apperr.ReasonEmptyDocument, "the document has no extractable text")
		}
		return "", apperr.New(apperr.KindPermanentUpstream, apperr.ReasonEmptyTranscript, "the transcription came back empty")
	}
	return text, nil
}
