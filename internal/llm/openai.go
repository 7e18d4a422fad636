// Package llm holds what the OpenAI-backed collaborators share: client
// construction and the mapping of SDK failures onto retry statuses and the
// error taxonomy.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/retry"
)

// OpenAIConfig selects the account and, optionally, a compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// NewOpenAI builds a go-openai client. The SDK's own retries are not used;
// calls are wrapped in a retry.Policy instead.
func NewOpenAI(cfg OpenAIConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c.HTTPClient = &hintingDoer{client: httpClient}
	return openai.NewClientWithConfig(c)
}

type hintKey struct{}

// hintingDoer records the Retry-After header of failed responses into the
// hint carried by the request context. APIError does not expose headers.
type hintingDoer struct {
	client *http.Client
}

func (d *hintingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if err != nil || !retry.Retryable(resp.StatusCode) {
		return resp, err
	}
	if hint, ok := req.Context().Value(hintKey{}).(*atomic.Int64); ok {
		hint.Store(int64(retry.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())))
	}
	return resp, err
}

// Call runs one SDK request and reports its failure like Attempt, adding
// the provider's Retry-After hint when the response carried one.
func Call[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	hint := new(atomic.Int64)
	v, err := fn(context.WithValue(ctx, hintKey{}, hint))
	err = Attempt(err)
	var se *retry.StatusError
	if errors.As(err, &se) && se.RetryAfter == 0 {
		se.RetryAfter = time.Duration(hint.Load())
	}
	return v, err
}

// Attempt wraps an SDK error so retry.Call can see its HTTP status.
func Attempt(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &retry.StatusError{Code: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &retry.StatusError{Code: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}

// Failure classifies an error that survived the retry budget. A 429 from
// the provider keeps its own reason so callers can be told to back off.
func Failure(err error, reason, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	status, _ := retry.StatusOf(err)
	if status == 429 {
		return apperr.Wrap(apperr.KindTransientUpstream, apperr.ReasonUpstreamRateLimited, err, op+": provider rate limit").
			WithStatus(status)
	}
	e := apperr.FromStatus(status, reason, err)
	e.Message = op + ": " + e.Message
	return e
}
