// Package fetch downloads remote bodies under a byte ceiling. Every request
// goes through the retry orchestrator; the body is accumulated chunk by chunk
// and the transfer is torn down as soon as the ceiling is passed.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/media"
	"mediaquiz/internal/retry"
)

const (
	defaultTimeout = 2 * time.Minute
	// errorBodyLimit bounds how much of a failed response is kept for details.
	errorBodyLimit = 2048
)

// Result is a successfully fetched body.
type Result struct {
	Body        []byte
	ContentType string
	Status      int
	URL         string
}

// Fetcher performs bounded GET requests.
type Fetcher struct {
	client    *http.Client
	policy    retry.Policy
	userAgent string
}

// New creates a Fetcher. A nil client gets a default one with a generous
// timeout; the retry budget, not the client timeout, bounds slow upstreams.
func New(client *http.Client, policy retry.Policy, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Fetcher{client: client, policy: policy, userAgent: userAgent}
}

// Fetch downloads rawURL. headers are added to every attempt. maxBytes <= 0
// disables the ceiling, which callers in this module never do.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, headers http.Header, maxBytes int64) (*Result, error) {
	resp, err := retry.Do(ctx, f.policy, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if f.userAgent != "" && req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", f.userAgent)
		}
		return f.client.Do(req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
		}
		return nil, apperr.FromStatus(0, apperr.ReasonFetchFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := readSnippet(resp.Body)
		_ = resp.Body.Close()
		return nil, apperr.FromStatus(resp.StatusCode, apperr.ReasonFetchFailed, fmt.Errorf("GET %s: %s", rawURL, resp.Status)).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": snippet})
	}

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		_ = resp.Body.Close()
		return nil, TooLarge(maxBytes, resp.ContentLength)
	}

	body, err := media.Collect(ctx, resp.Body, maxBytes)
	if err != nil {
		var le *media.LimitError
		if errors.As(err, &le) {
			return nil, TooLarge(le.Limit, le.Read)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
		}
		return nil, apperr.FromStatus(0, apperr.ReasonFetchFailed, err)
	}

	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Status:      resp.StatusCode,
		URL:         resp.Request.URL.String(),
	}, nil
}

// TooLarge builds the PAYLOAD_TOO_LARGE error. seen may be a declared
// Content-Length or the count read before the transfer was aborted.
func TooLarge(limit, seen int64) *apperr.Error {
	return apperr.New(apperr.KindPayloadTooLarge, apperr.ReasonPayloadTooLarge,
		fmt.Sprintf("content exceeds the %d byte limit", limit)).
		WithDetails(map[string]any{"limit": limit, "received": seen})
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	return string(b)
}
