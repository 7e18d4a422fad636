// Package retry runs a single network attempt repeatedly with exponential
// backoff. Only rate limits (429), server errors (5xx) and transport failures
// are retried; any other status is returned to the caller at once.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"mediaquiz/internal/apperr"
)

const (
	defaultTries     = 3
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 30 * time.Second
	maxJitter        = 0.25
)

// Policy tunes one retry loop. Zero fields take package defaults.
type Policy struct {
	Tries     int
	BaseDelay time.Duration
	// MaxDelay caps any single wait, including server Retry-After hints.
	MaxDelay time.Duration

	// Sleep waits between attempts. Tests replace it to avoid real waits.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a value in [0, 1); it is scaled to the 25% jitter band.
	Jitter func() float64
}

func (p Policy) withDefaults() Policy {
	if p.Tries <= 0 {
		p.Tries = defaultTries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Jitter == nil {
		p.Jitter = rand.Float64
	}
	return p
}

// Delay returns the wait before the attempt following attempt i (0-based).
// A positive hint from the server wins over the computed backoff.
func (p Policy) Delay(i int, hint time.Duration) time.Duration {
	p = p.withDefaults()
	var d time.Duration
	if hint > 0 {
		d = hint
	} else {
		factor := math.Pow(2, float64(i)) * (1 + p.Jitter()*maxJitter)
		d = time.Duration(float64(p.BaseDelay) * factor)
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Retryable reports whether an attempt that ended with status should be
// tried again. Status 0 stands for a transport failure.
func Retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// StatusError lets SDK adapters report the HTTP status behind a failed call
// so Call can classify it.
type StatusError struct {
	Code       int
	RetryAfter time.Duration
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusOf returns the status carried by err and any retry hint. Errors
// without a StatusError in their chain report status 0.
func StatusOf(err error) (int, time.Duration) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, se.RetryAfter
	}
	return 0, 0
}

// Classify adapts an apperr-classified failure for Call. Transient failures
// keep their upstream status and stay retryable; every other kind becomes
// final. Unclassified errors are returned unchanged and count as transport
// failures.
func Classify(err error) error {
	e, ok := apperr.As(err)
	if !ok {
		return err
	}
	code := e.Status
	if e.Kind != apperr.KindTransientUpstream && Retryable(code) {
		code = http.StatusBadRequest
	}
	return &StatusError{Code: code, Err: err}
}

// Do performs attempt until it returns a 2xx response, a non-retryable
// status, or the policy runs out of tries. After exhaustion the last
// response is returned if there was one; otherwise the last transport error.
// Bodies of superseded responses are closed.
func Do(ctx context.Context, p Policy, attempt func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	p = p.withDefaults()

	var (
		last    *http.Response
		lastErr error
	)
	for i := 0; i < p.Tries; i++ {
		resp, err := attempt(ctx)

		var hint time.Duration
		if err != nil {
			if ctx.Err() != nil {
				closeBody(last)
				return nil, ctx.Err()
			}
			lastErr = err
		} else {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				closeBody(last)
				return resp, nil
			}
			if !Retryable(resp.StatusCode) {
				closeBody(last)
				return resp, nil
			}
			closeBody(last)
			last = resp
			hint = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}

		if i == p.Tries-1 {
			break
		}
		if err := p.Sleep(ctx, p.Delay(i, hint)); err != nil {
			closeBody(last)
			return nil, err
		}
	}

	if last != nil {
		return last, nil
	}
	return nil, lastErr
}

// Call is Do for SDK calls that report failures as errors. fn's error is
// classified with StatusOf; errors without a status count as transport
// failures. The last error is returned after exhaustion.
func Call[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var (
		zero    T
		lastErr error
	)
	for i := 0; i < p.Tries; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		lastErr = err

		status, hint := StatusOf(err)
		if !Retryable(status) {
			return zero, err
		}
		if i == p.Tries-1 {
			break
		}
		if serr := p.Sleep(ctx, p.Delay(i, hint)); serr != nil {
			return zero, lastErr
		}
	}
	return zero, lastErr
}

// ParseRetryAfter reads a Retry-After header value given either as
// delta-seconds or as an HTTP date. Unparseable or past values yield 0.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
