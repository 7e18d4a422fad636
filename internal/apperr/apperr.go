// Package apperr defines the error taxonomy shared by every acquisition and
// generation step. Components classify failures here; only the HTTP layer
// turns a Kind into a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the coarse failure class.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindTransientUpstream Kind = "transient_upstream"
	KindPayloadTooLarge   Kind = "payload_too_large"
	KindUnsupported       Kind = "unsupported_content"
	KindConfiguration     Kind = "configuration"
	KindPermanentUpstream Kind = "permanent_upstream"
	KindInternal          Kind = "internal"
)

// Reason strings surfaced to callers.
const (
	ReasonMissingURL              = "MISSING_URL"
	ReasonInvalidURL              = "INVALID_URL"
	ReasonMissingFile             = "MISSING_FILE"
	ReasonEmptyFile               = "EMPTY_FILE"
	ReasonAmbiguousSource         = "AMBIGUOUS_SOURCE"
	ReasonInvalidQuestions        = "INVALID_QUESTION_COUNT"
	ReasonInvalidBody             = "INVALID_REQUEST_BODY"
	ReasonFetchFailed             = "FETCH_FAILED"
	ReasonNetworkError            = "NETWORK_ERROR"
	ReasonPayloadTooLarge         = "PAYLOAD_TOO_LARGE"
	ReasonAudioTooLarge           = "AUDIO_TOO_LARGE"
	ReasonInvalidBytes            = "INVALID_BYTES"
	ReasonNoAudioRendition        = "NO_AUDIO_RENDITION"
	ReasonPlatformRateLimited     = "PLATFORM_RATE_LIMITED"
	ReasonPlatformFailed          = "PLATFORM_FAILED"
	ReasonFallbackUnconfigured    = "FALLBACK_NOT_CONFIGURED"
	ReasonFallbackFailed          = "FALLBACK_FAILED"
	ReasonObjectStoreUnconfigured = "OBJECT_STORE_NOT_CONFIGURED"
	ReasonUpstreamRateLimited     = "UPSTREAM_RATE_LIMITED"
	ReasonUpstreamError           = "UPSTREAM_ERROR"
	ReasonTranscriptionFailed     = "TRANSCRIPTION_FAILED"
	ReasonExtractionFailed        = "EXTRACTION_FAILED"
	ReasonEmptyDocument           = "DOCUMENT_HAS_NO_TEXT"
	ReasonEmptyTranscript         = "EMPTY_TRANSCRIPT"
	ReasonQuizFailed              = "QUIZ_GENERATION_FAILED"
	ReasonInternal                = "INTERNAL_ERROR"
)

// Error is a classified failure. Status carries the upstream status code
// when one exists (0 otherwise); it is never an HTTP status for our caller.
type Error struct {
	Kind    Kind
	Reason  string
	Status  int
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error without a cause.
func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Wrap creates a classified error around err.
func Wrap(kind Kind, reason string, err error, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Err: err}
}

// WithStatus records the upstream status code.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithDetails attaches diagnostic payload. It never replaces the reason.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Validation is shorthand for a caller-input failure.
func Validation(reason, message string) *Error {
	return New(KindValidation, reason, message)
}

// FromStatus classifies an upstream outcome. Status 0 means the request
// never produced a response (transport failure).
func FromStatus(status int, reason string, err error) *Error {
	switch {
	case status == 0:
		return Wrap(KindTransientUpstream, ReasonNetworkError, err, "network failure")
	case status == http.StatusTooManyRequests || (status >= 500 && status < 600):
		return Wrap(KindTransientUpstream, reason, err, fmt.Sprintf("upstream returned %d", status)).WithStatus(status)
	default:
		return Wrap(KindPermanentUpstream, reason, err, fmt.Sprintf("upstream returned %d", status)).WithStatus(status)
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason string of err, ReasonInternal for unclassified errors.
func ReasonOf(err error) string {
	if e, ok := As(err); ok {
		return e.Reason
	}
	return ReasonInternal
}

// IsRateLimited reports whether err is a transient failure caused by a 429.
func IsRateLimited(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindTransientUpstream && e.Status == http.StatusTooManyRequests
}
