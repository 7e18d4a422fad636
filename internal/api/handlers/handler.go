package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/models"
	"mediaquiz/internal/notify"
	"mediaquiz/internal/service"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "requestID"

// QuizService is what the quiz routes need from the pipeline.
type QuizService interface {
	FromURL(ctx context.Context, rawURL string, n int) (*service.Result, error)
	FromUpload(ctx context.Context, data []byte, filename string, n int) (*service.Result, error)
}

// Handler contains the API handlers dependencies
type Handler struct {
	Quiz           QuizService
	Notifier       notify.Notifier
	MaxUploadBytes int64
	Started        time.Time
}

// NewHandler creates a new Handler
func NewHandler(quiz QuizService, notifier notify.Notifier, maxUploadBytes int64) *Handler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Handler{
		Quiz:           quiz,
		Notifier:       notifier,
		MaxUploadBytes: maxUploadBytes,
		Started:        time.Now(),
	}
}

// StatusFor maps an error onto the HTTP status of its envelope.
func StatusFor(err error) int {
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case apperr.KindValidation, apperr.KindConfiguration:
		return http.StatusBadRequest
	case apperr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.KindUnsupported:
		return http.StatusUnsupportedMediaType
	case apperr.KindTransientUpstream:
		if e.Reason == apperr.ReasonUpstreamRateLimited && e.Status == http.StatusTooManyRequests {
			return http.StatusTooManyRequests
		}
	}
	return http.StatusInternalServerError
}

// Envelope builds the JSON error body for err.
func Envelope(err error) models.ErrorResponse {
	e, ok := apperr.As(err)
	if !ok {
		msg := "internal error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			msg = "request cancelled before completion"
		}
		return models.ErrorResponse{Error: apperr.ReasonInternal, Message: msg}
	}
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	return models.ErrorResponse{Error: e.Reason, Message: msg, Details: e.Details}
}

// handleErrorAndNotify logs an error, reports server-side failures and
// aborts the request with the error envelope.
func (h *Handler) handleErrorAndNotify(c *gin.Context, source string, err error) {
	status := StatusFor(err)
	body := Envelope(err)
	requestID := c.GetString(RequestIDKey)

	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: [%s] %s %s failed (%d %s): %v", requestID, c.Request.Method, c.FullPath(), status, body.Error, err)
		h.Notifier.Notify(notify.Event{
			RequestID: requestID,
			Route:     c.FullPath(),
			Status:    status,
			Reason:    body.Error,
			Message:   err.Error(),
			Source:    source,
		})
	} else {
		log.Printf("WARN: [%s] %s %s rejected (%d %s): %v", requestID, c.Request.Method, c.FullPath(), status, body.Error, err)
	}
	c.AbortWithStatusJSON(status, body)
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, models.HealthResponse{
		OK:     true,
		TS:     now.UnixMilli(),
		Uptime: now.Sub(h.Started).Seconds(),
	})
}
