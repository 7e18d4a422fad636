package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/models"
	"mediaquiz/internal/service"
)

// multipartOverhead is allowed on top of the upload ceiling for form
// boundaries and the other fields.
const multipartOverhead = 1 << 20

// HandleQuizFromURL handles POST /quiz-from-url.
func (h *Handler) HandleQuizFromURL(c *gin.Context) {
	var req models.QuizFromURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleErrorAndNotify(c, "", apperr.Validation(apperr.ReasonInvalidBody, "invalid request body: "+err.Error()))
		return
	}
	log.Printf("INFO: [%s] Quiz from url %q (num=%d)", c.GetString(RequestIDKey), req.URL, req.Num)

	res, err := h.Quiz.FromURL(c.Request.Context(), req.URL, int(req.Num))
	if err != nil {
		h.handleErrorAndNotify(c, req.URL, err)
		return
	}
	c.JSON(http.StatusOK, quizResponse(res))
}

// HandleQuizFromUpload handles POST /quiz-from-upload with a multipart
// "file" field and an optional "num".
func (h *Handler) HandleQuizFromUpload(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.handleErrorAndNotify(c, "", apperr.New(apperr.KindPayloadTooLarge, apperr.ReasonPayloadTooLarge,
				fmt.Sprintf("upload exceeds the %d byte limit", h.MaxUploadBytes)).
				WithDetails(map[string]any{"limit": h.MaxUploadBytes}))
			return
		}
		h.handleErrorAndNotify(c, "", apperr.Validation(apperr.ReasonMissingFile, "send the file in the multipart field 'file'"))
		return
	}

	num, err := models.ParseQuestionCount(c.PostForm("num"))
	if err != nil {
		h.handleErrorAndNotify(c, header.Filename, apperr.Validation(apperr.ReasonInvalidQuestions, err.Error()))
		return
	}

	f, err := header.Open()
	if err != nil {
		h.handleErrorAndNotify(c, header.Filename, fmt.Errorf("failed to open uploaded file: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.handleErrorAndNotify(c, header.Filename, fmt.Errorf("failed to read uploaded file: %w", err))
		return
	}
	log.Printf("INFO: [%s] Quiz from upload %q (%d bytes, num=%d)", c.GetString(RequestIDKey), header.Filename, len(data), num)

	res, err := h.Quiz.FromUpload(c.Request.Context(), data, header.Filename, int(num))
	if err != nil {
		h.handleErrorAndNotify(c, header.Filename, err)
		return
	}
	c.JSON(http.StatusOK, quizResponse(res))
}

func quizResponse(res *service.Result) models.QuizResponse {
	return models.QuizResponse{
		Quiz: res.Quiz,
		Source: &models.SourceInfo{
			Kind:      string(res.Kind),
			Path:      string(res.Path),
			Bytes:     res.Bytes,
			TextChars: res.TextChars,
			Truncated: res.Truncated,
		},
	}
}
