package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"taxkit/internal/einvoice"
	"taxkit/internal/period"
	"taxkit/internal/store"
	"taxkit/internal/ustva"
	"taxkit/internal/wizard"
	"taxkit/pkg/services"
)

// Response is the envelope of every JSON answer.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Error codes
const (
	codeBadRequest    = "BAD_REQUEST"
	codeNotFound      = "NOT_FOUND"
	codeConflict      = "CONFLICT"
	codeUnprocessable = "UNPROCESSABLE"
	codeUpstream      = "UPSTREAM_UNAVAILABLE"
	codeInternal      = "INTERNAL_ERROR"
)

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{
		Error: &ErrorInfo{Code: code, Message: message, RequestID: c.GetString(requestIDKey)},
	})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	fail(c, http.StatusBadRequest, codeBadRequest, err.Error())
}

// writeError derives the status from the error chain.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, store.ErrInvalidStatusTransition),
		errors.Is(err, wizard.ErrBusy):
		fail(c, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, period.ErrInvalidQuarter),
		errors.Is(err, period.ErrInvalidYear),
		errors.Is(err, wizard.ErrUnknownDocument),
		errors.Is(err, wizard.ErrNotSelectable),
		errors.Is(err, einvoice.ErrUnsupportedFormat),
		errors.Is(err, einvoice.ErrInvalidMetadata),
		errors.Is(err, einvoice.ErrInvalidSource),
		errors.Is(err, einvoice.ErrUnknownSyntax):
		fail(c, http.StatusBadRequest, codeBadRequest, err.Error())
	case ustva.IsComputationError(err):
		fail(c, http.StatusUnprocessableEntity, codeUnprocessable, err.Error())
	case services.IsDataFetchError(err):
		fail(c, http.StatusBadGateway, codeUpstream, err.Error())
	default:
		fail(c, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
