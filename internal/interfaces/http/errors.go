package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/approval"
)

// statusFor maps application errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, approval.ErrTransientFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, approval.ErrNotAnApprover), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, approval.ErrAlreadyDecided), errors.Is(err, service.ErrRuleActive):
		return http.StatusConflict
	case errors.Is(err, approval.ErrMalformedRule):
		return http.StatusUnprocessableEntity
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, approval.ErrInvalidDecision), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error response. Internal errors are logged and
// their details withheld from the client.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()

	switch {
	case status == http.StatusInternalServerError:
		h.logger.Error(op+" failed", "error", err, "path", c.Request.URL.Path)
		msg = "internal error"
	case status == http.StatusServiceUnavailable:
		h.logger.Warn(op+" unavailable", "error", err, "path", c.Request.URL.Path)
		msg = "temporarily unavailable, retry later"
		c.Header("Retry-After", "1")
	}

	c.JSON(status, Response{Success: false, Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}
