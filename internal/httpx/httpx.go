// Package httpx maps fault kinds onto HTTP responses so the three services
// speak one error envelope.
package httpx

import (
	"github.com/cockroachdb/errors"
	"log/slog"
	"net/http"

	"openbooking/internal/pkg/fault"

	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func statusForBusiness(code fault.Code) int {
	switch code {
	case fault.CodeResourceNotFound:
		return http.StatusNotFound
	case fault.CodeInsufficientAvailability:
		return http.StatusConflict
	case fault.CodePaymentDeclined:
		return http.StatusPaymentRequired
	case fault.CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

// Error writes the response for err according to its kind. Unknown errors
// surface as 500 with a generic message; the cause stays in the log.
func Error(c *gin.Context, err error) {
	var be *fault.BusinessError
	switch {
	case errors.As(err, &be):
		c.AbortWithStatusJSON(statusForBusiness(be.Code), ErrorResponse{
			Error: ErrorBody{Code: string(be.Code), Message: be.Message},
		})
	case fault.IsUnavailable(err):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorBody{Message: "Service temporarily unavailable. Retry with the same idempotency key."},
		})
	case errors.Is(err, fault.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorBody{Code: string(fault.CodeResourceNotFound), Message: "Resource not found"},
		})
	default:
		slog.Error("unhandled request error", "error", err.Error())
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorBody{Message: "Internal server error"},
		})
	}
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorBody{Code: string(fault.CodeInvalidRequest), Message: msg},
	})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
