package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/logging"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Detail  interface{} `json:"detail,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func traceID(c *gin.Context) string {
	return c.GetString("trace_id")
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: traceID(c),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceID(c),
	})
}

// RespondErrorCode writes an error envelope carrying the stable error code of err.
func RespondErrorCode(c *gin.Context, code int, err error, detail interface{}) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Error:   ErrorCode(err),
		Message: err.Error(),
		Detail:  detail,
		TraceID: traceID(c),
	})
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidLineItem),
		errors.Is(err, ErrBelowMinimumAmount),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrIncompleteGatewayResponse),
		errors.Is(err, ErrInvalidResetToken),
		errors.Is(err, ErrInvalidPage),
		errors.Is(err, ErrInvalidPageSize),
		errors.Is(err, ErrInvalidOrderState):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateToken),
		errors.Is(err, ErrOrderAlreadyPaid),
		errors.Is(err, ErrOrderStateConflict):
		return http.StatusConflict
	case errors.Is(err, ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func HandleServiceError(c *gin.Context, err error) {
	status := StatusFor(err)

	var detail interface{}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		detail = gwErr.Detail
	}

	if status >= http.StatusInternalServerError {
		logging.From(c).Error("service error", "error", err.Error(), "code", ErrorCode(err))
		if detail == nil {
			RespondErrorCode(c, status, errors.New("internal server error"), nil)
			c.Abort()
			return
		}
	}

	RespondErrorCode(c, status, err, detail)
	c.Abort()
}
