package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// SuccessResponse wraps every successful payload.
type SuccessResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	ErrorCode string            `json:"error_code"`
	Details   []ValidationError `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func RespondWithSuccess(c *gin.Context, code int, message string, data any) {
	c.JSON(code, SuccessResponse{
		Status:    StatusSuccess,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func RespondWithError(c *gin.Context, code int, errorCode, message string) {
	c.JSON(code, ErrorResponse{
		Status:    StatusFailure,
		Message:   message,
		ErrorCode: errorCode,
		Timestamp: time.Now().UTC(),
	})
}
