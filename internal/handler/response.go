package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/lifepulse/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewMessageResponse(message string, data interface{}) *Response {
	return &Response{
		Status:  "success",
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondWithError answers with the status mapped from err. Internal
// details are attached to the gin context for the logging middleware only.
func RespondWithError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	message := "internal server error"

	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		message = appErr.Message
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, NewErrorResponse(message))
}
