package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the uniform success envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorResponse is the uniform failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// OK writes a success envelope with the given status.
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// Fail writes a failure envelope. Typed errors keep their status and code;
// anything else becomes a generic 500 so internals never leak to clients.
func Fail(c *gin.Context, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, ErrorResponse{Success: false, Error: apiErr.Message, Code: apiErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Error: "internal server error", Code: "INTERNAL"})
}

// Abort writes a failure envelope and stops the handler chain. For middleware.
func Abort(c *gin.Context, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, ErrorResponse{Success: false, Error: apiErr.Message, Code: apiErr.Code})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Success: false, Error: "internal server error", Code: "INTERNAL"})
}
