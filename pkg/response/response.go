package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every REST endpoint replies with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo carries the machine-readable code alongside the human message.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success sends 200 with the payload wrapped in the envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// Created sends 201 with the payload wrapped in the envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// Error sends an error envelope with an explicit status and code.
func Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}

var errorCodes = map[int]string{
	http.StatusBadRequest:          "BAD_REQUEST",
	http.StatusUnauthorized:        "UNAUTHORIZED",
	http.StatusForbidden:           "FORBIDDEN",
	http.StatusNotFound:            "NOT_FOUND",
	http.StatusConflict:            "CONFLICT",
	http.StatusInternalServerError: "INTERNAL_ERROR",
}

func fail(c *gin.Context, statusCode int, message string) {
	Error(c, statusCode, errorCodes[statusCode], message)
}

// BadRequest sends a 400 error envelope.
func BadRequest(c *gin.Context, message string) { fail(c, http.StatusBadRequest, message) }

// Unauthorized sends a 401 error envelope.
func Unauthorized(c *gin.Context, message string) { fail(c, http.StatusUnauthorized, message) }

// Forbidden sends a 403 error envelope.
func Forbidden(c *gin.Context, message string) { fail(c, http.StatusForbidden, message) }

// NotFound sends a 404 error envelope.
func NotFound(c *gin.Context, message string) { fail(c, http.StatusNotFound, message) }

// Conflict sends a 409 error envelope.
func Conflict(c *gin.Context, message string) { fail(c, http.StatusConflict, message) }

// InternalError sends a 500 error envelope.
func InternalError(c *gin.Context, message string) { fail(c, http.StatusInternalServerError, message) }
