// Package response writes the JSON envelope shared by every API endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Body{Success: true, Data: data})
}

func failure(c *gin.Context, status int, err string) {
	c.JSON(status, Body{Error: err})
}

// OK sends 200 with data.
func OK(c *gin.Context, data interface{}) { success(c, http.StatusOK, data) }

// Accepted sends 202 with data, for work handed to the export queue.
func Accepted(c *gin.Context, data interface{}) { success(c, http.StatusAccepted, data) }

// BadRequest sends 400.
func BadRequest(c *gin.Context, err string) { failure(c, http.StatusBadRequest, err) }

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) { failure(c, http.StatusUnauthorized, err) }

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) { failure(c, http.StatusForbidden, err) }

// NotFound sends 404.
func NotFound(c *gin.Context, err string) { failure(c, http.StatusNotFound, err) }

// Conflict sends 409.
func Conflict(c *gin.Context, err string) { failure(c, http.StatusConflict, err) }

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, err string) { failure(c, http.StatusTooManyRequests, err) }

// Internal sends 500. The message goes to the client; log the cause separately.
func Internal(c *gin.Context, err string) { failure(c, http.StatusInternalServerError, err) }

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) { failure(c, http.StatusServiceUnavailable, err) }
