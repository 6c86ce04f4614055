// Package response holds the demo service's JSON response envelope helpers.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sqlgate/src/app/middleware"
)

// OK writes a 200 with data under "data".
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Created writes a 201 with data under "data".
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// Error writes a structured error envelope with the request ID attached.
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":       code,
			"message":    message,
			"request_id": middleware.GetRequestID(c),
		},
	})
}
