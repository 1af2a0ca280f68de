package controller

import (
	"github.com/gin-gonic/gin"
)

// Response is the envelope for all API responses.
type Response struct {
	Success       bool        `json:"success"`
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	Message       string      `json:"message,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func sendData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success:       true,
		Data:          data,
		CorrelationID: getCorrelationID(c),
	})
}

func sendMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success:       true,
		Message:       message,
		CorrelationID: getCorrelationID(c),
	})
}

func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
		CorrelationID: getCorrelationID(c),
	})
}

func getCorrelationID(c *gin.Context) string {
	if correlationID, exists := c.Get("correlation_id"); exists {
		if id, ok := correlationID.(string); ok {
			return id
		}
	}
	return ""
}
