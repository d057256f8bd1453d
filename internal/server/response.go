package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body shape of every API response
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PageResult is the data of a paginated list
type PageResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func respondError(c *gin.Context, status int, message string, err error) {
	body := Envelope{
		Code:    status,
		Message: message,
	}
	if err != nil {
		body.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

// internalError logs err and replies with a generic 500
func (s *Server) internalError(c *gin.Context, err error, message string) {
	s.logger.Error().Err(err).Str("path", c.FullPath()).Msg(message)
	respondError(c, http.StatusInternalServerError, message, nil)
}
