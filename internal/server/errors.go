package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/logging"
)

type errorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError maps validation failures to 400 and everything else to 500.
// Internal detail is withheld in production.
func (s *Server) respondError(c *gin.Context, summary string, err error) {
	if errors.Is(err, domain.ErrValidation) {
		c.JSON(http.StatusBadRequest, errorResponse{Status: "error", Error: summary, Message: err.Error()})
		return
	}

	logging.FromContext(c.Request.Context()).Error(summary, slog.Any("error", err))

	msg := err.Error()
	if s.deps.Production {
		msg = "internal server error"
	}
	c.JSON(http.StatusInternalServerError, errorResponse{Status: "error", Error: summary, Message: msg})
}

func badRequest(c *gin.Context, summary, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Status: "error", Error: summary, Message: msg})
}
