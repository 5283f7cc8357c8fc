package token

import (
	"net/http"

	apperrors "lead-gateway/internal/common/errors"
	"lead-gateway/internal/common/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service   *Service
	responder *apperrors.ErrorResponder
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		service:   service,
		responder: apperrors.NewErrorResponder(log),
	}
}

// Handle serves GET /csrf-token. The response must never be cached: the
// browser driver fetches a token right before every submit.
func (h *Handler) Handle(c *gin.Context) {
	tok, err := h.service.EnsureToken(c)
	if err != nil {
		h.responder.Respond(c, apperrors.NewSessionUnavailableError(err))
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.JSON(http.StatusOK, gin.H{"token": tok})
}
