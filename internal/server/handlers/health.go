package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ThatCatDev/ggufdeck/internal/session"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// HealthHandler handles GET /health.
type HealthHandler struct {
	Session *session.Session
	Version string
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  "ok",
		Version: h.Version,
		Loaded:  h.Session.Loaded(),
		Loading: h.Session.Loading(),
	})
}
