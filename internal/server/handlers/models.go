package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ThatCatDev/ggufdeck/internal/config"
	"github.com/ThatCatDev/ggufdeck/internal/models"
	"github.com/ThatCatDev/ggufdeck/internal/session"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// ModelsHandler serves the local model list and the load/unload actions.
type ModelsHandler struct {
	Store    *models.Store
	Session  *session.Session
	Defaults config.ModelDefaults
}

// List handles GET /api/models.
func (h *ModelsHandler) List(c *gin.Context) {
	entries, err := h.Store.List()
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]api.LocalModel, 0, len(entries))
	for _, e := range entries {
		out = append(out, api.LocalModel{
			Name:       e.Name,
			Kind:       string(e.Kind),
			Size:       e.Size,
			ModifiedAt: e.ModifiedAt,
		})
	}
	c.JSON(http.StatusOK, api.ModelListResponse{Models: out})
}

// Current handles GET /api/models/current.
func (h *ModelsHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, currentModel(h.Session))
}

// Load handles POST /api/models/load.
func (h *ModelsHandler) Load(c *gin.Context) {
	var req api.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to parse request body")
		return
	}
	if req.Model == "" {
		badRequest(c, "model field is required")
		return
	}

	path, err := h.Store.Resolve(req.Model)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	cfg := session.LoadConfig{
		Path:          path,
		ContextLength: h.Defaults.ContextLength,
		GPULayers:     h.Defaults.GPULayers,
		Threads:       h.Defaults.Threads,
	}
	if req.ContextLength > 0 {
		cfg.ContextLength = req.ContextLength
	}
	if req.GPULayers != nil {
		cfg.GPULayers = *req.GPULayers
	}
	if req.Threads > 0 {
		cfg.Threads = req.Threads
	}

	if _, err := h.Session.Load(c.Request.Context(), cfg); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, currentModel(h.Session))
}

// Unload handles POST /api/models/unload. Unloading with nothing loaded is
// reported, not an error.
func (h *ModelsHandler) Unload(c *gin.Context) {
	err := h.Session.Unload()
	switch {
	case errors.Is(err, session.ErrNotLoaded):
		c.JSON(http.StatusOK, api.StatusResponse{Status: "idle", Message: "no model is currently loaded"})
	case err != nil:
		writeDomainError(c, err)
	default:
		c.JSON(http.StatusOK, api.StatusResponse{Status: "unloaded"})
	}
}

func currentModel(s *session.Session) api.CurrentModelResponse {
	h, ok := s.Handle()
	if !ok {
		return api.CurrentModelResponse{}
	}
	return api.CurrentModelResponse{
		Loaded: true,
		Model: &api.ModelHandle{
			Path:          h.Path,
			Name:          h.Name,
			ContextLength: h.ContextLength,
			GPULayers:     h.GPULayers,
			Threads:       h.Threads,
			Device:        h.Device.String(),
			LoadedAt:      h.LoadedAt,
		},
	}
}
