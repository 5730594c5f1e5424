package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ThatCatDev/ggufdeck/internal/hub"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// HubHandler serves catalog search and downloads into the models directory.
type HubHandler struct {
	Client    *hub.Client
	ModelsDir string
}

// Search handles GET /api/hub/search?q=...&limit=N.
func (h *HubHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		badRequest(c, "q parameter is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	found, err := h.Client.SearchModels(c.Request.Context(), q, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]api.HubModel, 0, len(found))
	for _, m := range found {
		out = append(out, api.HubModel{ID: m.Name(), Downloads: m.Downloads, Likes: m.Likes})
	}
	c.JSON(http.StatusOK, api.HubSearchResponse{Models: out})
}

// Files handles GET /api/hub/files?model=owner/name.
func (h *HubHandler) Files(c *gin.Context) {
	id := c.Query("model")
	files, err := h.Client.Files(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]api.HubFile, 0, len(files))
	for _, f := range files {
		out = append(out, api.HubFile{Name: f.Name, Size: f.Size})
	}
	c.JSON(http.StatusOK, api.HubFilesResponse{Model: id, Files: out})
}

// Card handles GET /api/hub/card?model=owner/name.
func (h *HubHandler) Card(c *gin.Context) {
	card, err := h.Client.Card(c.Request.Context(), c.Query("model"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// Download handles POST /api/hub/download: a full repository clone.
func (h *HubHandler) Download(c *gin.Context) {
	var req api.HubDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to parse request body")
		return
	}
	path, err := h.Client.Download(c.Request.Context(), req.Model, h.ModelsDir)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.HubDownloadResponse{Status: "downloaded", Path: path})
}

// Pull handles POST /api/hub/pull: a single GGUF file.
func (h *HubHandler) Pull(c *gin.Context) {
	var req api.HubDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to parse request body")
		return
	}
	if req.File == "" {
		badRequest(c, "file field is required")
		return
	}
	path, err := h.Client.FetchFile(c.Request.Context(), req.Model, req.File, h.ModelsDir, nil)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.HubDownloadResponse{Status: "downloaded", Path: path})
}
