package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ThatCatDev/ggufdeck/internal/session"
	"github.com/ThatCatDev/ggufdeck/internal/visual"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// VisualHandler serves the visualization payloads.
type VisualHandler struct {
	Session *session.Session
}

// Payload handles GET /api/visualization. The body is {} when no model is
// loaded.
func (h *VisualHandler) Payload(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Payload())
}

// Graph handles GET /api/visualization/graph.
func (h *VisualHandler) Graph(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Graph())
}

// Layout handles GET /api/visualization/layout.
func (h *VisualHandler) Layout(c *gin.Context) {
	if !h.Session.Loaded() {
		writeDomainError(c, session.ErrNotLoaded)
		return
	}
	layout, ok := h.Session.Layout()
	if !ok {
		writeError(c, http.StatusNotFound, "not_found", "model layout could not be read")
		return
	}
	c.JSON(http.StatusOK, layout)
}

// Layer handles GET /api/visualization/layers/:index.
func (h *VisualHandler) Layer(c *gin.Context) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "index must be an integer")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"index":       i,
		"weight":      h.Session.LayerWeight(i),
		"link_weight": h.Session.LinkWeight(i),
	})
}

// Text handles POST /api/visualization/text.
func (h *VisualHandler) Text(c *gin.Context) {
	var req api.TextVisualizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to parse request body")
		return
	}
	c.JSON(http.StatusOK, visual.TextPoints(req.Input, req.Output))
}

// Points handles GET /api/visualization/points: the payload's weights and
// embeddings as scatter coordinates.
func (h *VisualHandler) Points(c *gin.Context) {
	p := h.Session.Payload()
	if p.Empty() {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	emb, err := visual.EmbeddingPoints(p.Embeddings)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"weights":    visual.WeightPoints(p.Weights),
		"embeddings": emb,
		"attention":  p.Attention,
	})
}
