package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ThatCatDev/ggufdeck/internal/experiment"
	"github.com/ThatCatDev/ggufdeck/internal/session"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// ExperimentsHandler handles POST /api/experiments/:kind.
type ExperimentsHandler struct {
	Session   *session.Session
	MaxTokens int
}

func (h *ExperimentsHandler) Run(c *gin.Context) {
	var req api.ExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to parse request body")
		return
	}
	if req.Prompt == "" {
		badRequest(c, "prompt field is required")
		return
	}

	gen := experiment.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return h.Session.Generate(ctx, prompt, session.GenerateOptions{MaxTokens: h.MaxTokens})
	})
	res, err := experiment.Run(c.Request.Context(), gen, experiment.Kind(c.Param("kind")), req.Prompt)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ExperimentResponse{
		Kind:     string(res.Kind),
		Prompt:   res.Prompt,
		Response: res.Response,
	})
}

// Kinds handles GET /api/experiments.
func (h *ExperimentsHandler) Kinds(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, k := range experiment.Kinds() {
		out = append(out, gin.H{"kind": k, "description": experiment.Describe(k)})
	}
	c.JSON(http.StatusOK, gin.H{"experiments": out})
}
